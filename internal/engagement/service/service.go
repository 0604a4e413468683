// Package service implements the engagement lifecycle use cases: ingesting
// passive tracking signals, advancing the outreach state machine, appending
// the audit trail, and notifying the workflow dispatcher.
package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"engagement_backend/internal/engagement/domain"
	"engagement_backend/internal/engagement/ports"
	"engagement_backend/internal/engagement/repository"
	"engagement_backend/internal/events"
	"engagement_backend/platform/apperr"
	"engagement_backend/platform/logger"
	"engagement_backend/platform/phone"

	"github.com/google/uuid"
)

// Workflow trigger event types. The dispatcher resolves zero or more
// configured automations per type; unknown types simply match nothing.
const (
	TriggerEmailOpened        = "EMAIL_OPENED"
	TriggerLinkClicked        = "LINK_CLICKED"
	TriggerMeetingLinkClicked = "MEETING_LINK_CLICKED"
	TriggerEngagementClosed   = "ENGAGEMENT_CLOSED"
	TriggerDealRoomOpened     = "DEAL_ROOM_OPENED"
	TriggerCallEnded          = "CALL_ENDED"
)

// clickSideEffectTimeout bounds the detached click-tracking write so a slow
// database can never hold a goroutine hostage.
const clickSideEffectTimeout = 5 * time.Second

type Service struct {
	repo        repository.EngagementRepository
	gate        ports.PermissionGate
	dispatcher  ports.Dispatcher
	provider    ports.CallStatusProvider
	ensurer     ports.RecordEnsurer
	bus         events.Bus
	log         *logger.Logger
	phoneRegion string
}

func New(repo repository.EngagementRepository, gate ports.PermissionGate, dispatcher ports.Dispatcher, provider ports.CallStatusProvider, bus events.Bus, log *logger.Logger, phoneRegion string) *Service {
	return &Service{
		repo:        repo,
		gate:        gate,
		dispatcher:  dispatcher,
		provider:    provider,
		bus:         bus,
		log:         log,
		phoneRegion: phoneRegion,
	}
}

// SetRecordEnsurer injects the external collaborator that guarantees a
// downstream record exists after close. Optional.
func (s *Service) SetRecordEnsurer(ensurer ports.RecordEnsurer) {
	s.ensurer = ensurer
}

// =============================================================================
// Passive tracking signals
// =============================================================================

// RecordOpen processes an open-tracking beacon hit. An unknown token is
// "nothing to do", not an error: the caller returns the pixel either way.
// Duplicate and concurrent hits for the same token are collapsed by the
// atomic conditional write; only the winning call appends the activity and
// notifies the dispatcher.
func (s *Service) RecordOpen(ctx context.Context, token, userAgent, clientIP string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	engagement, err := s.repo.GetByOpenToken(ctx, token)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil
		}
		return err
	}

	now := time.Now().UTC()
	won, err := s.repo.MarkOpened(ctx, engagement.ID, now)
	if err != nil {
		return err
	}
	if !won {
		// A concurrent duplicate already recorded the open.
		return nil
	}

	if _, err := s.repo.AppendActivity(ctx, repository.AppendActivityParams{
		EngagementID: engagement.ID,
		Type:         domain.ActivityEmailOpened,
		Metadata: &domain.EmailOpenedMetadata{
			OpenToken: token,
			UserAgent: userAgent,
			ClientIP:  clientIP,
		},
	}); err != nil {
		// State transition already won; the missing audit row is logged,
		// not surfaced.
		s.log.TrackingError("open", engagement.ID.String(), err)
	}

	s.bus.Publish(ctx, events.EmailOpened{
		BaseEvent:      events.NewBaseEvent(),
		EngagementID:   engagement.ID,
		OrganizationID: engagement.OrganizationID,
		OpenToken:      token,
	})
	s.dispatch(TriggerEmailOpened, engagement, domain.ActivityEmailOpened, nil)

	return nil
}

// NormalizeClickURL turns the decoded click target into an absolute URL,
// prefixing https when the scheme is missing.
func NormalizeClickURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if !strings.Contains(trimmed, "://") {
		return "https://" + trimmed
	}
	return trimmed
}

// RecordClick normalizes the redirect target and fires the click-tracking
// side effect on a detached goroutine. The redirect must never wait for, or
// fail because of, the tracking write.
func (s *Service) RecordClick(ctx context.Context, rawURL, correlationID string) (string, error) {
	target := NormalizeClickURL(rawURL)
	if target == "" {
		return "", apperr.Validation("missing url")
	}

	go s.recordClickActivity(target, correlationID)

	return target, nil
}

func (s *Service) recordClickActivity(target, correlationID string) {
	// The originating request context is gone by the time this runs.
	ctx, cancel := context.WithTimeout(context.Background(), clickSideEffectTimeout)
	defer cancel()

	engagementID, err := uuid.Parse(strings.TrimSpace(correlationID))
	if err != nil {
		return
	}

	engagement, err := s.repo.GetByID(ctx, engagementID)
	if err != nil {
		if err != repository.ErrNotFound {
			s.log.TrackingError("click", correlationID, err)
		}
		return
	}

	if _, err := s.repo.AppendActivity(ctx, repository.AppendActivityParams{
		EngagementID: engagement.ID,
		Type:         domain.ActivityLinkClicked,
		Metadata: &domain.LinkClickedMetadata{
			TargetURL:     target,
			CorrelationID: correlationID,
		},
	}); err != nil {
		s.log.TrackingError("click", engagement.ID.String(), err)
		return
	}

	s.bus.Publish(ctx, events.LinkClicked{
		BaseEvent:      events.NewBaseEvent(),
		EngagementID:   engagement.ID,
		OrganizationID: engagement.OrganizationID,
		TargetURL:      target,
	})
	s.dispatch(TriggerLinkClicked, engagement, domain.ActivityLinkClicked, nil)
}

// RecordMeetingVisit resolves the meeting URL (entity override, else the
// assigned owner's default), marks the engagement MEETING_LINK_CLICKED, and
// returns the redirect target. Lookup failures surface as 404/400; failures
// after resolution are logged and the redirect proceeds.
func (s *Service) RecordMeetingVisit(ctx context.Context, id uuid.UUID) (string, error) {
	engagement, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return "", apperr.NotFound("engagement not found")
		}
		return "", apperr.Wrap(apperr.KindInternal, "failed to load engagement", err)
	}

	meetingURL, err := s.repo.ResolveMeetingURL(ctx, id)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to resolve meeting url", err)
	}
	if meetingURL == nil || *meetingURL == "" {
		return "", apperr.BadRequest("no meeting url configured")
	}

	if err := s.repo.SetOutreachStatus(ctx, id, domain.OutreachMeetingLinkClicked); err != nil {
		s.log.TrackingError("meeting", id.String(), err)
	}

	if _, err := s.repo.AppendActivity(ctx, repository.AppendActivityParams{
		EngagementID: id,
		Type:         domain.ActivityMeetingLinkClicked,
		Metadata: &domain.MeetingLinkClickedMetadata{
			MeetingURL:   *meetingURL,
			FromFallback: engagement.MeetingURL == nil || *engagement.MeetingURL == "",
		},
	}); err != nil {
		s.log.TrackingError("meeting", id.String(), err)
	}

	s.bus.Publish(ctx, events.MeetingLinkVisited{
		BaseEvent:      events.NewBaseEvent(),
		EngagementID:   engagement.ID,
		OrganizationID: engagement.OrganizationID,
		MeetingURL:     *meetingURL,
	})
	s.dispatch(TriggerMeetingLinkClicked, engagement, domain.ActivityMeetingLinkClicked, nil)

	return *meetingURL, nil
}

// =============================================================================
// Permission-gated mutations
// =============================================================================

// CloseEngagement sets the outreach status to CLOSED. The actor must pass
// the permission gate. Downstream record creation is best-effort.
func (s *Service) CloseEngagement(ctx context.Context, actor ports.Actor, id uuid.UUID, reason string) error {
	engagement, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return apperr.NotFound("engagement not found")
		}
		return apperr.Wrap(apperr.KindInternal, "failed to load engagement", err)
	}

	if err := s.requireCanMutate(ctx, actor, id, ports.ActionClose); err != nil {
		return err
	}

	if err := s.repo.SetOutreachStatus(ctx, id, domain.OutreachClosed); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to close engagement", err)
	}

	if s.ensurer != nil {
		if err := s.ensurer.EnsureDownstreamRecord(ctx, id); err != nil {
			s.log.Error("downstream record ensure failed", "engagementId", id, "error", err)
		}
	}

	actorID := actor.ID
	if _, err := s.repo.AppendActivity(ctx, repository.AppendActivityParams{
		EngagementID: id,
		ActorID:      &actorID,
		Type:         domain.ActivityStatusChanged,
		Metadata: &domain.StatusChangedMetadata{
			From:   engagement.OutreachStatus,
			To:     domain.OutreachClosed,
			Reason: reason,
		},
	}); err != nil {
		s.log.Error("close activity append failed", "engagementId", id, "error", err)
	}

	s.bus.Publish(ctx, events.EngagementClosed{
		BaseEvent:      events.NewBaseEvent(),
		EngagementID:   engagement.ID,
		OrganizationID: engagement.OrganizationID,
		ClosedByID:     actor.ID,
		Reason:         reason,
	})
	s.dispatch(TriggerEngagementClosed, engagement, domain.ActivityStatusChanged, nil)

	return nil
}

// ResetEngagement forces the outreach axis back to IDLE and clears the
// outreach markers. Prior activities are never deleted; the reset itself is
// appended for traceability, even when the entity was already IDLE.
func (s *Service) ResetEngagement(ctx context.Context, actor ports.Actor, id uuid.UUID) error {
	engagement, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return apperr.NotFound("engagement not found")
		}
		return apperr.Wrap(apperr.KindInternal, "failed to load engagement", err)
	}

	if err := s.requireCanMutate(ctx, actor, id, ports.ActionReset); err != nil {
		return err
	}

	if err := s.repo.ResetOutreach(ctx, id); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to reset engagement", err)
	}

	s.appendResetActivity(ctx, actor, id, engagement.OutreachStatus)

	s.bus.Publish(ctx, events.EngagementReset{
		BaseEvent:      events.NewBaseEvent(),
		EngagementID:   engagement.ID,
		OrganizationID: engagement.OrganizationID,
		ResetByID:      actor.ID,
	})

	return nil
}

// ResetEngagements applies the single-entity reset to every id in the pool.
// Ids that do not belong to the pool are silently excluded from the count.
func (s *Service) ResetEngagements(ctx context.Context, actor ports.Actor, poolID uuid.UUID, ids []uuid.UUID) (int, error) {
	if err := s.requireCanMutate(ctx, actor, poolID, ports.ActionReset); err != nil {
		return 0, err
	}

	reset, err := s.repo.ResetOutreachBatch(ctx, poolID, ids)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "failed to reset engagements", err)
	}

	for _, id := range reset {
		s.appendResetActivity(ctx, actor, id, "")
	}

	return len(reset), nil
}

func (s *Service) appendResetActivity(ctx context.Context, actor ports.Actor, id uuid.UUID, previous domain.OutreachStatus) {
	actorID := actor.ID
	if _, err := s.repo.AppendActivity(ctx, repository.AppendActivityParams{
		EngagementID: id,
		ActorID:      &actorID,
		Type:         domain.ActivityEmailReset,
		Metadata:     &domain.EmailResetMetadata{PreviousStatus: previous},
	}); err != nil {
		s.log.Error("reset activity append failed", "engagementId", id, "error", err)
	}
}

func (s *Service) requireCanMutate(ctx context.Context, actor ports.Actor, subjectID uuid.UUID, action ports.Action) error {
	allowed, err := s.gate.CanMutate(ctx, actor, subjectID, action)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "permission check failed", err)
	}
	if !allowed {
		return apperr.Forbidden("not allowed to " + string(action) + " this engagement")
	}
	return nil
}

// =============================================================================
// Deal rooms
// =============================================================================

// RecordDealRoomActivity appends an activity on a deal room. An OPENED
// activity additionally bumps the view counter atomically and notifies the
// workflow dispatcher with DEAL_ROOM_OPENED.
func (s *Service) RecordDealRoomActivity(ctx context.Context, id uuid.UUID, activityType domain.ActivityType, metadata json.RawMessage) error {
	engagement, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return apperr.NotFound("deal room not found")
		}
		return apperr.Wrap(apperr.KindInternal, "failed to load deal room", err)
	}

	switch activityType {
	case domain.ActivityDealRoomOpened:
		return s.recordDealRoomOpen(ctx, engagement, metadata)
	case domain.ActivityAddonsSelected:
		if err := s.repo.SetSelectedAddons(ctx, id, metadata); err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to store addon selection", err)
		}
		if _, err := s.repo.AppendActivity(ctx, repository.AppendActivityParams{
			EngagementID: id,
			Type:         domain.ActivityAddonsSelected,
			Metadata:     &domain.AddonsSelectedMetadata{SelectedAddons: metadata},
		}); err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to append activity", err)
		}
		return nil
	default:
		meta, err := domain.DecodeMetadata(activityType, metadata)
		if err != nil {
			return apperr.Validation("unknown activity type")
		}
		if _, err := s.repo.AppendActivity(ctx, repository.AppendActivityParams{
			EngagementID: id,
			Type:         activityType,
			Metadata:     meta,
		}); err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to append activity", err)
		}
		return nil
	}
}

func (s *Service) recordDealRoomOpen(ctx context.Context, engagement repository.Engagement, metadata json.RawMessage) error {
	now := time.Now().UTC()
	totalViews, err := s.repo.RecordDealRoomView(ctx, engagement.ID, now)
	if err != nil {
		if err == repository.ErrNotFound {
			return apperr.NotFound("deal room not found")
		}
		return apperr.Wrap(apperr.KindInternal, "failed to record view", err)
	}

	if _, err := s.repo.AppendActivity(ctx, repository.AppendActivityParams{
		EngagementID: engagement.ID,
		Type:         domain.ActivityDealRoomOpened,
		Metadata: &domain.DealRoomOpenedMetadata{
			TotalViews: totalViews,
			Raw:        metadata,
		},
	}); err != nil {
		s.log.Error("deal room activity append failed", "engagementId", engagement.ID, "error", err)
	}

	s.bus.Publish(ctx, events.DealRoomOpened{
		BaseEvent:      events.NewBaseEvent(),
		EngagementID:   engagement.ID,
		OrganizationID: engagement.OrganizationID,
		TotalViews:     totalViews,
		Metadata:       metadata,
	})
	s.dispatch(TriggerDealRoomOpened, engagement, domain.ActivityDealRoomOpened, metadata)

	return nil
}

// =============================================================================
// Call status
// =============================================================================

// RecordCallStatusTransition queries the external telephony provider for
// the contact's current call state and persists the mapped local status on
// the matching engagement, best-effort. An absent or failed provider lookup
// maps to INITIATED: the initiating leg may not be visible yet.
func (s *Service) RecordCallStatusTransition(ctx context.Context, contactID string) (domain.CallStatus, error) {
	normalized := phone.NormalizeE164(contactID, s.phoneRegion)

	state, err := s.provider.LookupCallState(ctx, normalized)
	if err != nil {
		s.log.Error("call status lookup failed", "contactId", normalized, "error", err)
		state = ""
	}
	status := domain.MapProviderCallState(state)

	engagement, err := s.repo.GetByExternalContactID(ctx, normalized)
	if err != nil {
		// No mapped entity is not an error; the caller still gets the state.
		if err != repository.ErrNotFound {
			s.log.Error("call status entity lookup failed", "contactId", normalized, "error", err)
		}
		return status, nil
	}

	if err := s.repo.SetCallStatus(ctx, engagement.ID, status); err != nil {
		s.log.Error("call status persist failed", "engagementId", engagement.ID, "error", err)
		return status, nil
	}

	if status == domain.CallEnded {
		now := time.Now().UTC()
		if _, err := s.repo.AppendActivity(ctx, repository.AppendActivityParams{
			EngagementID: engagement.ID,
			Type:         domain.ActivityCallEnded,
			Metadata: &domain.CallEndedMetadata{
				ProviderState: state,
				CallStatus:    status,
				EndedAt:       &now,
			},
		}); err != nil {
			s.log.Error("call ended activity append failed", "engagementId", engagement.ID, "error", err)
		}
		s.dispatch(TriggerCallEnded, engagement, domain.ActivityCallEnded, nil)
	}

	s.bus.Publish(ctx, events.CallStatusChanged{
		BaseEvent:      events.NewBaseEvent(),
		EngagementID:   engagement.ID,
		OrganizationID: engagement.OrganizationID,
		CallStatus:     string(status),
	})

	return status, nil
}

// =============================================================================
// Audit trail
// =============================================================================

// ListActivities returns the audit trail for an engagement, newest first.
func (s *Service) ListActivities(ctx context.Context, id uuid.UUID) ([]repository.Activity, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("engagement not found")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load engagement", err)
	}
	return s.repo.ListActivities(ctx, id)
}

func (s *Service) dispatch(eventType string, engagement repository.Engagement, activityType domain.ActivityType, metadata json.RawMessage) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Dispatch(eventType, ports.WorkflowPayload{
		OrganizationID: engagement.OrganizationID,
		EngagementID:   engagement.ID,
		ActivityType:   string(activityType),
		Metadata:       metadata,
		TriggeredAt:    time.Now().UTC().Format(time.RFC3339),
	})
}
