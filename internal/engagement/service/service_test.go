package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"engagement_backend/internal/engagement/domain"
	"engagement_backend/internal/engagement/ports"
	"engagement_backend/internal/engagement/repository"
	"engagement_backend/internal/events"
	"engagement_backend/platform/apperr"
	"engagement_backend/platform/logger"

	"github.com/google/uuid"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeRepo struct {
	mu          sync.Mutex
	engagements map[uuid.UUID]*repository.Engagement
	dealRooms   map[uuid.UUID]*repository.DealRoom
	ownerURLs   map[uuid.UUID]string
	activities  []repository.Activity
	appendErr   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		engagements: make(map[uuid.UUID]*repository.Engagement),
		dealRooms:   make(map[uuid.UUID]*repository.DealRoom),
		ownerURLs:   make(map[uuid.UUID]string),
	}
}

func (f *fakeRepo) add(e repository.Engagement) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := e
	f.engagements[e.ID] = &copied
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Engagement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.engagements[id]
	if !ok {
		return repository.Engagement{}, repository.ErrNotFound
	}
	return *e, nil
}

func (f *fakeRepo) GetByOpenToken(_ context.Context, token string) (repository.Engagement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.engagements {
		if e.OutreachOpenToken != nil && *e.OutreachOpenToken == token {
			return *e, nil
		}
	}
	return repository.Engagement{}, repository.ErrNotFound
}

func (f *fakeRepo) GetByExternalContactID(_ context.Context, contactID string) (repository.Engagement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.engagements {
		if e.ExternalContactID != nil && *e.ExternalContactID == contactID {
			return *e, nil
		}
	}
	return repository.Engagement{}, repository.ErrNotFound
}

func (f *fakeRepo) ResolveMeetingURL(_ context.Context, id uuid.UUID) (*string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.engagements[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if e.MeetingURL != nil && *e.MeetingURL != "" {
		return e.MeetingURL, nil
	}
	if e.AssignedOwnerID != nil {
		if url, ok := f.ownerURLs[*e.AssignedOwnerID]; ok {
			return &url, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) MarkOpened(_ context.Context, id uuid.UUID, openedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.engagements[id]
	if !ok {
		return false, nil
	}
	if e.OutreachOpenedAt != nil {
		return false, nil
	}
	e.OutreachOpenedAt = &openedAt
	e.OutreachStatus = domain.OutreachOpened
	return true, nil
}

func (f *fakeRepo) SetOutreachStatus(_ context.Context, id uuid.UUID, status domain.OutreachStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.engagements[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.OutreachStatus = status
	return nil
}

func (f *fakeRepo) SetCallStatus(_ context.Context, id uuid.UUID, status domain.CallStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.engagements[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.CallStatus = status
	return nil
}

func (f *fakeRepo) ResetOutreach(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.engagements[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.OutreachStatus = domain.OutreachIdle
	e.OutreachSentAt = nil
	e.OutreachOpenedAt = nil
	e.OutreachFirstMessageID = nil
	e.OutreachOpenToken = nil
	return nil
}

func (f *fakeRepo) ResetOutreachBatch(_ context.Context, poolID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reset := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		e, ok := f.engagements[id]
		if !ok || e.PoolID == nil || *e.PoolID != poolID {
			continue
		}
		e.OutreachStatus = domain.OutreachIdle
		e.OutreachSentAt = nil
		e.OutreachOpenedAt = nil
		e.OutreachFirstMessageID = nil
		e.OutreachOpenToken = nil
		reset = append(reset, id)
	}
	return reset, nil
}

func (f *fakeRepo) AppendActivity(_ context.Context, params repository.AppendActivityParams) (repository.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return repository.Activity{}, f.appendErr
	}
	metadata, err := domain.EncodeMetadata(params.Metadata)
	if err != nil {
		return repository.Activity{}, err
	}
	activity := repository.Activity{
		ID:           uuid.New(),
		EngagementID: params.EngagementID,
		ActorID:      params.ActorID,
		Type:         params.Type,
		Metadata:     metadata,
		CreatedAt:    time.Now(),
	}
	f.activities = append(f.activities, activity)
	return activity, nil
}

func (f *fakeRepo) ListActivities(_ context.Context, engagementID uuid.UUID) ([]repository.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]repository.Activity, 0)
	for _, a := range f.activities {
		if a.EngagementID == engagementID {
			items = append(items, a)
		}
	}
	return items, nil
}

func (f *fakeRepo) GetDealRoom(_ context.Context, engagementID uuid.UUID) (repository.DealRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.dealRooms[engagementID]
	if !ok {
		return repository.DealRoom{}, repository.ErrNotFound
	}
	return *room, nil
}

func (f *fakeRepo) EnsureDealRoom(_ context.Context, engagementID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.dealRooms[engagementID]; !ok {
		f.dealRooms[engagementID] = &repository.DealRoom{EngagementID: engagementID, IsActive: true}
	}
	return nil
}

func (f *fakeRepo) RecordDealRoomView(_ context.Context, engagementID uuid.UUID, viewedAt time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.dealRooms[engagementID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	room.TotalViews++
	room.LastViewedAt = &viewedAt
	return room.TotalViews, nil
}

func (f *fakeRepo) SetSelectedAddons(_ context.Context, engagementID uuid.UUID, addons json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.dealRooms[engagementID]
	if !ok {
		return repository.ErrNotFound
	}
	room.SelectedAddons = addons
	return nil
}

func (f *fakeRepo) activitiesOfType(activityType domain.ActivityType) []repository.Activity {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]repository.Activity, 0)
	for _, a := range f.activities {
		if a.Type == activityType {
			items = append(items, a)
		}
	}
	return items
}

var _ repository.EngagementRepository = (*fakeRepo)(nil)

type fakeGate struct {
	allow bool
	calls int
}

func (g *fakeGate) CanMutate(context.Context, ports.Actor, uuid.UUID, ports.Action) (bool, error) {
	g.calls++
	return g.allow, nil
}

type fakeDispatcher struct {
	mu       sync.Mutex
	payloads map[string][]ports.WorkflowPayload
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{payloads: make(map[string][]ports.WorkflowPayload)}
}

func (d *fakeDispatcher) Dispatch(eventType string, payload ports.WorkflowPayload) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloads[eventType] = append(d.payloads[eventType], payload)
}

func (d *fakeDispatcher) count(eventType string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.payloads[eventType])
}

type fakeProvider struct {
	state      string
	err        error
	gotContact string
}

func (p *fakeProvider) LookupCallState(_ context.Context, contactID string) (string, error) {
	p.gotContact = contactID
	return p.state, p.err
}

type fakeBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *fakeBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *fakeBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *fakeBus) Subscribe(string, events.Handler) {}

func (b *fakeBus) published(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := 0
	for _, e := range b.events {
		if e.EventName() == name {
			count++
		}
	}
	return count
}

type fakeEnsurer struct {
	calls int
}

func (e *fakeEnsurer) EnsureDownstreamRecord(context.Context, uuid.UUID) error {
	e.calls++
	return nil
}

// =============================================================================
// Harness
// =============================================================================

type harness struct {
	repo       *fakeRepo
	gate       *fakeGate
	dispatcher *fakeDispatcher
	provider   *fakeProvider
	bus        *fakeBus
	svc        *Service
}

func newHarness() *harness {
	repo := newFakeRepo()
	gate := &fakeGate{allow: true}
	dispatcher := newFakeDispatcher()
	provider := &fakeProvider{}
	bus := &fakeBus{}
	svc := New(repo, gate, dispatcher, provider, bus, logger.New("development"), "NL")
	return &harness{repo: repo, gate: gate, dispatcher: dispatcher, provider: provider, bus: bus, svc: svc}
}

func sentEngagement(token string) repository.Engagement {
	sentAt := time.Now().Add(-time.Hour)
	return repository.Engagement{
		ID:                uuid.New(),
		OrganizationID:    uuid.New(),
		Kind:              domain.KindLead,
		OutreachStatus:    domain.OutreachSent,
		CallStatus:        domain.CallUnknown,
		OutreachOpenToken: &token,
		OutreachSentAt:    &sentAt,
	}
}

// =============================================================================
// Open tracking
// =============================================================================

func TestRecordOpenFirstHitTransitionsAndDispatches(t *testing.T) {
	h := newHarness()
	e := sentEngagement("tok-1")
	h.repo.add(e)

	if err := h.svc.RecordOpen(context.Background(), "tok-1", "agent", "1.2.3.4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := h.repo.GetByID(context.Background(), e.ID)
	if stored.OutreachStatus != domain.OutreachOpened {
		t.Fatalf("expected status %q, got %q", domain.OutreachOpened, stored.OutreachStatus)
	}
	if stored.OutreachOpenedAt == nil {
		t.Fatal("expected opened timestamp to be set")
	}
	if got := len(h.repo.activitiesOfType(domain.ActivityEmailOpened)); got != 1 {
		t.Fatalf("expected 1 email_opened activity, got %d", got)
	}
	if got := h.dispatcher.count(TriggerEmailOpened); got != 1 {
		t.Fatalf("expected 1 EMAIL_OPENED dispatch, got %d", got)
	}
	if got := h.bus.published(events.EmailOpened{}.EventName()); got != 1 {
		t.Fatalf("expected 1 published event, got %d", got)
	}
}

func TestRecordOpenDuplicateIsIdempotent(t *testing.T) {
	h := newHarness()
	e := sentEngagement("tok-dup")
	h.repo.add(e)

	for i := 0; i < 3; i++ {
		if err := h.svc.RecordOpen(context.Background(), "tok-dup", "", ""); err != nil {
			t.Fatalf("unexpected error on hit %d: %v", i, err)
		}
	}

	if got := len(h.repo.activitiesOfType(domain.ActivityEmailOpened)); got != 1 {
		t.Fatalf("expected 1 email_opened activity after duplicates, got %d", got)
	}
	if got := h.dispatcher.count(TriggerEmailOpened); got != 1 {
		t.Fatalf("expected 1 dispatch after duplicates, got %d", got)
	}
}

func TestRecordOpenConcurrentHitsSingleWinner(t *testing.T) {
	h := newHarness()
	e := sentEngagement("tok-race")
	h.repo.add(e)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.svc.RecordOpen(context.Background(), "tok-race", "", "")
		}()
	}
	wg.Wait()

	if got := len(h.repo.activitiesOfType(domain.ActivityEmailOpened)); got != 1 {
		t.Fatalf("expected exactly 1 activity under concurrency, got %d", got)
	}
	if got := h.dispatcher.count(TriggerEmailOpened); got != 1 {
		t.Fatalf("expected exactly 1 dispatch under concurrency, got %d", got)
	}
}

func TestRecordOpenUnknownTokenIsNoOp(t *testing.T) {
	h := newHarness()

	if err := h.svc.RecordOpen(context.Background(), "unknown", "", ""); err != nil {
		t.Fatalf("unknown token must not error: %v", err)
	}
	if len(h.repo.activities) != 0 {
		t.Fatalf("expected no activities, got %d", len(h.repo.activities))
	}
	if h.dispatcher.count(TriggerEmailOpened) != 0 {
		t.Fatal("expected no dispatch for unknown token")
	}
}

// =============================================================================
// Click tracking
// =============================================================================

func TestNormalizeClickURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"example.com/page", "https://example.com/page"},
		{"https://example.com", "https://example.com"},
		{"http://example.com", "http://example.com"},
		{"  example.com  ", "https://example.com"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeClickURL(tc.in); got != tc.want {
			t.Errorf("NormalizeClickURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRecordClickMissingURL(t *testing.T) {
	h := newHarness()

	if _, err := h.svc.RecordClick(context.Background(), "   ", ""); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecordClickActivityAppendsWhenCorrelated(t *testing.T) {
	h := newHarness()
	e := sentEngagement("tok-click")
	h.repo.add(e)

	h.svc.recordClickActivity("https://example.com", e.ID.String())

	clicks := h.repo.activitiesOfType(domain.ActivityLinkClicked)
	if len(clicks) != 1 {
		t.Fatalf("expected 1 link_clicked activity, got %d", len(clicks))
	}
	if got := h.dispatcher.count(TriggerLinkClicked); got != 1 {
		t.Fatalf("expected 1 LINK_CLICKED dispatch, got %d", got)
	}
}

func TestRecordClickActivityIgnoresBadCorrelation(t *testing.T) {
	h := newHarness()

	h.svc.recordClickActivity("https://example.com", "not-a-uuid")

	if len(h.repo.activities) != 0 {
		t.Fatalf("expected no activities, got %d", len(h.repo.activities))
	}
}

// =============================================================================
// Meeting link
// =============================================================================

func TestRecordMeetingVisitUsesOwnerFallback(t *testing.T) {
	h := newHarness()
	ownerID := uuid.New()
	e := sentEngagement("tok-meet")
	e.AssignedOwnerID = &ownerID
	h.repo.add(e)
	h.repo.ownerURLs[ownerID] = "https://cal.example.com/owner"

	url, err := h.svc.RecordMeetingVisit(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://cal.example.com/owner" {
		t.Fatalf("expected fallback url, got %q", url)
	}

	stored, _ := h.repo.GetByID(context.Background(), e.ID)
	if stored.OutreachStatus != domain.OutreachMeetingLinkClicked {
		t.Fatalf("expected status %q, got %q", domain.OutreachMeetingLinkClicked, stored.OutreachStatus)
	}

	visits := h.repo.activitiesOfType(domain.ActivityMeetingLinkClicked)
	if len(visits) != 1 {
		t.Fatalf("expected 1 meeting activity, got %d", len(visits))
	}
	meta, err := domain.DecodeMetadata(domain.ActivityMeetingLinkClicked, visits[0].Metadata)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !meta.(*domain.MeetingLinkClickedMetadata).FromFallback {
		t.Fatal("expected fromFallback=true")
	}
}

func TestRecordMeetingVisitNoURLConfigured(t *testing.T) {
	h := newHarness()
	e := sentEngagement("tok-nourl")
	h.repo.add(e)

	if _, err := h.svc.RecordMeetingVisit(context.Background(), e.ID); !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("expected bad request error, got %v", err)
	}
}

func TestRecordMeetingVisitUnknownEngagement(t *testing.T) {
	h := newHarness()

	if _, err := h.svc.RecordMeetingVisit(context.Background(), uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

// =============================================================================
// Close / reset
// =============================================================================

func TestCloseEngagement(t *testing.T) {
	h := newHarness()
	ensurer := &fakeEnsurer{}
	h.svc.SetRecordEnsurer(ensurer)
	e := sentEngagement("tok-close")
	h.repo.add(e)
	actor := ports.Actor{ID: uuid.New(), Roles: []string{"admin"}}

	if err := h.svc.CloseEngagement(context.Background(), actor, e.ID, "deal won"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := h.repo.GetByID(context.Background(), e.ID)
	if stored.OutreachStatus != domain.OutreachClosed {
		t.Fatalf("expected status %q, got %q", domain.OutreachClosed, stored.OutreachStatus)
	}
	if ensurer.calls != 1 {
		t.Fatalf("expected ensurer to run once, got %d", ensurer.calls)
	}
	if got := h.dispatcher.count(TriggerEngagementClosed); got != 1 {
		t.Fatalf("expected 1 ENGAGEMENT_CLOSED dispatch, got %d", got)
	}
	if got := len(h.repo.activitiesOfType(domain.ActivityStatusChanged)); got != 1 {
		t.Fatalf("expected 1 status_changed activity, got %d", got)
	}
}

func TestCloseEngagementForbidden(t *testing.T) {
	h := newHarness()
	h.gate.allow = false
	e := sentEngagement("tok-forbidden")
	h.repo.add(e)

	err := h.svc.CloseEngagement(context.Background(), ports.Actor{ID: uuid.New()}, e.ID, "")
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden error, got %v", err)
	}

	stored, _ := h.repo.GetByID(context.Background(), e.ID)
	if stored.OutreachStatus != domain.OutreachSent {
		t.Fatalf("forbidden close must not mutate status, got %q", stored.OutreachStatus)
	}
}

func TestResetEngagementClearsMarkersKeepsActivities(t *testing.T) {
	h := newHarness()
	e := sentEngagement("tok-reset")
	openedAt := time.Now()
	msgID := "msg-1"
	e.OutreachStatus = domain.OutreachOpened
	e.OutreachOpenedAt = &openedAt
	e.OutreachFirstMessageID = &msgID
	h.repo.add(e)

	// Seed a pre-existing activity that must survive the reset.
	_, _ = h.repo.AppendActivity(context.Background(), repository.AppendActivityParams{
		EngagementID: e.ID,
		Type:         domain.ActivityEmailOpened,
		Metadata:     &domain.EmailOpenedMetadata{OpenToken: "tok-reset"},
	})

	actor := ports.Actor{ID: uuid.New(), Roles: []string{"admin"}}
	if err := h.svc.ResetEngagement(context.Background(), actor, e.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := h.repo.GetByID(context.Background(), e.ID)
	if stored.OutreachStatus != domain.OutreachIdle {
		t.Fatalf("expected IDLE, got %q", stored.OutreachStatus)
	}
	if stored.OutreachOpenedAt != nil || stored.OutreachOpenToken != nil || stored.OutreachFirstMessageID != nil {
		t.Fatal("expected outreach markers to be cleared")
	}

	opened := h.repo.activitiesOfType(domain.ActivityEmailOpened)
	if len(opened) != 1 {
		t.Fatalf("reset must not delete prior activities, got %d", len(opened))
	}
	resets := h.repo.activitiesOfType(domain.ActivityEmailReset)
	if len(resets) != 1 {
		t.Fatalf("expected 1 email_reset activity, got %d", len(resets))
	}
}

func TestResetEngagementAlreadyIdleStillAudited(t *testing.T) {
	h := newHarness()
	e := sentEngagement("tok-idle")
	e.OutreachStatus = domain.OutreachIdle
	h.repo.add(e)

	actor := ports.Actor{ID: uuid.New(), Roles: []string{"admin"}}
	if err := h.svc.ResetEngagement(context.Background(), actor, e.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := len(h.repo.activitiesOfType(domain.ActivityEmailReset)); got != 1 {
		t.Fatalf("expected reset of idle entity to still append an activity, got %d", got)
	}
}

func TestResetEngagementsCountsOnlyPoolMembers(t *testing.T) {
	h := newHarness()
	poolID := uuid.New()
	inPool := sentEngagement("tok-a")
	inPool.PoolID = &poolID
	outsider := sentEngagement("tok-b")
	otherPool := uuid.New()
	outsider.PoolID = &otherPool
	h.repo.add(inPool)
	h.repo.add(outsider)

	actor := ports.Actor{ID: uuid.New(), Roles: []string{"admin"}}
	count, err := h.svc.ResetEngagements(context.Background(), actor, poolID, []uuid.UUID{inPool.ID, outsider.ID, uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reset, got %d", count)
	}

	stored, _ := h.repo.GetByID(context.Background(), outsider.ID)
	if stored.OutreachStatus != domain.OutreachSent {
		t.Fatalf("engagement outside pool must not be reset, got %q", stored.OutreachStatus)
	}
}

// =============================================================================
// Deal rooms
// =============================================================================

func TestRecordDealRoomOpenedBumpsViewsAndDispatches(t *testing.T) {
	h := newHarness()
	e := sentEngagement("tok-room")
	e.Kind = domain.KindDealRoom
	h.repo.add(e)
	h.repo.dealRooms[e.ID] = &repository.DealRoom{EngagementID: e.ID, IsActive: true}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.svc.RecordDealRoomActivity(context.Background(), e.ID, domain.ActivityDealRoomOpened, nil); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	room, _ := h.repo.GetDealRoom(context.Background(), e.ID)
	if room.TotalViews != 2 {
		t.Fatalf("expected 2 views, got %d", room.TotalViews)
	}
	if got := h.dispatcher.count(TriggerDealRoomOpened); got != 2 {
		t.Fatalf("every view dispatches, expected 2, got %d", got)
	}
}

func TestRecordDealRoomAddonsSelected(t *testing.T) {
	h := newHarness()
	e := sentEngagement("tok-addons")
	e.Kind = domain.KindDealRoom
	h.repo.add(e)
	h.repo.dealRooms[e.ID] = &repository.DealRoom{EngagementID: e.ID, IsActive: true}

	payload := json.RawMessage(`["addon-a","addon-b"]`)
	if err := h.svc.RecordDealRoomActivity(context.Background(), e.ID, domain.ActivityAddonsSelected, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	room, _ := h.repo.GetDealRoom(context.Background(), e.ID)
	if string(room.SelectedAddons) != string(payload) {
		t.Fatalf("expected selection stored, got %s", room.SelectedAddons)
	}
	if got := len(h.repo.activitiesOfType(domain.ActivityAddonsSelected)); got != 1 {
		t.Fatalf("expected 1 activity, got %d", got)
	}
}

func TestRecordDealRoomActivityUnknownType(t *testing.T) {
	h := newHarness()
	e := sentEngagement("tok-unknown")
	h.repo.add(e)

	err := h.svc.RecordDealRoomActivity(context.Background(), e.ID, domain.ActivityType("SOMETHING_ELSE"), nil)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// =============================================================================
// Call status
// =============================================================================

func TestRecordCallStatusTransitionEnded(t *testing.T) {
	h := newHarness()
	h.provider.state = "completed"
	contact := "+31612345678"
	e := sentEngagement("tok-call")
	e.ExternalContactID = &contact
	h.repo.add(e)

	status, err := h.svc.RecordCallStatusTransition(context.Background(), contact)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != domain.CallEnded {
		t.Fatalf("expected %q, got %q", domain.CallEnded, status)
	}

	stored, _ := h.repo.GetByID(context.Background(), e.ID)
	if stored.CallStatus != domain.CallEnded {
		t.Fatalf("expected persisted call status, got %q", stored.CallStatus)
	}
	if got := len(h.repo.activitiesOfType(domain.ActivityCallEnded)); got != 1 {
		t.Fatalf("expected 1 call_ended activity, got %d", got)
	}
	if got := h.dispatcher.count(TriggerCallEnded); got != 1 {
		t.Fatalf("expected 1 CALL_ENDED dispatch, got %d", got)
	}
}

func TestRecordCallStatusTransitionAbsentCall(t *testing.T) {
	h := newHarness()
	h.provider.state = ""

	status, err := h.svc.RecordCallStatusTransition(context.Background(), "+31600000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != domain.CallInitiated {
		t.Fatalf("absent provider state must map to INITIATED, got %q", status)
	}
	if len(h.repo.activities) != 0 {
		t.Fatal("no mapped engagement means no activity")
	}
}

func TestRecordCallStatusTransitionProviderErrorSwallowed(t *testing.T) {
	h := newHarness()
	h.provider.err = context.DeadlineExceeded
	contact := "+31611111111"
	e := sentEngagement("tok-callerr")
	e.ExternalContactID = &contact
	h.repo.add(e)

	status, err := h.svc.RecordCallStatusTransition(context.Background(), contact)
	if err != nil {
		t.Fatalf("provider failure must not surface: %v", err)
	}
	if status != domain.CallInitiated {
		t.Fatalf("expected conservative INITIATED, got %q", status)
	}
}
