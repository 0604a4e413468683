package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"engagement_backend/internal/engagement/domain"
	"engagement_backend/internal/engagement/ports"
	"engagement_backend/internal/engagement/repository"
	"engagement_backend/internal/engagement/service"
	"engagement_backend/internal/events"
	"engagement_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// trackingRepo overrides only the methods the tracking flows touch; any
// other call panics through the embedded nil interface.
type trackingRepo struct {
	repository.EngagementRepository

	engagement repository.Engagement
	meetingURL *string
	gotToken   string
}

func (r *trackingRepo) GetByOpenToken(_ context.Context, token string) (repository.Engagement, error) {
	r.gotToken = token
	if r.engagement.OutreachOpenToken != nil && *r.engagement.OutreachOpenToken == token {
		return r.engagement, nil
	}
	return repository.Engagement{}, repository.ErrNotFound
}

func (r *trackingRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Engagement, error) {
	if r.engagement.ID == id {
		return r.engagement, nil
	}
	return repository.Engagement{}, repository.ErrNotFound
}

func (r *trackingRepo) ResolveMeetingURL(_ context.Context, id uuid.UUID) (*string, error) {
	if r.engagement.ID != id {
		return nil, repository.ErrNotFound
	}
	return r.meetingURL, nil
}

func (r *trackingRepo) MarkOpened(context.Context, uuid.UUID, time.Time) (bool, error) {
	return true, nil
}

func (r *trackingRepo) SetOutreachStatus(context.Context, uuid.UUID, domain.OutreachStatus) error {
	return nil
}

func (r *trackingRepo) AppendActivity(_ context.Context, params repository.AppendActivityParams) (repository.Activity, error) {
	return repository.Activity{ID: uuid.New(), EngagementID: params.EngagementID, Type: params.Type}, nil
}

type allowGate struct{}

func (allowGate) CanMutate(context.Context, ports.Actor, uuid.UUID, ports.Action) (bool, error) {
	return true, nil
}

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(string, ports.WorkflowPayload) {}

type noopProvider struct{}

func (noopProvider) LookupCallState(context.Context, string) (string, error) { return "", nil }

type noopBus struct{}

func (noopBus) Publish(context.Context, events.Event) {}

func (noopBus) PublishSync(context.Context, events.Event) error { return nil }

func (noopBus) Subscribe(string, events.Handler) {}

func newTrackingRouter(repo *trackingRepo) *gin.Engine {
	log := logger.New("development")
	svc := service.New(repo, allowGate{}, noopDispatcher{}, noopProvider{}, noopBus{}, log, "NL")
	router := gin.New()
	NewTrackingHandler(svc, log).RegisterRoutes(router.Group("/t"))
	return router
}

func TestTrackOpenServesPixelForUnknownToken(t *testing.T) {
	router := newTrackingRouter(&trackingRepo{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/t/open/does-not-exist", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("pixel must fail open, got status %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %q", ct)
	}
	if !bytes.Equal(w.Body.Bytes(), pngPixel) {
		t.Fatal("response body is not the pixel")
	}
	if cc := w.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Fatalf("pixel must not be cacheable, got %q", cc)
	}
}

func TestTrackOpenStripsPNGSuffix(t *testing.T) {
	token := "tok-1"
	repo := &trackingRepo{engagement: repository.Engagement{
		ID:                uuid.New(),
		OrganizationID:    uuid.New(),
		OutreachOpenToken: &token,
	}}
	router := newTrackingRouter(repo)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/t/open/tok-1.png", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if repo.gotToken != "tok-1" {
		t.Fatalf("expected suffix-stripped token lookup, got %q", repo.gotToken)
	}
}

func TestTrackOpenLegacyServesGIF(t *testing.T) {
	router := newTrackingRouter(&trackingRepo{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/t/open?oid=whatever", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/gif" {
		t.Fatalf("expected image/gif, got %q", ct)
	}
	if !bytes.Equal(w.Body.Bytes(), gifPixel) {
		t.Fatal("response body is not the pixel")
	}
}

func TestTrackClickMissingURL(t *testing.T) {
	router := newTrackingRouter(&trackingRepo{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/t/click", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestTrackClickRedirectsWithScheme(t *testing.T) {
	router := newTrackingRouter(&trackingRepo{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/t/click?url=example.com%2Fpricing", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "https://example.com/pricing" {
		t.Fatalf("expected scheme-prefixed redirect, got %q", loc)
	}
}

func TestTrackMeetingRedirects(t *testing.T) {
	meetingURL := "https://cal.example.com/agent"
	repo := &trackingRepo{
		engagement: repository.Engagement{ID: uuid.New(), OrganizationID: uuid.New()},
		meetingURL: &meetingURL,
	}
	router := newTrackingRouter(repo)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/t/meeting/"+repo.engagement.ID.String(), nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != meetingURL {
		t.Fatalf("expected redirect to %q, got %q", meetingURL, loc)
	}
}

func TestTrackMeetingUnknownID(t *testing.T) {
	router := newTrackingRouter(&trackingRepo{})

	for _, path := range []string{
		"/t/meeting/not-a-uuid",
		"/t/meeting/" + uuid.NewString(),
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, w.Code)
		}
	}
}

func TestTrackMeetingNoURLConfigured(t *testing.T) {
	repo := &trackingRepo{engagement: repository.Engagement{ID: uuid.New()}}
	router := newTrackingRouter(repo)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/t/meeting/"+repo.engagement.ID.String(), nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
