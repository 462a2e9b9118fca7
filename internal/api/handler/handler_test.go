package handler_test

import (
	"context"
	"dailymatch/backend/internal/analysis"
	"dailymatch/backend/internal/api/handler"
	"dailymatch/backend/internal/api/middleware"
	"dailymatch/backend/internal/auth"
	"dailymatch/backend/internal/models"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockMatching struct {
	mock.Mock
}

func (m *MockMatching) RequestMatch(ctx context.Context, memberID string) (models.MatchStatus, error) {
	args := m.Called(ctx, memberID)
	return args.Get(0).(models.MatchStatus), args.Error(1)
}

func (m *MockMatching) PollMatchStatus(ctx context.Context, memberID string) (models.MatchStatus, error) {
	args := m.Called(ctx, memberID)
	return args.Get(0).(models.MatchStatus), args.Error(1)
}

func (m *MockMatching) CancelMatch(ctx context.Context, memberID string) error {
	return m.Called(ctx, memberID).Error(0)
}

func (m *MockMatching) FetchSession(ctx context.Context, sessionID, memberID string) (*models.ChatSession, error) {
	args := m.Called(ctx, sessionID, memberID)
	s, _ := args.Get(0).(*models.ChatSession)
	return s, args.Error(1)
}

func (m *MockMatching) EmbedSession(ctx context.Context, sessionID, memberID string) (string, error) {
	args := m.Called(ctx, sessionID, memberID)
	return args.String(0), args.Error(1)
}

func (m *MockMatching) RecordRank(ctx context.Context, memberID, rank string) error {
	return m.Called(ctx, memberID, rank).Error(0)
}

func (m *MockMatching) WaitTimes(ctx context.Context, since time.Time) ([]analysis.RankWaitStats, error) {
	args := m.Called(ctx, since)
	s, _ := args.Get(0).([]analysis.RankWaitStats)
	return s, args.Error(1)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

const (
	testSecret    = "jwt-secret"
	verifierToken = "verifier-secret"
)

type fixture struct {
	matching *MockMatching
	router   *gin.Engine
	tokens   *auth.TokenManager
}

func newFixture(t *testing.T, health ...handler.Pinger) *fixture {
	t.Helper()
	m := new(MockMatching)
	tokens := auth.NewTokenManager(testSecret, time.Hour)
	h := handler.NewHandler(m, nil, nil, health...)
	router := handler.SetupRouter(h, handler.RouterDeps{
		Verifier:       tokens,
		VerifierSecret: verifierToken,
	})
	return &fixture{matching: m, router: router, tokens: tokens}
}

func (f *fixture) do(t *testing.T, method, path, member string, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if member != "" {
		token, _, err := f.tokens.GenerateToken(member, "nick-"+member)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRequestMatch_ReturnsStatus(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.matching.On("RequestMatch", mock.Anything, "alice").
		Return(models.MatchStatus{Status: models.MatchStateMatched, SessionID: "s1"}, nil).Once()

	// Act
	w := f.do(t, http.MethodPost, "/api/v1/match", "alice", "")

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"matched","session_id":"s1"}`, w.Body.String())
	f.matching.AssertExpectations(t)
}

func TestPollMatchStatus_WaitingOmitsSession(t *testing.T) {
	f := newFixture(t)
	f.matching.On("PollMatchStatus", mock.Anything, "alice").
		Return(models.MatchStatus{Status: models.MatchStateWaiting}, nil)

	w := f.do(t, http.MethodGet, "/api/v1/match", "alice", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"waiting"}`, w.Body.String())
}

func TestCancelMatch(t *testing.T) {
	f := newFixture(t)
	f.matching.On("CancelMatch", mock.Anything, "alice").Return(nil)

	w := f.do(t, http.MethodDelete, "/api/v1/match", "alice", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestMatchRoutesRequireIdentity(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/match", "", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decode(t, w)["error"])
	f.matching.AssertNotCalled(t, "RequestMatch", mock.Anything, mock.Anything)
}

func TestErrorMapping(t *testing.T) {
	storeDown := fmt.Errorf("get session: %w: %w", models.ErrStoreUnavailable, errors.New("dial tcp"))

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", models.ErrNotFound, http.StatusNotFound, "not_found"},
		{"forbidden", models.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"expired", models.ErrSessionExpired, http.StatusGone, "session_expired"},
		{"store", storeDown, http.StatusServiceUnavailable, "unavailable"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.matching.On("FetchSession", mock.Anything, "s1", "alice").Return(nil, tt.err)

			w := f.do(t, http.MethodGet, "/api/v1/sessions/s1", "alice", "")

			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.code, body["error"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestRequestMatch_NotVerifiedIsLocalized(t *testing.T) {
	f := newFixture(t)
	f.matching.On("RequestMatch", mock.Anything, "alice").
		Return(models.MatchStatus{Status: models.MatchStateIdle}, models.ErrNotVerified)

	w := f.do(t, http.MethodPost, "/api/v1/match", "alice", "", "Accept-Language", "uk-UA,uk;q=0.9")

	assert.Equal(t, http.StatusForbidden, w.Code)
	body := decode(t, w)
	assert.Equal(t, "not_verified", body["error"])
	assert.Contains(t, body["message"], "підтвердженим рангом")
}

func TestFetchSession_ReturnsSession(t *testing.T) {
	f := newFixture(t)
	expires := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f.matching.On("FetchSession", mock.Anything, "s1", "alice").Return(&models.ChatSession{
		ID:           "s1",
		ParticipantA: "alice",
		ParticipantB: "bob",
		ChannelID:    "dmabc",
		Type:         models.SessionTypeDailyMatch,
		ExpiresAt:    expires,
	}, nil)

	w := f.do(t, http.MethodGet, "/api/v1/sessions/s1", "alice", "")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "dmabc", body["channel_id"])
	assert.Equal(t, "DAILY_MATCH", body["type"])
	assert.NotContains(t, body, "EntryAID")
}

func TestEmbedSession(t *testing.T) {
	f := newFixture(t)
	f.matching.On("EmbedSession", mock.Anything, "s1", "alice").Return(`<iframe src="x"></iframe>`, nil)

	w := f.do(t, http.MethodGet, "/api/v1/sessions/s1/embed", "alice", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `<iframe src="x"></iframe>`, decode(t, w)["markup"])
}

func TestRecordRank(t *testing.T) {
	f := newFixture(t)
	f.matching.On("RecordRank", mock.Anything, "alice", "Gold").Return(nil).Once()
	f.matching.On("RecordRank", mock.Anything, "alice", "Mithril").Return(models.ErrUnknownRank).Once()

	ok := f.do(t, http.MethodPost, "/internal/v1/members/alice/rank", "", `{"rank":"Gold"}`, "X-Verifier-Secret", verifierToken)
	assert.Equal(t, http.StatusOK, ok.Code)

	unknown := f.do(t, http.MethodPost, "/internal/v1/members/alice/rank", "", `{"rank":"Mithril"}`, "X-Verifier-Secret", verifierToken)
	assert.Equal(t, http.StatusBadRequest, unknown.Code)

	missing := f.do(t, http.MethodPost, "/internal/v1/members/alice/rank", "", `{}`, "X-Verifier-Secret", verifierToken)
	assert.Equal(t, http.StatusBadRequest, missing.Code)

	noSecret := f.do(t, http.MethodPost, "/internal/v1/members/alice/rank", "", `{"rank":"Gold"}`)
	assert.Equal(t, http.StatusUnauthorized, noSecret.Code)

	f.matching.AssertExpectations(t)
}

func TestWaitTimes(t *testing.T) {
	f := newFixture(t)
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	f.matching.On("WaitTimes", mock.Anything, since).Return([]analysis.RankWaitStats{
		{Rank: "Gold", Matched: 2, Average: time.Minute, Median: time.Minute, Max: 2 * time.Minute},
	}, nil)

	w := f.do(t, http.MethodGet, "/internal/v1/stats/wait-times?since=2026-03-01T00:00:00Z", "", "", "X-Verifier-Secret", verifierToken)

	assert.Equal(t, http.StatusOK, w.Code)
	ranks := decode(t, w)["ranks"].([]any)
	require.Len(t, ranks, 1)
	assert.Equal(t, "Gold", ranks[0].(map[string]any)["rank"])

	bad := f.do(t, http.MethodGet, "/internal/v1/stats/wait-times?since=yesterday", "", "", "X-Verifier-Secret", verifierToken)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestHealthz(t *testing.T) {
	healthy := newFixture(t, pingerFunc(func(context.Context) error { return nil }))
	w := healthy.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	down := newFixture(t, pingerFunc(func(context.Context) error { return errors.New("down") }))
	w = down.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRateLimitedMatchRoutes(t *testing.T) {
	m := new(MockMatching)
	m.On("PollMatchStatus", mock.Anything, "alice").Return(models.MatchStatus{Status: models.MatchStateIdle}, nil)
	tokens := auth.NewTokenManager(testSecret, time.Hour)
	limiter := middleware.NewLimiterStore(1, 1, time.Hour)
	defer limiter.Stop()

	router := handler.SetupRouter(handler.NewHandler(m, nil, nil), handler.RouterDeps{Verifier: tokens, Limiter: limiter})
	token, _, err := tokens.GenerateToken("alice", "")
	require.NoError(t, err)

	codes := make([]int, 2)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/match", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes[i] = w.Code
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
