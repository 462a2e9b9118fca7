package matching_test

import (
	"context"
	"dailymatch/backend/internal/config"
	"dailymatch/backend/internal/events"
	"dailymatch/backend/internal/matching"
	"dailymatch/backend/internal/models"
	"dailymatch/backend/internal/storage"
	"dailymatch/backend/internal/storage/storagetest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// fakeClock is a manually advanced clock shared by all components.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recorder keeps every published envelope.
type recorder struct {
	mu     sync.Mutex
	events []events.Envelope
}

func (r *recorder) Publish(_ context.Context, env events.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, env)
	return nil
}

func (r *recorder) OfType(typ events.Type) []events.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Envelope
	for _, e := range r.events {
		if e.Meta.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type engine struct {
	svc    *matching.Service
	store  *storage.Service
	clock  *fakeClock
	events *recorder
	cfg    config.MatchingConfig
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	store := storagetest.NewService(t)
	cfg := config.DefaultMatching()
	rec := &recorder{}
	clk := newFakeClock()

	svc := matching.NewService(store, cfg, rec, matching.WidgetProvider{BaseURL: "https://chat.test/widget"})
	svc.SetClock(clk.Now)

	return &engine{svc: svc, store: store, clock: clk, events: rec, cfg: cfg}
}

func (e *engine) verify(t *testing.T, memberID, rank string) {
	t.Helper()
	ctx := context.Background()
	_, err := e.store.EnsureMember(ctx, memberID, "nick-"+memberID)
	require.NoError(t, err)
	require.NoError(t, e.store.SetRank(ctx, memberID, rank, e.clock.Now()))
}

func (e *engine) newReaper() *matching.Reaper {
	r := matching.NewReaper(e.store, e.store, e.events, e.cfg.SweepInterval)
	r.Now = e.clock.Now
	return r
}

func (e *engine) entries(t *testing.T, memberID string) []models.QueueEntry {
	t.Helper()
	var rows []models.QueueEntry
	require.NoError(t, e.store.DB.Where("member_id = ?", memberID).Order("created_at asc").Find(&rows).Error)
	return rows
}

// assertInvariants checks the queue table as a whole: one active entry per
// member and symmetric pairing.
func (e *engine) assertInvariants(t *testing.T) {
	t.Helper()
	now := e.clock.Now()

	var rows []models.QueueEntry
	require.NoError(t, e.store.DB.Find(&rows).Error)

	byID := make(map[string]models.QueueEntry, len(rows))
	active := make(map[string]int)
	for _, r := range rows {
		byID[r.ID] = r
		if r.IsActiveAt(now) {
			active[r.MemberID]++
		}
		assert.False(t, r.UpdatedAt.Before(r.CreatedAt), "updated_at >= created_at for %s", r.ID)
	}
	for member, n := range active {
		assert.LessOrEqual(t, n, 1, "member %s has %d active entries", member, n)
	}

	for _, r := range rows {
		if r.Status != models.QueueStatusMatched {
			assert.Nil(t, r.MatchedWithID, "only matched entries reference a partner")
			continue
		}
		require.NotNil(t, r.MatchedWithID)
		partner, ok := byID[*r.MatchedWithID]
		require.True(t, ok, "partner of %s exists", r.ID)
		assert.Equal(t, models.QueueStatusMatched, partner.Status)
		require.NotNil(t, partner.MatchedWithID)
		assert.Equal(t, r.ID, *partner.MatchedWithID, "pairing is symmetric")
		assert.NotEqual(t, r.MemberID, partner.MemberID)
		assert.Equal(t, r.Rank, partner.Rank)
	}
}
