package matching

import (
	"context"
	"dailymatch/backend/internal/config"
	"dailymatch/backend/internal/events"
	"dailymatch/backend/internal/models"
	"dailymatch/backend/internal/storage"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Locker elects one sweeper per tick across instances.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisLocker takes a lease with SET NX PX. The lease is never released
// explicitly; it lapses before the next tick.
type RedisLocker struct {
	Redis *redis.Client
	owner string
}

// NewRedisLocker Constructor
func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{Redis: rdb, owner: uuid.NewString()}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.Redis.SetNX(ctx, key, l.owner, ttl).Result()
}

// Reaper retires PENDING entries past their deadline and reports sessions
// that expired since the previous sweep. Expired sessions are not touched;
// fetches reject them on their own.
type Reaper struct {
	Queue     storage.QueueStore
	Sessions  storage.SessionStore
	Events    events.Publisher
	Lock      Locker
	Interval  time.Duration
	BatchSize int
	Producer  string
	Now       func() time.Time

	mu        sync.Mutex
	lastSweep time.Time
	logger    zerolog.Logger
}

// NewReaper Constructor
func NewReaper(q storage.QueueStore, s storage.SessionStore, pub events.Publisher, interval time.Duration) *Reaper {
	return &Reaper{
		Queue:     q,
		Sessions:  s,
		Events:    pub,
		Interval:  interval,
		BatchSize: 500,
		Producer:  config.DefaultEventProducer,
		Now:       utcNow,
		logger:    log.With().Str("module", "matching.reaper").Logger(),
	}
}

// Sweep expires due entries and returns how many it expired. An entry that
// a concurrent pairing claims first is left alone. Store errors are
// returned after the rest of the sweep has run.
func (r *Reaper) Sweep(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	expired := 0

	due, err := r.Queue.FindExpiredPending(ctx, now, r.BatchSize)
	if err != nil {
		errs = append(errs, err)
	}
	for i := range due {
		entry := &due[i]
		ok, err := r.Queue.TransitionToExpired(ctx, entry, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		expired++
		r.publish(ctx, events.TypeQueueExpired, now, events.MatchEvent{
			MemberID: entry.MemberID,
			EntryID:  entry.ID,
			Rank:     entry.Rank,
			Status:   string(models.MatchStateIdle),
			WaitedMS: now.Sub(entry.CreatedAt).Milliseconds(),
		})
	}

	from := r.lastSweep
	if from.IsZero() {
		from = now.Add(-r.Interval)
	}
	sessions, err := r.Sessions.FindSessionsExpiredBetween(ctx, from, now)
	if err != nil {
		errs = append(errs, err)
	} else {
		for _, s := range sessions {
			for _, member := range []string{s.ParticipantA, s.ParticipantB} {
				r.publish(ctx, events.TypeSessionExpired, now, events.MatchEvent{
					MemberID:  member,
					Status:    string(models.MatchStateIdle),
					SessionID: s.ID,
				})
			}
		}
		r.lastSweep = now
	}

	if expired > 0 || len(sessions) > 0 {
		r.logger.Info().Int("entries_expired", expired).Int("sessions_expired", len(sessions)).Msg("sweep finished")
	}
	return expired, errors.Join(errs...)
}

// Run sweeps every Interval until ctx is cancelled. Failures are logged and
// retried on the next tick.
func (r *Reaper) Run(ctx context.Context) {
	r.logger.Info().Dur("interval", r.Interval).Msg("reaper started")

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("reaper stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reaper) tick(ctx context.Context) {
	if r.Lock != nil {
		ok, err := r.Lock.TryLock(ctx, config.SweepLockKey, r.Interval/2)
		if err != nil {
			r.logger.Warn().Err(err).Msg("failed to take sweep lock, sweeping anyway")
		} else if !ok {
			return
		}
	}
	if _, err := r.Sweep(ctx, r.Now()); err != nil {
		r.logger.Error().Err(err).Msg("sweep failed, retrying next tick")
	}
}

func (r *Reaper) publish(ctx context.Context, typ events.Type, at time.Time, data events.MatchEvent) {
	if r.Events == nil {
		return
	}
	_ = r.Events.Publish(ctx, events.New(typ, r.Producer, at, data))
}
