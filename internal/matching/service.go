// Package matching is the daily matching engine: it admits verified members
// into the queue, pairs them by rank and issues their chat sessions.
package matching

import (
	"context"
	"dailymatch/backend/internal/analysis"
	"dailymatch/backend/internal/config"
	"dailymatch/backend/internal/events"
	"dailymatch/backend/internal/models"
	"dailymatch/backend/internal/storage"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// Service is the matching facade used by the web layer. It is stateless;
// any number of instances may serve the same database concurrently.
type Service struct {
	Members  storage.MemberStore
	Queue    storage.QueueStore
	Sessions storage.SessionStore

	Gate     *RankGate
	Finder   *MatchFinder
	Issuer   *SessionIssuer
	Channels ChannelProvider
	Events   events.Publisher

	QueueTTL time.Duration
	Producer string
	Now      func() time.Time
}

// NewService wires the engine components over store.
func NewService(store storage.Storage, cfg config.MatchingConfig, pub events.Publisher, channels ChannelProvider) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	pub = events.Logged{Next: pub}
	return &Service{
		Members:  store,
		Queue:    store,
		Sessions: store,
		Gate:     NewRankGate(cfg.Ranks),
		Finder:   NewMatchFinder(store, cfg.SessionTTL),
		Issuer:   NewSessionIssuer(store, cfg.SessionTTL, cfg.ChannelIDPrefix, cfg.ChannelIDMaxLen),
		Channels: channels,
		Events:   pub,
		QueueTTL: cfg.QueueTTL,
		Producer: config.DefaultEventProducer,
		Now:      utcNow,
	}
}

// SetClock replaces the clock of the facade and of every component it owns.
func (s *Service) SetClock(now func() time.Time) {
	s.Now = now
	s.Finder.Now = now
	s.Issuer.Now = now
}

// RequestMatch puts the member in the queue and tries to pair them at once.
// A member who is already queued or matched gets their current status back.
func (s *Service) RequestMatch(ctx context.Context, memberID string) (models.MatchStatus, error) {
	member, err := s.Members.GetMember(ctx, memberID)
	if err != nil {
		return idle(), err
	}
	if member == nil || !s.Gate.CanEnqueue(member) {
		return idle(), models.ErrNotVerified
	}

	now := s.Now()
	active, err := s.Queue.FindActiveEntry(ctx, memberID, now)
	if err != nil {
		return idle(), err
	}
	if active != nil {
		// A stale pending entry resolves to idle after being expired lazily;
		// anything else is reported as is.
		status, err := s.resolve(ctx, active)
		if err != nil || status.Status != models.MatchStateIdle {
			return status, err
		}
	}

	entry, err := s.Queue.Enqueue(ctx, memberID, member.Rank, s.QueueTTL, now)
	if errors.Is(err, models.ErrAlreadyQueued) {
		// A concurrent request for the same member got there first.
		active, err := s.Queue.FindActiveEntry(ctx, memberID, now)
		if err != nil {
			return idle(), err
		}
		if active == nil {
			return idle(), models.ErrAlreadyQueued
		}
		return s.resolve(ctx, active)
	}
	if err != nil {
		return idle(), err
	}

	log.Info().
		Str("module", "matching").
		Str("member_id", memberID).
		Str("entry_id", entry.ID).
		Str("rank", entry.Rank).
		Msg("member entered queue")
	s.publish(ctx, events.TypeQueueEntered, now, events.MatchEvent{
		MemberID: memberID,
		EntryID:  entry.ID,
		Rank:     entry.Rank,
		Status:   string(models.MatchStateWaiting),
	}, "")

	return s.resolve(ctx, entry)
}

// PollMatchStatus reports the member's state. A waiting member gets another
// pairing attempt as a side effect.
func (s *Service) PollMatchStatus(ctx context.Context, memberID string) (models.MatchStatus, error) {
	active, err := s.Queue.FindActiveEntry(ctx, memberID, s.Now())
	if err != nil {
		return idle(), err
	}
	if active == nil {
		return idle(), nil
	}
	return s.resolve(ctx, active)
}

// CancelMatch withdraws the member's pending entry. Without one it does nothing.
func (s *Service) CancelMatch(ctx context.Context, memberID string) error {
	now := s.Now()
	cancelled, err := s.Queue.Cancel(ctx, memberID, now)
	if err != nil {
		return err
	}
	if cancelled {
		log.Info().Str("module", "matching").Str("member_id", memberID).Msg("match request cancelled")
		s.publish(ctx, events.TypeQueueCancelled, now, events.MatchEvent{
			MemberID: memberID,
			Status:   string(models.MatchStateIdle),
		}, "")
	}
	return nil
}

// FetchSession returns the session to one of its participants while it is live.
func (s *Service) FetchSession(ctx context.Context, sessionID, memberID string) (*models.ChatSession, error) {
	session, err := s.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, models.ErrNotFound
	}
	if !session.HasParticipant(memberID) {
		return nil, models.ErrForbidden
	}
	if session.IsExpiredAt(s.Now()) {
		return nil, models.ErrSessionExpired
	}
	return session, nil
}

// EmbedSession renders the chat widget of a live session for one participant.
func (s *Service) EmbedSession(ctx context.Context, sessionID, memberID string) (string, error) {
	session, err := s.FetchSession(ctx, sessionID, memberID)
	if err != nil {
		return "", err
	}

	nickname := memberID
	member, err := s.Members.GetMember(ctx, memberID)
	if err != nil {
		return "", err
	}
	if member != nil && member.Nickname != "" {
		nickname = member.Nickname
	}
	return s.Channels.Embed(ctx, session.ChannelID, nickname)
}

// RecordRank is the Rank Verifier's entry point.
func (s *Service) RecordRank(ctx context.Context, memberID, rank string) error {
	if !s.Gate.KnownRank(rank) {
		return models.ErrUnknownRank
	}
	if err := s.Members.SetRank(ctx, memberID, rank, s.Now()); err != nil {
		return err
	}
	log.Info().Str("module", "matching").Str("member_id", memberID).Str("rank", rank).Msg("rank verified")
	return nil
}

// WaitTimes summarises how long members matched since since had waited.
func (s *Service) WaitTimes(ctx context.Context, since time.Time) ([]analysis.RankWaitStats, error) {
	entries, err := s.Queue.FindMatchedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	return analysis.WaitTimesByRank(entries), nil
}

// resolve turns an entry into the status reported to its member. It is the
// single place where pairing and session issuing happen, for both requests
// and polls.
func (s *Service) resolve(ctx context.Context, entry *models.QueueEntry) (models.MatchStatus, error) {
	now := s.Now()

	switch entry.Status {
	case models.QueueStatusMatched:
		if !entry.IsActiveAt(now) || entry.MatchedWithID == nil {
			return idle(), nil
		}
		partner, err := s.Queue.GetEntry(ctx, *entry.MatchedWithID)
		if err != nil {
			return idle(), err
		}
		if partner == nil {
			return idle(), models.ErrNotFound
		}
		return s.matched(ctx, entry, partner, false)

	case models.QueueStatusPending:
		if !entry.IsPairableAt(now) {
			expired, err := s.expire(ctx, entry, now)
			if err != nil {
				return idle(), err
			}
			if expired {
				return idle(), nil
			}
			// Claimed by a concurrent pairing just before its deadline.
			if entry.Status == models.QueueStatusMatched {
				return s.resolve(ctx, entry)
			}
			return idle(), nil
		}

		outcome, err := s.Finder.TryPair(ctx, entry)
		if err != nil {
			return waiting(), err
		}
		if !outcome.Paired {
			// TryPair refreshes entry after a lost race; a cancel or expiry
			// that landed meanwhile decides the status.
			if !entry.IsPairableAt(s.Now()) {
				return s.resolve(ctx, entry)
			}
			return waiting(), nil
		}
		return s.matched(ctx, entry, outcome.Partner, outcome.Claimed)

	default:
		return idle(), nil
	}
}

// matched issues (or looks up) the pair's session. The side that performed
// the pairing announces it to both members.
func (s *Service) matched(ctx context.Context, entry, partner *models.QueueEntry, announce bool) (models.MatchStatus, error) {
	session, err := s.Issuer.CreateSession(ctx, entry, partner)
	if err != nil {
		return waiting(), err
	}

	if announce {
		now := s.Now()
		for _, e := range []*models.QueueEntry{entry, partner} {
			s.publish(ctx, events.TypeMatchFound, now, events.MatchEvent{
				MemberID:  e.MemberID,
				EntryID:   e.ID,
				Rank:      e.Rank,
				Status:    string(models.MatchStateMatched),
				SessionID: session.ID,
				WaitedMS:  e.UpdatedAt.Sub(e.CreatedAt).Milliseconds(),
			}, session.ID)
		}
	}

	return models.MatchStatus{Status: models.MatchStateMatched, SessionID: session.ID}, nil
}

// expire retires a pending entry past its deadline. If the conditional
// update misses, entry is refreshed from the store.
func (s *Service) expire(ctx context.Context, entry *models.QueueEntry, now time.Time) (bool, error) {
	ok, err := s.Queue.TransitionToExpired(ctx, entry, now)
	if err != nil {
		return false, err
	}
	if ok {
		s.publish(ctx, events.TypeQueueExpired, now, events.MatchEvent{
			MemberID: entry.MemberID,
			EntryID:  entry.ID,
			Rank:     entry.Rank,
			Status:   string(models.MatchStateIdle),
			WaitedMS: now.Sub(entry.CreatedAt).Milliseconds(),
		}, "")
		return true, nil
	}

	fresh, err := s.Queue.GetEntry(ctx, entry.ID)
	if err != nil {
		return false, err
	}
	if fresh != nil {
		*entry = *fresh
	}
	return false, nil
}

func (s *Service) publish(ctx context.Context, typ events.Type, at time.Time, data events.MatchEvent, correlationID string) {
	env := events.New(typ, s.Producer, at, data)
	if correlationID != "" {
		env = env.WithCorrelation(correlationID)
	}
	_ = s.Events.Publish(ctx, env)
}

func idle() models.MatchStatus    { return models.MatchStatus{Status: models.MatchStateIdle} }
func waiting() models.MatchStatus { return models.MatchStatus{Status: models.MatchStateWaiting} }
