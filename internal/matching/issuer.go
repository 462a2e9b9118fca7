package matching

import (
	"context"
	"dailymatch/backend/internal/models"
	"dailymatch/backend/internal/storage"
	"time"

	"github.com/rs/zerolog/log"
)

// SessionIssuer hands a matched pair its chat session.
type SessionIssuer struct {
	Sessions        storage.SessionStore
	TTL             time.Duration
	ChannelIDPrefix string
	ChannelIDMaxLen int
	Now             func() time.Time
}

// NewSessionIssuer Constructor
func NewSessionIssuer(s storage.SessionStore, ttl time.Duration, prefix string, maxLen int) *SessionIssuer {
	return &SessionIssuer{
		Sessions:        s,
		TTL:             ttl,
		ChannelIDPrefix: prefix,
		ChannelIDMaxLen: maxLen,
		Now:             utcNow,
	}
}

// CreateSession returns the session of the matched pair (a, b), creating it
// on first call. Both entries must be MATCHED with each other.
func (i *SessionIssuer) CreateSession(ctx context.Context, a, b *models.QueueEntry) (*models.ChatSession, error) {
	if !matchedWith(a, b) || !matchedWith(b, a) || a.MemberID == b.MemberID {
		return nil, models.ErrInvalidPair
	}

	// Order by entry id so (a, b) and (b, a) map to the same row.
	first, second := a, b
	if second.ID < first.ID {
		first, second = second, first
	}

	maxLen := i.ChannelIDMaxLen
	if maxLen <= 0 || maxLen > models.ChannelIDMaxLen {
		maxLen = models.ChannelIDMaxLen
	}

	now := i.Now()
	session, err := i.Sessions.InsertSessionIfAbsent(ctx, &models.ChatSession{
		ParticipantA: first.MemberID,
		ParticipantB: second.MemberID,
		EntryAID:     first.ID,
		EntryBID:     second.ID,
		ChannelID:    NewChannelID(i.ChannelIDPrefix, maxLen, now),
		Type:         models.SessionTypeDailyMatch,
		CreatedAt:    now,
		ExpiresAt:    now.Add(i.TTL),
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("module", "matching.issuer").
		Str("session_id", session.ID).
		Str("channel_id", session.ChannelID).
		Msg("session ready")
	return session, nil
}

func matchedWith(e, partner *models.QueueEntry) bool {
	return e.Status == models.QueueStatusMatched &&
		e.MatchedWithID != nil &&
		*e.MatchedWithID == partner.ID
}
