package matching

import (
	"context"
	"dailymatch/backend/internal/models"
	"dailymatch/backend/internal/storage"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// MatchFinder pairs a pending entry with the longest-waiting entry of the
// same rank. It holds no state; every decision is made against the store.
type MatchFinder struct {
	Queue storage.QueueStore
	// SessionTTL is how long a matched pair stays active (and blocks both
	// members from re-queueing).
	SessionTTL time.Duration
	Now        func() time.Time
}

// NewMatchFinder Constructor
func NewMatchFinder(q storage.QueueStore, sessionTTL time.Duration) *MatchFinder {
	return &MatchFinder{Queue: q, SessionTTL: sessionTTL, Now: utcNow}
}

// TryPair attempts to pair entry. Candidates are tried oldest first; a
// candidate lost to a concurrent pairing is skipped. If entry itself was
// claimed concurrently, the partner that claimed it is reported.
// On success entry and the partner reflect their MATCHED rows.
func (f *MatchFinder) TryPair(ctx context.Context, entry *models.QueueEntry) (models.MatchOutcome, error) {
	now := f.Now()
	if !entry.IsPairableAt(now) {
		return models.Waiting, nil
	}

	candidates, err := f.Queue.FindPendingCandidates(ctx, entry.Rank, entry.MemberID, now)
	if err != nil {
		return models.Waiting, err
	}

	for i := range candidates {
		candidate := &candidates[i]

		err := f.Queue.TransitionToMatched(ctx, entry, candidate, now, now.Add(f.SessionTTL))
		switch {
		case err == nil:
			log.Info().
				Str("module", "matching.finder").
				Str("entry_id", entry.ID).
				Str("partner_entry_id", candidate.ID).
				Str("rank", entry.Rank).
				Msg("match found")
			return models.Paired(candidate), nil

		case errors.Is(err, models.ErrRaceLost):
			partner, stop, err := f.recheck(ctx, entry)
			if err != nil {
				return models.Waiting, err
			}
			if partner != nil {
				return models.PairedElsewhere(partner), nil
			}
			if stop {
				return models.Waiting, nil
			}

		case errors.Is(err, models.ErrInvalidPair):
			// Store filters these out; a stale candidate list is the only way here.
			continue

		default:
			return models.Waiting, err
		}
	}

	return models.Waiting, nil
}

// recheck re-reads entry after a lost race and refreshes it in place.
// It returns the partner if entry was matched concurrently, or stop=true if
// entry can no longer be paired.
func (f *MatchFinder) recheck(ctx context.Context, entry *models.QueueEntry) (*models.QueueEntry, bool, error) {
	fresh, err := f.Queue.GetEntry(ctx, entry.ID)
	if err != nil {
		return nil, true, err
	}
	if fresh == nil {
		return nil, true, models.ErrNotFound
	}
	*entry = *fresh

	switch {
	case entry.Status == models.QueueStatusMatched && entry.MatchedWithID != nil:
		partner, err := f.Queue.GetEntry(ctx, *entry.MatchedWithID)
		if err != nil {
			return nil, true, err
		}
		if partner == nil {
			return nil, true, models.ErrNotFound
		}
		log.Debug().
			Str("module", "matching.finder").
			Str("entry_id", entry.ID).
			Str("partner_entry_id", partner.ID).
			Msg("entry was claimed by a concurrent pairing")
		return partner, true, nil
	case !entry.IsPairableAt(f.Now()):
		return nil, true, nil
	default:
		return nil, false, nil
	}
}

func utcNow() time.Time { return time.Now().UTC() }
