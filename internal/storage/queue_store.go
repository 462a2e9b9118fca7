package storage

import (
	"context"
	"dailymatch/backend/internal/models"
	"errors"
	"time"

	"gorm.io/gorm"
)

// activeScope selects entries that block their member from enqueueing:
// every PENDING entry and MATCHED entries whose chat window is still open.
func activeScope(memberID string, now time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("member_id = ?", memberID).
			Where("status = ? OR (status = ? AND expires_at > ?)",
				models.QueueStatusPending, models.QueueStatusMatched, now)
	}
}

// Enqueue створює новий запис у черзі. Повертає ErrAlreadyQueued, якщо в
// учасника вже є активний запис, і ErrUnknownRank для незареєстрованого рангу.
func (s *Service) Enqueue(ctx context.Context, memberID, rank string, ttl time.Duration, now time.Time) (*models.QueueEntry, error) {
	entry := &models.QueueEntry{
		MemberID:  memberID,
		Rank:      rank,
		Status:    models.QueueStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
		Version:   1,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.QueueEntry{}).Scopes(activeScope(memberID, now)).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return models.ErrAlreadyQueued
		}
		return tx.Create(entry).Error
	})

	switch {
	case err == nil:
		return entry, nil
	case errors.Is(err, models.ErrAlreadyQueued):
		return nil, err
	case isUniqueViolation(err):
		// Lost a concurrent enqueue for the same member to the pending index.
		return nil, models.ErrAlreadyQueued
	case isForeignKeyViolation(err):
		return nil, models.ErrUnknownRank
	default:
		return nil, unavailable("enqueue", err)
	}
}

// FindActiveEntry повертає активний запис учасника або nil, якщо його немає.
func (s *Service) FindActiveEntry(ctx context.Context, memberID string, now time.Time) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	err := s.DB.WithContext(ctx).
		Scopes(activeScope(memberID, now)).
		Order("created_at desc").
		First(&entry).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("find active entry", err)
	}
	return &entry, nil
}

// FindPendingCandidates returns pairable same-rank entries of other members,
// longest-waiting first.
func (s *Service) FindPendingCandidates(ctx context.Context, rank, excludeMemberID string, now time.Time) ([]models.QueueEntry, error) {
	var candidates []models.QueueEntry
	err := s.DB.WithContext(ctx).
		Where("status = ? AND rank = ?", models.QueueStatusPending, rank).
		Where("member_id <> ?", excludeMemberID).
		Where("expires_at > ?", now).
		Order("created_at asc").
		Order("id asc").
		Find(&candidates).Error
	if err != nil {
		return nil, unavailable("find candidates", err)
	}
	return candidates, nil
}

// GetEntry returns the entry with the given id, or nil if there is none.
func (s *Service) GetEntry(ctx context.Context, id string) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get entry", err)
	}
	return &entry, nil
}

// TransitionToMatched pairs a and b in one transaction. Each row is updated
// only if it is still PENDING, unexpired and at the version the caller read;
// if either update misses, nothing is written and ErrRaceLost is returned.
// On success a and b are updated in place.
func (s *Service) TransitionToMatched(ctx context.Context, a, b *models.QueueEntry, now, activeUntil time.Time) error {
	if a.ID == b.ID || a.MemberID == b.MemberID || a.Rank != b.Rank {
		return models.ErrInvalidPair
	}

	// Lock rows in a fixed order so two pairings never wait on each other.
	first, second := a, b
	if second.ID < first.ID {
		first, second = second, first
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, step := range [][2]*models.QueueEntry{{first, second}, {second, first}} {
			entry, partner := step[0], step[1]
			res := tx.Model(&models.QueueEntry{}).
				Where("id = ? AND status = ? AND version = ?", entry.ID, models.QueueStatusPending, entry.Version).
				Where("expires_at > ?", now).
				Updates(map[string]interface{}{
					"status":          models.QueueStatusMatched,
					"matched_with_id": partner.ID,
					"updated_at":      now,
					"expires_at":      activeUntil,
					"version":         gorm.Expr("version + 1"),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != 1 {
				return models.ErrRaceLost
			}
		}
		return nil
	})

	if errors.Is(err, models.ErrRaceLost) {
		return err
	}
	if err != nil {
		return unavailable("transition to matched", err)
	}

	for _, step := range [][2]*models.QueueEntry{{a, b}, {b, a}} {
		entry, partnerID := step[0], step[1].ID
		entry.Status = models.QueueStatusMatched
		entry.MatchedWithID = &partnerID
		entry.UpdatedAt = now
		entry.ExpiresAt = activeUntil
		entry.Version++
	}
	return nil
}

// TransitionToExpired retires a PENDING entry whose deadline has passed.
// It returns false if the entry changed since it was read, e.g. because a
// concurrent pairing claimed it first.
func (s *Service) TransitionToExpired(ctx context.Context, entry *models.QueueEntry, now time.Time) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.QueueEntry{}).
		Where("id = ? AND status = ? AND version = ?", entry.ID, models.QueueStatusPending, entry.Version).
		Where("expires_at <= ?", now).
		Updates(map[string]interface{}{
			"status":     models.QueueStatusExpired,
			"updated_at": now,
			"version":    gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, unavailable("transition to expired", res.Error)
	}
	if res.RowsAffected != 1 {
		return false, nil
	}

	entry.Status = models.QueueStatusExpired
	entry.UpdatedAt = now
	entry.Version++
	return true, nil
}

// Cancel moves the member's PENDING entry to CANCELLED. It returns false if
// the member has nothing pending.
func (s *Service) Cancel(ctx context.Context, memberID string, now time.Time) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.QueueEntry{}).
		Where("member_id = ? AND status = ?", memberID, models.QueueStatusPending).
		Updates(map[string]interface{}{
			"status":     models.QueueStatusCancelled,
			"updated_at": now,
			"version":    gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, unavailable("cancel", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// FindExpiredPending returns PENDING entries whose deadline is at or before now.
// A non-positive limit means no limit.
func (s *Service) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	q := s.DB.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", models.QueueStatusPending, now).
		Order("expires_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, unavailable("find expired pending", err)
	}
	return entries, nil
}

// FindMatchedSince returns entries matched at or after since, for wait-time analytics.
func (s *Service) FindMatchedSince(ctx context.Context, since time.Time) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	err := s.DB.WithContext(ctx).
		Where("status = ? AND updated_at >= ?", models.QueueStatusMatched, since).
		Order("updated_at asc").
		Find(&entries).Error
	if err != nil {
		return nil, unavailable("find matched", err)
	}
	return entries, nil
}
