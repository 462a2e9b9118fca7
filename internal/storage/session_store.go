package storage

import (
	"context"
	"dailymatch/backend/internal/models"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InsertSessionIfAbsent saves session unless one already exists for the same
// entry pair, and returns whichever row is stored. EntryAID must sort before
// EntryBID.
func (s *Service) InsertSessionIfAbsent(ctx context.Context, session *models.ChatSession) (*models.ChatSession, error) {
	db := s.DB.WithContext(ctx)

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_a_id"}, {Name: "entry_b_id"}},
		DoNothing: true,
	}).Create(session).Error
	if err != nil {
		return nil, unavailable("insert session", err)
	}

	var stored models.ChatSession
	err = db.Where("entry_a_id = ? AND entry_b_id = ?", session.EntryAID, session.EntryBID).
		First(&stored).Error
	if err != nil {
		return nil, unavailable("read session", err)
	}
	return &stored, nil
}

// GetSession returns the session with the given id, or nil if there is none.
func (s *Service) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get session", err)
	}
	return &session, nil
}

// FindSessionsExpiredBetween returns sessions whose expiry falls in (from, to].
func (s *Service) FindSessionsExpiredBetween(ctx context.Context, from, to time.Time) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	err := s.DB.WithContext(ctx).
		Where("expires_at > ? AND expires_at <= ?", from, to).
		Order("expires_at asc").
		Find(&sessions).Error
	if err != nil {
		return nil, unavailable("find expired sessions", err)
	}
	return sessions, nil
}
