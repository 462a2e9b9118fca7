package storage

import (
	"context"
	"dailymatch/backend/internal/models"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// GetMember returns the member with the given id, or nil if unknown.
func (s *Service) GetMember(ctx context.Context, id string) (*models.Member, error) {
	var member models.Member
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get member", err)
	}
	return &member, nil
}

// EnsureMember records a member the Identity Provider vouched for the first
// time it is seen, and keeps the nickname current afterwards.
func (s *Service) EnsureMember(ctx context.Context, id, nickname string) (*models.Member, error) {
	var member models.Member

	defaults := models.Member{
		ID:                 id,
		Nickname:           nickname,
		VerificationStatus: models.VerificationUnverified,
	}

	// Attrs only apply when the row is created; the lookup is by id alone.
	result := s.DB.WithContext(ctx).Where("id = ?", id).Attrs(defaults).FirstOrCreate(&member)
	if result.Error != nil && isUniqueViolation(result.Error) {
		// A concurrent first request for the same member created the row.
		result = s.DB.WithContext(ctx).Where("id = ?", id).First(&member)
	}
	if result.Error != nil {
		return nil, unavailable("ensure member", result.Error)
	}
	if result.RowsAffected > 0 {
		log.Info().Str("module", "storage").Str("member_id", id).Msg("new member saved")
	}

	if nickname != "" && member.Nickname != nickname {
		if err := s.DB.WithContext(ctx).Model(&member).Update("nickname", nickname).Error; err != nil {
			return nil, unavailable("update nickname", err)
		}
	}
	return &member, nil
}

// SetRank is the Rank Verifier's write path: it stores the verified rank and
// marks the member VERIFIED. Unknown members are created.
func (s *Service) SetRank(ctx context.Context, id, rank string, now time.Time) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member models.Member
		err := tx.Where("id = ?", id).
			Attrs(models.Member{ID: id, VerificationStatus: models.VerificationUnverified}).
			FirstOrCreate(&member).Error
		if err != nil {
			return unavailable("set rank", err)
		}
		err = tx.Model(&member).Updates(map[string]interface{}{
			"rank":                rank,
			"verification_status": models.VerificationVerified,
			"verified_at":         now,
		}).Error
		if err != nil {
			return unavailable("set rank", err)
		}
		return nil
	})
}

// RevokeRank clears the member's rank and verification. Entries already in
// the queue keep the rank they were created with.
func (s *Service) RevokeRank(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Model(&models.Member{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"rank":                "",
			"verification_status": models.VerificationUnverified,
			"verified_at":         nil,
		})
	if res.Error != nil {
		return unavailable("revoke rank", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}
