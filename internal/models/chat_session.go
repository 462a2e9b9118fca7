package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionType distinguishes kinds of chat allocations.
type SessionType string

// SessionTypeDailyMatch is the only type issued today.
const SessionTypeDailyMatch SessionType = "DAILY_MATCH"

// ChannelIDMaxLen is the hard bound imposed by the chat provider's namespace.
const ChannelIDMaxLen = 30

// ChatSession represents a 1-on-1 chat allocation between two matched members.
// It is written once by the session issuer and is read-only afterwards.
type ChatSession struct {
	// ID is the unique session identifier (UUID).
	ID string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	// ParticipantA is the member id behind EntryAID.
	ParticipantA string `gorm:"type:varchar(64);not null;index;check:chk_session_distinct,participant_a <> participant_b" json:"participant_a"`
	// ParticipantB is the member id behind EntryBID.
	ParticipantB string `gorm:"type:varchar(64);not null;index" json:"participant_b"`
	// EntryAID and EntryBID are the matched queue entries, stored in
	// ascending order. Their pair is unique, which makes issuing idempotent.
	EntryAID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_session_pair,priority:1" json:"-"`
	EntryBID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_session_pair,priority:2" json:"-"`
	// ChannelID is handed to the chat provider.
	ChannelID string `gorm:"type:varchar(30);not null;uniqueIndex" json:"channel_id"`
	// Type is always DAILY_MATCH for now.
	Type SessionType `gorm:"type:varchar(16);not null" json:"type"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime:false" json:"created_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
}

// TableName implements the GORM tabler interface.
func (ChatSession) TableName() string { return "chat_session" }

// BeforeCreate fills in the session id.
func (s *ChatSession) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return
}

// HasParticipant reports whether memberID is one of the two participants.
func (s *ChatSession) HasParticipant(memberID string) bool {
	return memberID != "" && (s.ParticipantA == memberID || s.ParticipantB == memberID)
}

// PartnerOf returns the other participant, or "" if memberID is not in the session.
func (s *ChatSession) PartnerOf(memberID string) string {
	switch memberID {
	case s.ParticipantA:
		return s.ParticipantB
	case s.ParticipantB:
		return s.ParticipantA
	default:
		return ""
	}
}

// IsExpiredAt reports whether the session is void at now.
func (s *ChatSession) IsExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
