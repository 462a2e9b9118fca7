package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VerificationStatus is the state of a member's credential check as
// reported by the Identity Provider.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "UNVERIFIED"
	VerificationPending    VerificationStatus = "PENDING"
	VerificationVerified   VerificationStatus = "VERIFIED"
)

// Member is a forum member as seen by the matching engine.
// Rank and VerificationStatus are written by the Rank Verifier once the
// member's credential is confirmed; the engine only reads them.
type Member struct {
	ID                 string             `gorm:"primaryKey" json:"id"`
	Nickname           string             `gorm:"type:text;not null;default:''" json:"nickname"`
	Rank               string             `gorm:"type:text;not null;default:''" json:"rank"`
	VerificationStatus VerificationStatus `gorm:"type:text;not null;default:'UNVERIFIED'" json:"verification_status"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// TableName pins the table name used by migrations and raw queries.
func (Member) TableName() string { return "members" }

// BeforeCreate - це хук GORM, який викликається перед створенням запису.
// Він генерує новий UUID для учасника, якщо ID ще не встановлено.
func (m *Member) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// IsVerified reports whether the Rank Verifier has confirmed the member.
func (m *Member) IsVerified() bool {
	return m != nil && m.VerificationStatus == VerificationVerified
}
