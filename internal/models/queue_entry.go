package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QueueStatus is the lifecycle state of a QueueEntry.
type QueueStatus string

const (
	QueueStatusPending   QueueStatus = "PENDING"
	QueueStatusMatched   QueueStatus = "MATCHED"
	QueueStatusExpired   QueueStatus = "EXPIRED"
	QueueStatusCancelled QueueStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition may leave s.
func (s QueueStatus) IsTerminal() bool {
	return s == QueueStatusMatched || s == QueueStatusExpired || s == QueueStatusCancelled
}

// QueueEntry is one member's request to be paired. Rows are never deleted;
// terminal rows are kept for wait-time analytics.
type QueueEntry struct {
	// ID is generated at enqueue time.
	ID string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	// MemberID owns the entry.
	MemberID string `gorm:"type:varchar(64);not null;index:idx_queue_member" json:"member_id"`
	// Rank is copied from the member at enqueue time, so later rank changes
	// do not affect an in-flight match.
	Rank string `gorm:"type:varchar(32);not null;index:idx_queue_scan,priority:2;check:chk_queue_rank,rank <> ''" json:"rank"`
	// KnownRank ties Rank to known_ranks. It is never loaded or saved.
	KnownRank *KnownRank `gorm:"foreignKey:Rank;references:Name;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
	// Status drives the PENDING -> MATCHED | EXPIRED | CANCELLED state machine.
	Status QueueStatus `gorm:"type:varchar(16);not null;index:idx_queue_scan,priority:1;check:chk_queue_matched,status <> 'MATCHED' OR (matched_with_id IS NOT NULL AND matched_with_id <> member_id AND matched_with_id <> id)" json:"status"`
	// MatchedWithID is the partner's entry id, set only when Status is MATCHED.
	MatchedWithID *string `gorm:"type:varchar(36)" json:"matched_with_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime:false;index:idx_queue_scan,priority:3" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false;check:chk_queue_updated,updated_at >= created_at" json:"updated_at"`
	// ExpiresAt is the pairing deadline while PENDING. On MATCHED it is moved
	// to the end of the pair's chat window.
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	// Version is bumped by every transition and checked by conditional updates.
	Version int64 `gorm:"not null;default:1" json:"version"`
}

// TableName implements the GORM tabler interface.
func (QueueEntry) TableName() string { return "matching_queue" }

// BeforeCreate fills in the entry id.
func (e *QueueEntry) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return
}

// IsActiveAt reports whether the entry still blocks its member from
// enqueueing again: pending entries always do, matched entries do until
// their chat window closes.
func (e *QueueEntry) IsActiveAt(now time.Time) bool {
	switch e.Status {
	case QueueStatusPending:
		return true
	case QueueStatusMatched:
		return now.Before(e.ExpiresAt)
	default:
		return false
	}
}

// IsPairableAt reports whether the entry may still be matched.
func (e *QueueEntry) IsPairableAt(now time.Time) bool {
	return e.Status == QueueStatusPending && now.Before(e.ExpiresAt)
}
