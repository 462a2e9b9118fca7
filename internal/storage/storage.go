package storage

import (
	"context"
	"dailymatch/backend/internal/models"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueueStore is the durable queue of members waiting to be paired. It is the
// single source of truth for queue state; every mutation that depends on a
// prior read is a conditional update on (status, version).
type QueueStore interface {
	Enqueue(ctx context.Context, memberID, rank string, ttl time.Duration, now time.Time) (*models.QueueEntry, error)
	FindActiveEntry(ctx context.Context, memberID string, now time.Time) (*models.QueueEntry, error)
	FindPendingCandidates(ctx context.Context, rank, excludeMemberID string, now time.Time) ([]models.QueueEntry, error)
	GetEntry(ctx context.Context, id string) (*models.QueueEntry, error)
	TransitionToMatched(ctx context.Context, a, b *models.QueueEntry, now, activeUntil time.Time) error
	TransitionToExpired(ctx context.Context, entry *models.QueueEntry, now time.Time) (bool, error)
	Cancel(ctx context.Context, memberID string, now time.Time) (bool, error)
	FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.QueueEntry, error)
	FindMatchedSince(ctx context.Context, since time.Time) ([]models.QueueEntry, error)
}

// SessionStore persists chat sessions issued to matched pairs.
type SessionStore interface {
	InsertSessionIfAbsent(ctx context.Context, session *models.ChatSession) (*models.ChatSession, error)
	GetSession(ctx context.Context, id string) (*models.ChatSession, error)
	FindSessionsExpiredBetween(ctx context.Context, from, to time.Time) ([]models.ChatSession, error)
}

// MemberStore is the engine's view of members, fed by the Identity Provider
// (nicknames) and the Rank Verifier (rank and verification status).
type MemberStore interface {
	GetMember(ctx context.Context, id string) (*models.Member, error)
	EnsureMember(ctx context.Context, id, nickname string) (*models.Member, error)
	SetRank(ctx context.Context, id, rank string, now time.Time) error
	RevokeRank(ctx context.Context, id string) error
}

// Storage is everything the service needs from the database.
type Storage interface {
	QueueStore
	SessionStore
	MemberStore
	Ping(ctx context.Context) error
}

// Service implements Storage on top of GORM. It works against PostgreSQL in
// production and SQLite in tests.
type Service struct {
	DB *gorm.DB
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// Migrate creates or updates the schema, including the partial unique index
// that allows only one PENDING entry per member, and registers ranks as
// values the queue accepts.
func (s *Service) Migrate(ranks ...string) error {
	if err := s.DB.AutoMigrate(
		&models.KnownRank{},
		&models.Member{},
		&models.QueueEntry{},
		&models.ChatSession{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	const onePending = `CREATE UNIQUE INDEX IF NOT EXISTS idx_queue_one_pending
		ON matching_queue (member_id) WHERE status = 'PENDING'`
	if err := s.DB.Exec(onePending).Error; err != nil {
		return fmt.Errorf("failed to create pending index: %w", err)
	}
	return s.RegisterRanks(context.Background(), ranks...)
}

// RegisterRanks adds ranks to known_ranks. Existing ranks are kept.
func (s *Service) RegisterRanks(ctx context.Context, ranks ...string) error {
	if len(ranks) == 0 {
		return nil
	}
	rows := make([]models.KnownRank, 0, len(ranks))
	for _, r := range ranks {
		rows = append(rows, models.KnownRank{Name: r})
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to register ranks: %w", err)
	}
	return nil
}

// Ping checks that the database answers.
func (s *Service) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return unavailable("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// unavailable marks err as a transient store failure while keeping the
// driver error in the chain.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, models.ErrStoreUnavailable, err)
}

// isForeignKeyViolation recognises a rank missing from known_ranks.
func isForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key")
}

// isUniqueViolation recognises duplicate-key errors from both dialects,
// translated or not.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
