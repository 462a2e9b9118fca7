package matching_test

import (
	"context"
	"dailymatch/backend/internal/models"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockQueueStore struct {
	mock.Mock
}

func (m *MockQueueStore) Enqueue(ctx context.Context, memberID, rank string, ttl time.Duration, now time.Time) (*models.QueueEntry, error) {
	args := m.Called(ctx, memberID, rank, ttl, now)
	entry, _ := args.Get(0).(*models.QueueEntry)
	return entry, args.Error(1)
}

func (m *MockQueueStore) FindActiveEntry(ctx context.Context, memberID string, now time.Time) (*models.QueueEntry, error) {
	args := m.Called(ctx, memberID, now)
	entry, _ := args.Get(0).(*models.QueueEntry)
	return entry, args.Error(1)
}

func (m *MockQueueStore) FindPendingCandidates(ctx context.Context, rank, excludeMemberID string, now time.Time) ([]models.QueueEntry, error) {
	args := m.Called(ctx, rank, excludeMemberID, now)
	entries, _ := args.Get(0).([]models.QueueEntry)
	return entries, args.Error(1)
}

func (m *MockQueueStore) GetEntry(ctx context.Context, id string) (*models.QueueEntry, error) {
	args := m.Called(ctx, id)
	entry, _ := args.Get(0).(*models.QueueEntry)
	return entry, args.Error(1)
}

func (m *MockQueueStore) TransitionToMatched(ctx context.Context, a, b *models.QueueEntry, now, activeUntil time.Time) error {
	args := m.Called(ctx, a, b, now, activeUntil)
	return args.Error(0)
}

func (m *MockQueueStore) TransitionToExpired(ctx context.Context, entry *models.QueueEntry, now time.Time) (bool, error) {
	args := m.Called(ctx, entry, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockQueueStore) Cancel(ctx context.Context, memberID string, now time.Time) (bool, error) {
	args := m.Called(ctx, memberID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockQueueStore) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.QueueEntry, error) {
	args := m.Called(ctx, now, limit)
	entries, _ := args.Get(0).([]models.QueueEntry)
	return entries, args.Error(1)
}

func (m *MockQueueStore) FindMatchedSince(ctx context.Context, since time.Time) ([]models.QueueEntry, error) {
	args := m.Called(ctx, since)
	entries, _ := args.Get(0).([]models.QueueEntry)
	return entries, args.Error(1)
}

type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) InsertSessionIfAbsent(ctx context.Context, session *models.ChatSession) (*models.ChatSession, error) {
	args := m.Called(ctx, session)
	s, _ := args.Get(0).(*models.ChatSession)
	return s, args.Error(1)
}

func (m *MockSessionStore) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*models.ChatSession)
	return s, args.Error(1)
}

func (m *MockSessionStore) FindSessionsExpiredBetween(ctx context.Context, from, to time.Time) ([]models.ChatSession, error) {
	args := m.Called(ctx, from, to)
	s, _ := args.Get(0).([]models.ChatSession)
	return s, args.Error(1)
}

type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func pending(id, member, rank string) models.QueueEntry {
	return models.QueueEntry{
		ID:        id,
		MemberID:  member,
		Rank:      rank,
		Status:    models.QueueStatusPending,
		CreatedAt: t0,
		UpdatedAt: t0,
		ExpiresAt: t0.Add(time.Hour),
		Version:   1,
	}
}
