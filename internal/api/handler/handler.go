package handler

import (
	"context"
	"dailymatch/backend/internal/analysis"
	"dailymatch/backend/internal/events"
	"dailymatch/backend/internal/localization"
	"dailymatch/backend/internal/models"
	"time"
)

// MatchingService is the matching facade as seen by the HTTP layer.
type MatchingService interface {
	RequestMatch(ctx context.Context, memberID string) (models.MatchStatus, error)
	PollMatchStatus(ctx context.Context, memberID string) (models.MatchStatus, error)
	CancelMatch(ctx context.Context, memberID string) error
	FetchSession(ctx context.Context, sessionID, memberID string) (*models.ChatSession, error)
	EmbedSession(ctx context.Context, sessionID, memberID string) (string, error)
	RecordRank(ctx context.Context, memberID, rank string) error
	WaitTimes(ctx context.Context, since time.Time) ([]analysis.RankWaitStats, error)
}

// EventSubscriber feeds the status stream.
type EventSubscriber interface {
	Subscribe(ctx context.Context, memberID string) (*events.Subscription, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler містить посилання на сервіс підбору
type Handler struct {
	Matching  MatchingService
	Events    EventSubscriber
	Health    []Pinger
	Localizer *localization.Localizer
}

func NewHandler(matching MatchingService, subscriber EventSubscriber, localizer *localization.Localizer, health ...Pinger) *Handler {
	if localizer == nil {
		localizer = localization.Default()
	}
	return &Handler{
		Matching:  matching,
		Events:    subscriber,
		Health:    health,
		Localizer: localizer,
	}
}
