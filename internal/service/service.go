package service

import (
	"context"

	"smart_bartender/internal/bartender"
	"smart_bartender/internal/config"
	"smart_bartender/internal/models"
	"smart_bartender/internal/repository"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Bartender starts pours and refills. Both return once the job is accepted.
type Bartender interface {
	StartPour(name string) (models.PourResult, error)
	StartRefill(id int) (models.RefillResult, error)
	ListRecipes() []string
	Recipes() map[string]models.Recipe
}

// Manual drives single lines for diagnostics.
type Manual interface {
	Switch(kind string, id int, action string) error
}

// Monitoring exposes the read-only projection of the bar.
type Monitoring interface {
	GetStatus(ctx context.Context) (models.SystemStatus, error)
	GetReservoir(ctx context.Context, id int) (models.ReservoirStatus, error)
}

// EventLog exposes the journal with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.BarEvent, error)
}

type Service struct {
	Bartender
	Manual
	Monitoring
	EventLog
	Authorization
}

// NewService wires the repositories and the coordinator into the services
// consumed by the HTTP layer.
func NewService(repos *repository.Repository, coord *bartender.Coordinator, auth config.AuthConfig) *Service {
	return &Service{
		Bartender:     coord,
		Manual:        NewManualService(coord),
		Monitoring:    NewMonitoringService(coord),
		EventLog:      NewEventLogService(repos.EventRepo),
		Authorization: NewAuthService(repos.Auth, auth.SigningKey, auth.TokenTTL),
	}
}
