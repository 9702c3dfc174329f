package service

import (
	"context"

	"smart_bartender/internal/models"
)

// StatusSource is the live state the monitoring view is projected from.
type StatusSource interface {
	Status() models.SystemStatus
	Reservoir(id int) (models.ReservoirStatus, error)
}

type MonitoringService struct {
	source StatusSource
}

func NewMonitoringService(source StatusSource) *MonitoringService {
	return &MonitoringService{source: source}
}

// GetStatus returns the current pour/refill projection. Maps are never nil so
// the JSON shape is stable for the UI.
func (s *MonitoringService) GetStatus(ctx context.Context) (models.SystemStatus, error) {
	if err := ctx.Err(); err != nil {
		return models.SystemStatus{}, err
	}
	st := s.source.Status()
	if st.ReservoirLevels == nil {
		st.ReservoirLevels = map[string]float64{}
	}
	if st.Refilling == nil {
		st.Refilling = map[string]bool{}
	}
	if st.Reservoirs == nil {
		st.Reservoirs = []models.ReservoirStatus{}
	}
	return st, nil
}

func (s *MonitoringService) GetReservoir(ctx context.Context, id int) (models.ReservoirStatus, error) {
	if err := ctx.Err(); err != nil {
		return models.ReservoirStatus{}, err
	}
	return s.source.Reservoir(id)
}
