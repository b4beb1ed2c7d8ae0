package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Service interface {
	CreateEvent(ctx context.Context, adminID uuid.UUID, req CreateEventRequest) (*Event, error)
	GetEventByID(ctx context.Context, id uuid.UUID) (*Event, error)
	GetAllEvents(ctx context.Context, query EventListQuery) ([]Event, int64, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreateEvent(ctx context.Context, adminID uuid.UUID, req CreateEventRequest) (*Event, error) {
	status := EventStatusDraft
	if req.Status != "" {
		status = EventStatus(req.Status)
	}

	event := &Event{
		ID:            uuid.New(),
		Name:          req.Name,
		Description:   req.Description,
		Venue:         req.Venue,
		DateTime:      req.DateTime.UTC(),
		TotalCapacity: req.TotalCapacity,
		Status:        status,
		CreatedBy:     adminID,
		CreatedAt:     time.Now(),
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *service) GetEventByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetAllEvents(ctx context.Context, query EventListQuery) ([]Event, int64, error) {
	return s.repo.GetAll(ctx, query)
}
