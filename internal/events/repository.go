package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrEventNotFound = errors.New("event not found")

type Repository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	GetAll(ctx context.Context, query EventListQuery) ([]Event, int64, error)

	// waitlist.EventStore
	GetCapacity(ctx context.Context, eventID uuid.UUID) (int, error)
	Exists(ctx context.Context, eventID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, event *Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	var event Event
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (r *repository) GetAll(ctx context.Context, query EventListQuery) ([]Event, int64, error) {
	var (
		events []Event
		total  int64
	)

	db := r.db.WithContext(ctx).Model(&Event{})
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if query.Limit <= 0 {
		query.Limit = 20
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	err := db.Order("date_time ASC").
		Offset((query.Page - 1) * query.Limit).
		Limit(query.Limit).
		Find(&events).Error
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (r *repository) GetCapacity(ctx context.Context, eventID uuid.UUID) (int, error) {
	var event Event
	err := r.db.WithContext(ctx).Select("total_capacity").Where("id = ?", eventID).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("event %s: %w", eventID, ErrEventNotFound)
		}
		return 0, fmt.Errorf("failed to get event capacity: %w", err)
	}
	return event.TotalCapacity, nil
}

func (r *repository) Exists(ctx context.Context, eventID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Event{}).Where("id = ?", eventID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check event: %w", err)
	}
	return count > 0, nil
}
