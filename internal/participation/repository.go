package participation

import (
	"context"
	"fmt"
	"time"

	"waitline/internal/shared/transaction"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the Participation Store. Calls made with a context carrying
// an open transaction join it.
type Repository interface {
	CountConfirmed(ctx context.Context, eventID uuid.UUID) (int, error)
	IsConfirmed(ctx context.Context, eventID, userID uuid.UUID) (bool, error)
	Confirm(ctx context.Context, eventID, userID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CountConfirmed(ctx context.Context, eventID uuid.UUID) (int, error) {
	var count int64
	err := transaction.DB(ctx, r.db).
		Model(&Participation{}).
		Where("event_id = ? AND status = ?", eventID, StatusConfirmed).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return int(count), nil
}

func (r *repository) IsConfirmed(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	var count int64
	err := transaction.DB(ctx, r.db).
		Model(&Participation{}).
		Where("event_id = ? AND user_id = ? AND status = ?", eventID, userID, StatusConfirmed).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check participation: %w", err)
	}
	return count > 0, nil
}

// Confirm inserts the participation or revives a cancelled one. The unique
// (event_id, user_id) index makes concurrent confirmations collapse into one row.
func (r *repository) Confirm(ctx context.Context, eventID, userID uuid.UUID) error {
	now := time.Now().UTC()
	p := &Participation{
		ID:          uuid.New(),
		EventID:     eventID,
		UserID:      userID,
		Status:      StatusConfirmed,
		ConfirmedAt: now,
	}

	err := transaction.DB(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "event_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"status":       StatusConfirmed,
				"confirmed_at": now,
				"cancelled_at": nil,
				"updated_at":   now,
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Eq{Column: clause.Column{Table: "participations", Name: "status"}, Value: StatusCancelled},
			}},
		}).
		Create(p).Error
	if err != nil {
		return fmt.Errorf("failed to confirm participation: %w", err)
	}
	return nil
}
