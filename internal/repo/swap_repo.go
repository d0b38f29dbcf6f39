// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Swap model.
//
// Lifecycle rules live here so there is a single enforcement point no matter
// which backend is configured:
//   - status changes are monotonic (pending → processing → completed|failed,
//     terminal states frozen); violations return ErrInvalidTransition;
//   - a result-image reference, once set, is never overwritten
//     (ErrResultImmutable).
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vestyhq/go-vesty-backend/internal/domain"
)

// ErrInvalidTransition is returned when a status patch would move a swap
// backwards or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid swap status transition")

// ErrResultImmutable is returned when a patch would overwrite an already-set
// result image reference.
var ErrResultImmutable = errors.New("swap result image already set")

// CreateSwap inserts a new Swap row owned by userID linking the two source
// images. The swap starts in the given status (pending when empty); the ID
// is a randomly generated UUID and CreatedAt is set to UTC.
func CreateSwap(ctx context.Context, db *gorm.DB, s *domain.Swap) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = domain.SwapStatusPending
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(s).Error
}

// GetSwap fetches a single swap by its ID and owner (userID), or ErrNotFound.
func GetSwap(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Swap, error) {
	var s domain.Swap
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CountSwaps returns the number of swaps owned by userID, optionally
// restricted to one status (empty status counts all).
func CountSwaps(ctx context.Context, db *gorm.DB, userID string, status domain.SwapStatus) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.Swap{}).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// ListSwapsPage returns a page of swaps for userID ordered by creation time
// descending, optionally restricted to one status.
func ListSwapsPage(ctx context.Context, db *gorm.DB, userID string, status domain.SwapStatus, offset, limit int) ([]domain.Swap, error) {
	q := db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []domain.Swap
	err := q.Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// SwapPatch carries the optional fields a status transition may set together
// with the new status. Nil fields are left untouched.
type SwapPatch struct {
	Status                domain.SwapStatus
	Error                 *string
	ResultImageID         *string
	ProcessingStartedAt   *time.Time
	ProcessingCompletedAt *time.Time
}

// UpdateSwapStatus applies a lifecycle patch to a swap after validating the
// transition inside a transaction. It returns ErrInvalidTransition when the
// swap is already terminal or the move is backwards, ErrResultImmutable when
// the patch would replace an existing result reference, and ErrNotFound when
// the swap does not exist for userID.
func UpdateSwapStatus(ctx context.Context, db *gorm.DB, id, userID string, patch SwapPatch) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur domain.Swap
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&cur).Error; err != nil {
			return err
		}
		if !cur.Status.CanTransitionTo(patch.Status) {
			return ErrInvalidTransition
		}
		if patch.ResultImageID != nil && cur.ResultImageID != nil {
			return ErrResultImmutable
		}

		updates := map[string]any{"status": patch.Status}
		if patch.Error != nil {
			updates["error"] = *patch.Error
		}
		if patch.ResultImageID != nil {
			updates["result_image_id"] = *patch.ResultImageID
		}
		if patch.ProcessingStartedAt != nil {
			updates["processing_started_at"] = *patch.ProcessingStartedAt
		}
		if patch.ProcessingCompletedAt != nil {
			updates["processing_completed_at"] = *patch.ProcessingCompletedAt
		}
		return tx.Model(&domain.Swap{}).Where("id = ?", id).Updates(updates).Error
	})
}
