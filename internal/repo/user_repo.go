// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a user is not found, functions return gorm.ErrRecordNotFound
//     (exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vestyhq/go-vesty-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// UpsertUser inserts a user row keyed by the identity-provider subject id,
// or updates the mutable fields (email, display name) when the row already
// exists. The operation is idempotent: calling it twice with identical input
// leaves exactly one row.
//
// An empty email is stored as NULL and never overwrites a known address:
// writes arriving through sessions without an email claim would otherwise
// erase what the webhook already recorded.
func UpsertUser(ctx context.Context, db *gorm.DB, id, email, displayName string) (*domain.User, error) {
	u := &domain.User{
		ID:          id,
		DisplayName: displayName,
	}
	updates := []string{"display_name", "updated_at"}
	if email != "" {
		u.Email = &email
		updates = append(updates, "email")
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(updates),
		}).
		Create(u).Error
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUser fetches a user by subject id, or ErrNotFound if missing.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser removes a user and cascades to all of the user's swaps and
// images inside one transaction. Swaps go first so the RESTRICT constraints
// on source images cannot block the image sweep. Returns ErrNotFound when
// the user does not exist.
//
// The email is cleared before the soft delete: the tombstone row keeps its
// unique index entry otherwise, which would block the same address from ever
// registering again.
func DeleteUser(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.User{}).Where("id = ?", id).
			Update("email", nil).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Where("user_id = ?", id).Delete(&domain.Swap{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", id).Delete(&domain.Image{}).Error
	})
}
