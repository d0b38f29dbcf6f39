// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Image model.
//
// Because rows are soft-deleted, referential rules from the data model are
// enforced here rather than left to FK actions:
//   - an image referenced by a swap as person/outfit cannot be deleted while
//     the swap exists (ErrImageInUse);
//   - deleting a result image nulls the referencing swap's result id.
//
// Functions:
//
//   - CreateImage(ctx, db, img) -> error
//     Inserts a new Image row with UUID primary key and UTC timestamp.
//
//   - GetImage(ctx, db, id, userID) -> *domain.Image, error
//     Fetches a single image by ID/userID, or ErrNotFound if missing.
//
//   - CountImages / ListImagesPage
//     Owner-scoped listing, optionally filtered by kind, newest first.
//
//   - DeleteImage(ctx, db, id, userID) -> error
//     Soft-deletes with the referential rules above.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vestyhq/go-vesty-backend/internal/domain"
)

// ErrImageInUse is returned when deletion would orphan a swap's required
// person or outfit reference.
var ErrImageInUse = errors.New("image referenced by a swap")

// CreateImage inserts a new Image row. ID and CreatedAt are assigned here
// (UUID / UTC) when unset so callers can pass a bare metadata struct.
func CreateImage(ctx context.Context, db *gorm.DB, img *domain.Image) error {
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(img).Error
}

// GetImage fetches a single image by its ID and owner (userID). If the record
// does not exist, it returns ErrNotFound. On other DB errors, the raw error
// is returned.
func GetImage(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Image, error) {
	var img domain.Image
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&img).Error
	if err != nil {
		return nil, err
	}
	return &img, nil
}

// CountImages returns the number of images owned by userID, optionally
// restricted to one kind (empty kind counts all).
func CountImages(ctx context.Context, db *gorm.DB, userID string, kind domain.ImageKind) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.Image{}).Where("user_id = ?", userID)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// ListImagesPage returns a page of images for userID ordered by creation time
// descending, optionally restricted to one kind. Use CountImages to obtain
// the total for pagination metadata.
func ListImagesPage(ctx context.Context, db *gorm.DB, userID string, kind domain.ImageKind, offset, limit int) ([]domain.Image, error) {
	q := db.WithContext(ctx).Where("user_id = ?", userID)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var out []domain.Image
	err := q.Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DeleteImage soft-deletes an image owned by userID. Deletion is rejected
// with ErrImageInUse while any swap references the image as its person or
// outfit source; swaps referencing it as their result have the reference
// nulled instead. Returns ErrNotFound when the image does not exist or is
// not owned by userID.
func DeleteImage(ctx context.Context, db *gorm.DB, id, userID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		err := tx.Model(&domain.Swap{}).
			Where("user_id = ? AND (person_image_id = ? OR outfit_image_id = ?)", userID, id, id).
			Count(&refs).Error
		if err != nil {
			return err
		}
		if refs > 0 {
			return ErrImageInUse
		}

		if err := tx.Model(&domain.Swap{}).
			Where("user_id = ? AND result_image_id = ?", userID, id).
			Update("result_image_id", nil).Error; err != nil {
			return err
		}

		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&domain.Image{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
