// Package domain defines the persistence models for users, images, and
// outfit swaps. These types are mapped with GORM and form the core data
// layer of the Vesty application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// ImageKind classifies an image row by its role in the try-on flow.
type ImageKind string

const (
	// ImageKindPerson is an uploaded photo of the user.
	ImageKindPerson ImageKind = "source_person"
	// ImageKindOutfit is an uploaded photo of an outfit.
	ImageKindOutfit ImageKind = "source_outfit"
	// ImageKindResult is a generated try-on composite.
	ImageKindResult ImageKind = "result"
)

// Valid reports whether k is one of the known image classifications.
func (k ImageKind) Valid() bool {
	switch k {
	case ImageKindPerson, ImageKindOutfit, ImageKindResult:
		return true
	}
	return false
}

// SwapStatus is the lifecycle state of a swap attempt.
type SwapStatus string

const (
	SwapStatusPending    SwapStatus = "pending"
	SwapStatusProcessing SwapStatus = "processing"
	SwapStatusCompleted  SwapStatus = "completed"
	SwapStatusFailed     SwapStatus = "failed"
)

// Terminal reports whether s is a final state. Completed and failed swaps
// never change status again.
func (s SwapStatus) Terminal() bool {
	return s == SwapStatusCompleted || s == SwapStatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal,
// monotonic status change: pending → processing → {completed | failed}.
// Completion always passes through processing; failure may strike either
// non-terminal state, since the pipeline can die before its first patch
// lands (a pending row that never reached processing still gets its error
// recorded).
func (s SwapStatus) CanTransitionTo(next SwapStatus) bool {
	switch s {
	case SwapStatusPending:
		return next == SwapStatusProcessing || next == SwapStatusFailed
	case SwapStatusProcessing:
		return next == SwapStatusCompleted || next == SwapStatusFailed
	}
	return false
}

// User represents an account mirrored from the hosted identity provider.
// The primary key is the provider's immutable subject id; rows are upserted
// idempotently on first sign-in, first authenticated write, or webhook event.
//
// Fields:
//   - ID: identity-provider subject id (external, immutable primary key).
//   - Email: unique address reported by the provider. Nullable: sessions
//     without an email claim (and the dev header fallback) must not collide
//     with each other under the unique index, and NULLs never do.
//   - DisplayName: optional human-readable name.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
type User struct {
	ID          string         `json:"id"           gorm:"type:varchar(64);primaryKey"`
	Email       *string        `json:"email,omitempty" gorm:"type:varchar(255);uniqueIndex"`
	DisplayName string         `json:"display_name" gorm:"type:varchar(255)"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Image represents a stored binary accepted by the upload pipeline. The row
// holds metadata only; bytes live in object storage behind URL/StorageKey.
// Rows are append-mostly: created once per accepted upload, patched only for
// locator/metadata fixes. Locators are opaque to the data layer.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: owning user (indexed together with Kind for history views).
//   - Kind: classification from {source_person, source_outfit, result}.
//   - URL: retrievable locator returned by the object store.
//   - StorageKey: object key used for signed-URL minting and deletion.
//   - Filename / SizeBytes / ContentType: upload metadata after normalization.
//   - Width / Height: intrinsic pixel dimensions after normalization.
type Image struct {
	ID          string         `json:"id"           gorm:"type:char(36);primaryKey"`
	UserID      string         `json:"user_id"      gorm:"type:varchar(64);not null;index:idx_owner_kind,priority:1"`
	Kind        ImageKind      `json:"kind"         gorm:"type:varchar(16);not null;index:idx_owner_kind,priority:2;check:kind IN ('source_person','source_outfit','result')"`
	URL         string         `json:"url"          gorm:"type:text;not null"`
	StorageKey  string         `json:"-"            gorm:"type:text;not null"`
	Filename    string         `json:"filename"     gorm:"type:varchar(255)"`
	SizeBytes   int64          `json:"size_bytes"`
	ContentType string         `json:"content_type" gorm:"type:varchar(64)"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	CreatedAt   time.Time      `json:"created_at"   gorm:"index:idx_owner_kind,priority:3"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`

	// User is the owning account. Images go away with their user (the repo
	// layer also cascades explicitly for backends without FK actions).
	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Image.
func (Image) TableName() string { return "images" }

// Swap represents one outfit-transfer attempt. It links exactly one person
// image and one outfit image, plus one result image once generation
// succeeds. Status moves monotonically pending → processing → completed|failed,
// and a set result reference is immutable thereafter.
type Swap struct {
	ID            string     `json:"id"              gorm:"type:char(36);primaryKey"`
	UserID        string     `json:"user_id"         gorm:"type:varchar(64);not null;index:idx_user_swaps,priority:1"`
	PersonImageID string     `json:"person_image_id" gorm:"type:char(36);not null;index"`
	OutfitImageID string     `json:"outfit_image_id" gorm:"type:char(36);not null;index"`
	ResultImageID *string    `json:"result_image_id,omitempty" gorm:"type:char(36);index"`
	Status        SwapStatus `json:"status"          gorm:"type:varchar(16);not null;default:'pending';index;check:status IN ('pending','processing','completed','failed')"`
	Error         *string    `json:"error,omitempty" gorm:"type:text"`

	ProcessingStartedAt   *time.Time `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time `json:"processing_completed_at,omitempty"`

	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_user_swaps,priority:2"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	// Source images are protected while the swap exists; deleting the
	// result image nulls ResultImageID instead of failing.
	PersonImage Image  `json:"-" gorm:"foreignKey:PersonImageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	OutfitImage Image  `json:"-" gorm:"foreignKey:OutfitImageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	ResultImage *Image `json:"-" gorm:"foreignKey:ResultImageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	User        User   `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Swap.
func (Swap) TableName() string { return "swaps" }
