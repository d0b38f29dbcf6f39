// Package services – UserService
//
// This file implements UserService, which mirrors identity-provider accounts
// into the local users table. Accounts are upserted idempotently so that the
// first authenticated write, a sign-in, and a provider webhook can all race
// on "ensure user exists" without conflict. Deletion cascades to the user's
// images and swaps through the repository layer.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/vestyhq/go-vesty-backend/internal/domain"
	"github.com/vestyhq/go-vesty-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// UserService provides account-level operations backed by the users table.
type UserService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// Ensure upserts the account row for the given subject id. Repeated calls
// with the same id are idempotent; the display name is refreshed on every
// call and the email whenever the session or webhook actually carried one.
func (s *UserService) Ensure(ctx context.Context, id, email, displayName string) (*domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Ensure",
		trace.WithAttributes(attribute.String("user.id", id)),
	)
	defer span.End()

	return repo.UpsertUser(ctx, s.DB, strings.TrimSpace(id), strings.TrimSpace(email), strings.TrimSpace(displayName))
}

// Get fetches a user by subject id.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	u, err := repo.GetUser(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// Delete removes a user together with all of their images and swaps. The
// cascade is performed explicitly in the repository so the semantics hold
// regardless of the configured backend.
func (s *UserService) Delete(ctx context.Context, id string) error {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("user.id", id)),
	)
	defer span.End()

	err := repo.DeleteUser(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}
