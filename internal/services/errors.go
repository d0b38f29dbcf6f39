// Package services defines the business logic for users, images, and outfit
// swaps. This file centralizes common service-level error values so that they
// can be consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes should be performed at the
// handler layer.
package services

import "errors"

var (
	// ErrUserNotFound indicates that the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrImageNotFound indicates that the requested image does not exist or
	// is not accessible to the current user.
	ErrImageNotFound = errors.New("image not found")

	// ErrImageInUse is returned when a delete targets an image still
	// referenced by a swap as its person or outfit source.
	ErrImageInUse = errors.New("image is referenced by a swap")

	// ErrSwapNotFound indicates that the requested swap does not exist or is
	// not accessible to the current user.
	ErrSwapNotFound = errors.New("swap not found")

	// ErrInvalidKind is returned when an image classification filter is not
	// one of source_person, source_outfit, result.
	ErrInvalidKind = errors.New("invalid image kind")

	// ErrInvalidAction is returned when a presigned-URL request asks for an
	// action other than view or download.
	ErrInvalidAction = errors.New("action must be view or download")
)
