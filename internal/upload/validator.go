// Package upload implements the image intake pipeline: pre-flight validation
// of incoming binaries and decode/resize/re-encode normalization. Both
// components are pure: no I/O, failures reported as errors, never panics.
package upload

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validation failure reasons. Each failing check has a distinct sentinel so
// callers can render precise user feedback.
var (
	ErrFileTooSmall      = errors.New("file below minimum size")
	ErrFileTooLarge      = errors.New("file exceeds maximum size")
	ErrUnsupportedType   = errors.New("unsupported content type")
	ErrUnsupportedSuffix = errors.New("unsupported file extension")
)

// allowedTypes maps accepted content types to their canonical extension
// family. JPEG, PNG, and WebP are the formats the normalizer can decode.
var allowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// allowedExtensions maps filename extensions to the same family set.
var allowedExtensions = map[string]string{
	".jpg":  "jpg",
	".jpeg": "jpg",
	".png":  "png",
	".webp": "webp",
}

// Validator checks an incoming binary's declared type, extension, and size
// against the upload policy before any decoding happens. The zero value is
// unusable; construct with NewValidator.
type Validator struct {
	minSize int64
	maxSize int64
}

// NewValidator returns a Validator enforcing [minSize, maxSize] bytes.
func NewValidator(minSize, maxSize int64) *Validator {
	return &Validator{minSize: minSize, maxSize: maxSize}
}

// Validate returns nil when the declared content type, optional filename
// extension, and byte size all pass; otherwise one of the sentinel errors
// above, wrapped with the offending value. It has no side effects.
func (v *Validator) Validate(contentType, filename string, size int64) error {
	if size < v.minSize {
		return fmt.Errorf("%w: %d bytes (minimum %d)", ErrFileTooSmall, size, v.minSize)
	}
	if size > v.maxSize {
		return fmt.Errorf("%w: %d bytes (maximum %d)", ErrFileTooLarge, size, v.maxSize)
	}

	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 { // strip parameters like charset
		ct = strings.TrimSpace(ct[:i])
	}
	if _, ok := allowedTypes[ct]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}

	if filename != "" {
		ext := strings.ToLower(filepath.Ext(filename))
		if _, ok := allowedExtensions[ext]; !ok {
			return fmt.Errorf("%w: %q", ErrUnsupportedSuffix, ext)
		}
	}
	return nil
}
