// Package services defines the business logic for charge computations,
// uploaded files, and calculation sets. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

// Computation-related errors.
var (
	// ErrFileNotFound indicates that a referenced file hash does not resolve
	// to a stored file in the caller's storage area.
	ErrFileNotFound = errors.New("file not found")

	// ErrComputationNotFound indicates that the requested computation does
	// not exist or is not accessible to the current user.
	ErrComputationNotFound = errors.New("computation not found")

	// ErrLoadFailed is returned when a structure file cannot be parsed into
	// molecules (corrupt or unsupported format, zero molecules).
	ErrLoadFailed = errors.New("failed to load molecules")

	// ErrComputationFailed is returned when the charge engine fails for a
	// specific molecule set, method, and parameter combination.
	ErrComputationFailed = errors.New("charge calculation failed")

	// ErrNoSuitableMethod is returned when no method was specified and no
	// method is suitable for every file in the batch.
	ErrNoSuitableMethod = errors.New("no suitable calculation method")

	// ErrEmptyWork is returned when a computation request names no
	// (config, files) work at all.
	ErrEmptyWork = errors.New("no files to calculate")
)

// Upload-related errors.
var (
	// ErrEmptyUpload is returned when an upload contains no bytes.
	ErrEmptyUpload = errors.New("uploaded file is empty")

	// ErrInvalidFileType is returned when an uploaded file does not carry a
	// supported structure-file extension.
	ErrInvalidFileType = errors.New("unsupported file type")

	// ErrFileTooLarge is returned when a single uploaded file exceeds the
	// configured per-file size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrQuotaExceeded is returned when storing an upload would exceed the
	// owner's storage quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)
