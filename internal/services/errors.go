// Package services defines the business logic for user registration, phrase
// import, enrichment, and clearing. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; the
// webhook handler translates them into user-facing messages.
package services

import "errors"

var (
	// ErrInsufficientColumns is returned when the imported table is narrower
	// than the highest required column position.
	ErrInsufficientColumns = errors.New("table has fewer columns than required")

	// ErrImportAborted is returned when a store-level failure stops an import
	// before all rows were processed. Counts accumulated so far are still
	// reported alongside it.
	ErrImportAborted = errors.New("import aborted by store failure")
)
