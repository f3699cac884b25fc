package config

import "errors"

// Configuration errors. Callers match them with errors.Is.
var (
	ErrUnknownEngine     = errors.New("unknown engine: must be rod or http")
	ErrNoSiteOrigin      = errors.New("site origin cannot be empty")
	ErrInvalidTimeout    = errors.New("invalid timeout: must be positive")
	ErrInvalidRange      = errors.New("invalid delay range")
	ErrInvalidScrollStep = errors.New("invalid scroll step: must be positive")
	ErrNoDataDir         = errors.New("data directory cannot be empty")

	// ErrTargetsNotFound is returned when no targets file could be located.
	ErrTargetsNotFound = errors.New("targets file not found")

	// ErrNoTargets is returned when the targets file has no entries for the
	// selected mode.
	ErrNoTargets = errors.New("no targets configured")

	// ErrInvalidCategory is returned for a category without name or url.
	ErrInvalidCategory = errors.New("invalid category: name and url are required")

	// ErrUnknownMode is returned for a crawl mode other than urls or categories.
	ErrUnknownMode = errors.New("unknown mode: use urls or categories")
)
