package sensor

import "errors"

var (
	// ErrInvalidMode is returned for an unknown or missing service type.
	ErrInvalidMode = errors.New("invalid service type")
	// ErrConfigurationBuild is returned when the provider rejects a configuration.
	ErrConfigurationBuild = errors.New("service configuration rejected")
	// ErrOutOfRange is returned for an option outside its permitted range.
	ErrOutOfRange = errors.New("option out of range")
)
