package models

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid arguments")
	ErrNotReady        = errors.New("not ready")
	// ErrDependencyUnavailable — внешняя зависимость (OSG/MIS/MS/JQ) недоступна
	// после всех ретраев на границе.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
