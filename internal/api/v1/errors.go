package v1

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/boardsync/internal/domain"
)

// statusError maps a service error onto the HTTP status huma reports.
func statusError(msg string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound(msg, err)
	case errors.Is(err, domain.ErrConflict):
		return huma.Error409Conflict(msg, err)
	case errors.Is(err, domain.ErrInvalidCommand), errors.Is(err, domain.ErrUnknownCommand):
		return huma.Error422UnprocessableEntity(msg, err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}
