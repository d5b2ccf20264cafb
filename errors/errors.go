package errors

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrUnauthenticated     = fmt.Errorf("unauthenticated")
	ErrInvalidCredentials  = fmt.Errorf("invalid credentials")
	ErrDuplicateUser       = fmt.Errorf("username or custom id already taken")
	ErrInvalidCustomID     = fmt.Errorf("custom id must start with a letter and contain only letters and digits")
	ErrInvalidRegistration = fmt.Errorf("invalid registration request")
	ErrUserNotFound        = fmt.Errorf("user not found")
	ErrTokenGeneration     = fmt.Errorf("token generation failed")
	ErrSlowConnection      = fmt.Errorf("connection buffer full")
	ErrWorkerPanic         = fmt.Errorf("worker panic")
)

// HTTPStatus maps domain errors to an HTTP status code for the REST
// surface. Unknown errors are treated as persistence/internal faults.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, ErrInvalidCredentials):
		return fiber.StatusUnauthorized
	case errors.Is(err, ErrDuplicateUser):
		return fiber.StatusConflict
	case errors.Is(err, ErrInvalidCustomID), errors.Is(err, ErrInvalidRegistration):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrUserNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}
