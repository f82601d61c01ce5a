package server

import (
	"errors"
	"log/slog"

	"murmur/internal/middleware"
	"murmur/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts a route parameter as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(models.ReasonInvalidField, "Invalid ID"))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// mapServiceError returns the HTTP status for a service or repository error.
func mapServiceError(err error) int {
	return models.StatusFor(err)
}

// respondServiceError writes err using its mapped status. Causes of internal
// errors are logged here and never sent to the client.
func respondServiceError(c *fiber.Ctx, err error) error {
	status := mapServiceError(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}
	return models.RespondWithError(c, status, err)
}

func invalidBody(c *fiber.Ctx) error {
	return models.RespondWithError(c, fiber.StatusBadRequest,
		models.NewValidationError(models.ReasonInvalidField, "Invalid request body"))
}

// currentUser returns the user loaded by LoadUser.
func currentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals("user").(*models.User)
	return user
}

// withAuth prefixes h with the auth gate: token verification, then user lookup.
func (s *Server) withAuth(h fiber.Handler) []fiber.Handler {
	return []fiber.Handler{middleware.TokenRequired(s.tokens), s.LoadUser, h}
}

// LoadUser resolves the verified user ID to its row. A token for a user that
// no longer exists is rejected with 401.
func (s *Server) LoadUser(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError(models.ReasonUnauthorized, "Authorization header required"))
	}

	user, err := s.userRepo.GetByID(c.UserContext(), userID)
	if models.HasReason(err, models.ReasonUserNotFound) {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError(models.ReasonUserNotFound, "User not found"))
	}
	if err != nil {
		return respondServiceError(c, err)
	}

	c.Locals("user", user)
	return c.Next()
}
