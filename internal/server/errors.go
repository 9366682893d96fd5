package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Rana718/petquest/internal/auth"
	"github.com/Rana718/petquest/internal/form"
	"github.com/Rana718/petquest/internal/game"
	"github.com/Rana718/petquest/internal/gateway"
	"github.com/Rana718/petquest/internal/schema"
	"github.com/Rana718/petquest/internal/upload"
)

// errorStatus maps an error to its HTTP status and client message.
func errorStatus(err error) (int, string) {
	var (
		fe       *fiber.Error
		notFound *schema.NotFoundError
		discover *schema.DiscoveryError
		invalid  *gateway.ValidationError
		query    *gateway.QueryError
		input    *form.InputError
		up       *upload.Error
	)

	switch {
	case errors.As(err, &fe):
		return fe.Code, fe.Message
	case errors.As(err, &notFound), errors.Is(err, gateway.ErrRowNotFound), game.IsNotFound(err):
		return fiber.StatusNotFound, err.Error()
	case errors.As(err, &invalid), errors.As(err, &input):
		return fiber.StatusBadRequest, err.Error()
	case errors.As(err, &query):
		if query.Malformed() {
			return fiber.StatusBadRequest, err.Error()
		}
		return fiber.StatusInternalServerError, err.Error()
	case errors.As(err, &discover):
		return fiber.StatusInternalServerError, err.Error()
	case errors.As(err, &up):
		if up.Rejected {
			return fiber.StatusBadRequest, err.Error()
		}
		return fiber.StatusInternalServerError, err.Error()
	case errors.Is(err, auth.ErrUnauthenticated):
		return fiber.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, auth.ErrForbidden):
		return fiber.StatusForbidden, "Forbidden"
	case errors.Is(err, game.ErrPetNotOwned):
		return fiber.StatusForbidden, err.Error()
	case errors.Is(err, game.ErrAlreadyJoined),
		errors.Is(err, game.ErrFriendshipExists),
		errors.Is(err, game.ErrSelfFriendship),
		errors.Is(err, game.ErrMessageInvalid),
		errors.Is(err, game.ErrPetInvalid),
		errors.Is(err, game.ErrSpeciesInvalid),
		errors.Is(err, game.ErrQuestInvalid),
		errors.Is(err, game.ErrCadenceInvalid):
		return fiber.StatusBadRequest, err.Error()
	}
	return fiber.StatusInternalServerError, err.Error()
}

// handleError writes {"error": message}. Server errors are logged.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status, msg := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func badRequest(msg string) error {
	return fiber.NewError(fiber.StatusBadRequest, msg)
}
