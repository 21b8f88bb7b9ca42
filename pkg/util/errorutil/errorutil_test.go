package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	t.Run("passes domain errors through wrapping", func(t *testing.T) {
		err := fmt.Errorf("stop timer: %w", NewInvalidState("no active timer", nil))
		de := ToDomainError(err)
		assert.Equal(t, CodeInvalidState, de.Code)
		assert.Equal(t, http.StatusConflict, de.HTTPStatus)
	})

	t.Run("maps missing rows to not found", func(t *testing.T) {
		de := ToDomainError(pgx.ErrNoRows)
		assert.Equal(t, CodeNotFound, de.Code)
		assert.Equal(t, http.StatusNotFound, de.HTTPStatus)
	})

	t.Run("maps malformed uuid casts to not found", func(t *testing.T) {
		err := fmt.Errorf("get ticket: %w", &pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid"})
		de := ToDomainError(err)
		assert.Equal(t, CodeNotFound, de.Code)
		assert.Equal(t, http.StatusNotFound, de.HTTPStatus)
	})

	t.Run("keeps other postgres errors internal", func(t *testing.T) {
		de := ToDomainError(&pgconn.PgError{Code: "57014"})
		assert.Equal(t, CodeInternal, de.Code)
	})

	t.Run("hides unknown errors behind internal error", func(t *testing.T) {
		de := ToDomainError(errors.New("connection reset"))
		assert.Equal(t, CodeInternal, de.Code)
		assert.Equal(t, "internal server error", de.Message)
		assert.EqualError(t, de.Unwrap(), "connection reset")
	})

	t.Run("maps fiber errors by status", func(t *testing.T) {
		de := ToDomainError(fiber.ErrNotFound)
		assert.Equal(t, CodeNotFound, de.Code)
		assert.Equal(t, http.StatusNotFound, de.HTTPStatus)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, ToDomainError(nil))
		assert.NoError(t, MapError(nil))
	})
}

func TestHasCode(t *testing.T) {
	assert.True(t, HasCode(NewConflict("timer already running", nil), CodeConflict))
	assert.False(t, HasCode(NewConflict("timer already running", nil), CodeInvalidState))
	assert.False(t, HasCode(errors.New("plain"), CodeConflict))
}
