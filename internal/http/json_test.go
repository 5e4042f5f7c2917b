package httpx

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/ahava-health/ahava-api/internal/errors"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperrors.Unauthenticated("x"), http.StatusUnauthorized},
		{apperrors.Forbidden("x"), http.StatusForbidden},
		{apperrors.ValidationField("email", "x"), http.StatusBadRequest},
		{apperrors.Conflict("x"), http.StatusConflict},
		{apperrors.NotFound("x"), http.StatusNotFound},
		{apperrors.RateLimited("x"), http.StatusTooManyRequests},
		{apperrors.Unavailable(errors.New("down"), "x"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusForError(tt.err), tt.err.Error())
	}
}
