package apperrors_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"share-service/internal/apperrors"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperrors.ErrNotFound, http.StatusNotFound},
		{apperrors.ErrForbidden, http.StatusForbidden},
		{apperrors.ErrConflict, http.StatusConflict},
		{apperrors.ErrValidation, http.StatusBadRequest},
		{apperrors.ErrUnauthenticated, http.StatusUnauthorized},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, apperrors.HTTPStatus(tc.err))
	}
}

func TestHTTPStatus_Wrapped(t *testing.T) {
	err := fmt.Errorf("share: %w", fmt.Errorf("grant: %w", apperrors.ErrConflict))
	assert.Equal(t, http.StatusConflict, apperrors.HTTPStatus(err))
}
