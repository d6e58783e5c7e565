package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil error", nil, ""},
		{"domain error", Invalid("op", "bad input"), EINVALID},
		{"quota error", QuotaExceeded("quota.increment", 2, 2), EQUOTA},
		{"wrapped domain error", fmt.Errorf("context: %w", Conflict("op", "dup")), ECONFLICT},
		{"plain error defaults to internal", errors.New("boom"), EINTERNAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil error", nil, ""},
		{"domain error message passes through", Invalid("op", "Session ID is required"), "Session ID is required"},
		{"internal error is masked", Internal(errors.New("pq: connection refused"), "op", "db exploded"), "An internal error occurred. Please try again later."},
		{"plain error is masked", errors.New("pq: connection refused"), "An internal error occurred. Please try again later."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorMessage(tt.err))
		})
	}
}

func TestErrorOp(t *testing.T) {
	assert.Equal(t, "profile.get", ErrorOp(Unauthorized("profile.get", "auth required")))
	assert.Equal(t, "", ErrorOp(errors.New("boom")))
	assert.Equal(t, "", ErrorOp(nil))
}

func TestQuotaExceededMessage(t *testing.T) {
	err := QuotaExceeded("quota.increment", 10, 10)

	assert.Equal(t, EQUOTA, err.Code)
	assert.Contains(t, err.Message, "10 of 10 used")
	assert.Contains(t, err.Message, "top-up")
}

func TestUnavailableUnwraps(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Unavailable(cause, "quota.increment", "Could not confirm chat start")

	assert.Equal(t, EUNAVAILABLE, ErrorCode(err))
	assert.ErrorIs(t, err, cause)
}

func TestErrorString(t *testing.T) {
	withOp := Invalid("topup.purchase", "Unknown top-up package")
	assert.Equal(t, "topup.purchase: Unknown top-up package", withOp.Error())

	withoutOp := Errorf(EINVALID, "", "Invalid JSON request body")
	assert.Equal(t, "Invalid JSON request body", withoutOp.Error())
}
