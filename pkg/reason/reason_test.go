package reason

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllKnown(t *testing.T) {
	all := All()
	assert.Len(t, all, 12)
	for _, r := range all {
		assert.True(t, r.Known(), r)
	}
	assert.False(t, Reason("Whatever").Known())
}

func TestOf(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("exchange: %w", Wrap(base, IdentityProviderError, "token endpoint failed"))

	assert.Equal(t, IdentityProviderError, Of(err))
	assert.True(t, Is(err, IdentityProviderError))
	assert.False(t, Is(err, InvalidState))
	assert.ErrorIs(t, err, base)

	assert.Equal(t, Unexpected, Of(base))
	assert.Equal(t, Unexpected, Of(nil))
	assert.Nil(t, Wrap(nil, InvalidState, "nothing"))
}

func TestErrorFormat(t *testing.T) {
	e := Newf(InvalidEmail, "rule %s failed", "email").WithDetail("claim", "email")
	assert.Equal(t, "[InvalidEmail] rule email failed", e.Error())
	require.NotNil(t, e.Details)
	assert.Equal(t, "email", e.Details["claim"])

	w := Wrap(errors.New("boom"), Unexpected, "resolve")
	assert.Equal(t, "[Unexpected] resolve: boom", w.Error())
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		r    Reason
		want int
	}{
		{InvalidState, http.StatusBadRequest},
		{MissingAuthCode, http.StatusBadRequest},
		{IdentityProviderError, http.StatusBadGateway},
		{InvalidEmail, http.StatusForbidden},
		{AccountDisabled, http.StatusForbidden},
		{AccountNotFound, http.StatusNotFound},
		{Unexpected, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.r.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.r, "x").HTTPStatus())
		})
	}
}
