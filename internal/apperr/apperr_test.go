package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	err := Validation("invalid payload", "name", "participants")
	assert.Equal(t, "invalid payload (fields: name, participants)", err.Error(), "expected fields in message")

	wrapped := Storage("query failed", errors.New("connection refused"))
	assert.Equal(t, "query failed: connection refused", wrapped.Error(), "expected cause appended")
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage("insert failed", cause)
	assert.ErrorIs(t, err, cause, "expected errors.Is to see the cause")
}

func TestKindOf(t *testing.T) {
	tcases := []struct {
		err  error
		kind Kind
	}{
		{Validation("bad input"), KindValidation},
		{Authentication("bad token"), KindAuthentication},
		{Authorization("not a participant"), KindAuthorization},
		{NotFound("no such room"), KindNotFound},
		{Storage("db down", nil), KindStorage},
		{Fanout("partial delivery", nil), KindFanout},
	}

	for _, tc := range tcases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			k, ok := KindOf(tc.err)
			assert.True(t, ok, "expected a taxonomy error")
			assert.Equal(t, tc.kind, k, "expected kind to match")
			assert.True(t, IsKind(tc.err, tc.kind), "expected IsKind to match")
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("handle event: %w", NotFound("room missing"))
	k, ok := KindOf(err)
	assert.True(t, ok, "expected KindOf to unwrap")
	assert.Equal(t, KindNotFound, k, "expected not found kind")

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok, "expected plain errors to have no kind")
}
