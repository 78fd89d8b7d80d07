package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneMatchesTemplate(t *testing.T) {
	err := Clonef(ErrConflict, "slot %d taken", 3)

	assert.Equal(t, "slot 3 taken", err.Message)
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.ErrorIs(t, fmt.Errorf("commit: %w", err), ErrConflict)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(context.DeadlineExceeded)

	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, FromError(nil))
}

func TestClassification(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		fatal     bool
		rejection bool
	}{
		{name: "nil"},
		{name: "conflict", err: Clone(ErrConflict, "taken"), rejection: true},
		{name: "timeout", err: ErrTimeout, rejection: true},
		{name: "validation", err: ErrValidation, rejection: true},
		{name: "invariant", err: ErrInvariantViolation, fatal: true},
		{name: "internal", err: Wrap(fmt.Errorf("disk"), ErrInternal.Code, ErrInternal.Status, "store"), fatal: true},
		{name: "untyped", err: fmt.Errorf("boom"), fatal: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.fatal, IsFatal(tc.err))
			assert.Equal(t, tc.rejection, IsRejection(tc.err))
		})
	}
}
