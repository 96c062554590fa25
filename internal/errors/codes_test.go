package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGatewayErrorFormatting(t *testing.T) {
	plain := NotFound("abc")
	assert.Equal(t, "[NOT_FOUND] conversation not found: abc", plain.Error())

	cause := stderrors.New("dial tcp: refused")
	wrapped := ProducerFailure("text generation failed", cause)
	assert.Contains(t, wrapped.Error(), "PRODUCER_FAILURE")
	assert.Contains(t, wrapped.Error(), "dial tcp: refused")
	assert.ErrorIs(t, wrapped, cause)
}

func TestIsCode(t *testing.T) {
	err := Timeout("too slow")

	assert.True(t, IsCode(err, ErrCodeTimeout))
	assert.False(t, IsCode(err, ErrCodeNotFound))
	assert.False(t, IsCode(stderrors.New("plain"), ErrCodeTimeout))
	assert.False(t, IsCode(nil, ErrCodeTimeout))

	// Codes survive fmt wrapping.
	outer := fmt.Errorf("handler: %w", err)
	assert.True(t, IsCode(outer, ErrCodeTimeout))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeCapacityExceeded, CodeOf(CapacityExceeded(10), ErrCodeInternal))
	assert.Equal(t, ErrCodeInternal, CodeOf(stderrors.New("plain"), ErrCodeInternal))

	inner := SinkClosed(stderrors.New("broken pipe"))
	outer := Wrap(inner, ErrCodeProducerFailure, "while streaming")
	// The outermost classification wins.
	assert.Equal(t, ErrCodeProducerFailure, CodeOf(outer, ErrCodeInternal))
}
