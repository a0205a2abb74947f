package sonar

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindTransportLoss, KindOf(fmt.Errorf("seq 3 missing: %w", ErrIncompleteFrame)))
	assert.Equal(t, KindSourceExhausted, KindOf(ErrEndOfSource))
	assert.Equal(t, KindConfiguration, KindOf(fmt.Errorf("swath: %w", ErrConfiguration)))
	assert.Equal(t, KindDecodeError, KindOf(fmt.Errorf("record 4: %w", ErrDecode)))
	assert.Equal(t, KindDecodeError, KindOf(io.ErrUnexpectedEOF))
	assert.True(t, errors.Is(fmt.Errorf("wrap: %w", ErrEndOfSource), ErrEndOfSource))
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "source_exhausted", KindSourceExhausted.String())
	assert.Equal(t, "decode_error", KindDecodeError.String())
	assert.Equal(t, "ErrorKind(42)", ErrorKind(42).String())
}
