package testutil

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fanbeam/internal/sonar"
)

func TestAssertStatusCode(t *testing.T) {
	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	req := NewTestRequest(http.MethodGet, "/health")
	assert.Equal(t, "/health", req.URL.Path)
}

func TestGradientFrame(t *testing.T) {
	f := GradientFrame(t, 3, 4, 2, sonar.Depth8)
	assert.Equal(t, uint16(3), f.At(0, 0))
	assert.Equal(t, uint16(3+4+1), f.At(1, 1))
	assert.Equal(t, 0.1, f.Timestamp())

	f16 := GradientFrame(t, 0, 300, 1, sonar.Depth16)
	assert.Equal(t, uint16(299), f16.At(0, 299))
}

func TestMemSource(t *testing.T) {
	src := NewMemSource(10, Frames(t, 3, 2, 2)...)
	assert.Equal(t, 3, src.FrameCount())

	require.NoError(t, src.Seek(2))
	f, err := src.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, 2, f.Index())
	_, err = src.ReadNext()
	assert.ErrorIs(t, err, sonar.ErrEndOfSource)
	assert.ErrorIs(t, src.Seek(4), sonar.ErrEndOfSource)

	boom := errors.New("boom")
	src.FailAt(0, boom)
	require.NoError(t, src.Seek(0))
	_, err = src.ReadNext()
	assert.ErrorIs(t, err, boom)

	require.NoError(t, src.Close())
	assert.True(t, src.Closed())
}
