package sources

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fanbeam/internal/monitoring"
	"github.com/banshee-data/fanbeam/internal/sonar"
	"github.com/banshee-data/fanbeam/internal/sonar/l1datagrams"
	"github.com/banshee-data/fanbeam/internal/sonar/network"
	"github.com/banshee-data/fanbeam/internal/sonar/recorder"
	"github.com/banshee-data/fanbeam/internal/testutil"
)

func init() {
	monitoring.SetLogger(nil)
}

func TestOpenSynthetic(t *testing.T) {
	src, err := Open("synthetic:?frames=5&beams=32&bins=64&depth=16&fps=12", Options{})
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, 5, src.FrameCount())
	assert.Equal(t, 12.0, src.FPS())

	f, err := src.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, 32, f.Beams())
	assert.Equal(t, 64, f.RangeBins())
	assert.Equal(t, sonar.Depth16, f.Depth())

	src, err = Open("synthetic:", Options{})
	require.NoError(t, err)
	assert.Equal(t, 900, src.FrameCount())
}

func TestOpenRecording(t *testing.T) {
	dir := recorder.DefaultPath(t.TempDir(), time.Date(2025, 5, 3, 14, 2, 11, 0, time.UTC))
	rec, err := recorder.NewRecorder(dir, recorder.Options{FPS: 5})
	require.NoError(t, err)
	for _, f := range testutil.Frames(t, 3, 4, 4) {
		require.NoError(t, rec.Record(f))
	}
	require.NoError(t, rec.Close())

	src, err := Opener(Options{})(dir)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, 3, src.FrameCount())
	assert.Equal(t, 5.0, src.FPS())
}

func TestOpenRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.raw")
	out, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, recorder.WriteRaw(out, testutil.Frames(t, 2, 6, 3)...))
	require.NoError(t, out.Close())

	src, err := Open(path+"?beams=6&bins=3&fps=2", Options{})
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, 2, src.FrameCount())

	_, err = Open(path, Options{})
	assert.ErrorIs(t, err, sonar.ErrConfiguration)
	_, err = Open(path+"?beams=x", Options{})
	assert.ErrorIs(t, err, sonar.ErrConfiguration)
	_, err = Open(path+"?beams=6&bins=3&depth=12", Options{})
	assert.ErrorIs(t, err, sonar.ErrConfiguration)
}

func TestOpenPcap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pcap")
	out, err := os.Create(path)
	require.NoError(t, err)
	cw, err := network.NewCaptureWriter(out, network.DefaultPort)
	require.NoError(t, err)
	f := testutil.GradientFrame(t, 0, 10, 10, sonar.Depth8)
	dgrams, err := l1datagrams.EncodeFrame(l1datagrams.HeaderFor(f, 120, 30), f, 64)
	require.NoError(t, err)
	for _, d := range dgrams {
		require.NoError(t, cw.WriteDatagram(time.Unix(1, 0), d))
	}
	require.NoError(t, out.Close())

	src, err := Open(path+"?port=5700", Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, src.FrameCount())
}

func TestOpenUDP(t *testing.T) {
	f := testutil.GradientFrame(t, 0, 10, 10, sonar.Depth8)
	dgrams, err := l1datagrams.EncodeFrame(l1datagrams.HeaderFor(f, 120, 30), f, 64)
	require.NoError(t, err)
	sock := network.NewMockUDPSocket(dgrams...)

	delivered := make(chan struct{}, 1)
	src, err := Open("udp://127.0.0.1:5700", Options{
		Sockets:    &network.MockUDPSocketFactory{Socket: sock},
		OnDelivery: func(l1datagrams.Delivery) { delivered <- struct{}{} },
	})
	require.NoError(t, err)

	select {
	case <-delivered:
	case <-time.After(5 * time.Second):
		t.Fatal("no frame received")
	}
	assert.Equal(t, 1, src.FrameCount())
	got, err := src.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, f.Samples(), got.Samples())

	require.NoError(t, src.Close())
	assert.True(t, sock.Closed)
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "movie.mkv"), Options{})
	assert.ErrorIs(t, err, sonar.ErrConfiguration)
	_, err = Open("synthetic:?frames=%zz", Options{})
	assert.ErrorIs(t, err, sonar.ErrConfiguration)
}
