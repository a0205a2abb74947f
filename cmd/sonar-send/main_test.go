package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDestination(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		ip         string
		port       int
		want       string
	}{
		{"config only", "127.0.0.1:5700", "", 0, "127.0.0.1:5700"},
		{"ip override", "127.0.0.1:5700", "10.0.0.5", 0, "10.0.0.5:5700"},
		{"port override", "127.0.0.1:5700", "", 6000, "127.0.0.1:6000"},
		{"both", "127.0.0.1:5700", "::1", 6000, "[::1]:6000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := destination(tt.configured, tt.ip, tt.port)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := destination("127.0.0.1:5700", "", 70000)
	assert.Error(t, err)
	_, err = destination("no-port", "", 0)
	assert.Error(t, err)
}

func TestRawSourcePath(t *testing.T) {
	assert.Equal(t, "frames.raw?beams=256&bins=1024", rawSourcePath("frames.raw", 256, 1024, false, 0))
	assert.Equal(t, "frames.BIN?beams=4&bins=8&depth=16&fps=12.5", rawSourcePath("frames.BIN", 4, 8, true, 12.5))
	assert.Equal(t, "frames.raw?beams=2&bins=2", rawSourcePath("frames.raw?beams=2&bins=2", 256, 1024, true, 0))
	assert.Equal(t, "synthetic:", rawSourcePath("synthetic:", 256, 1024, true, 0))
	assert.Equal(t, "capture.pcap", rawSourcePath("capture.pcap", 256, 1024, false, 0))
}
