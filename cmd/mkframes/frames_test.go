package main

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specks/core/live"
	"specks/core/services/logger"
)

func TestWriteFramesSplitsFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := live.OrbitConfig{Bodies: 5, Steps: 7, Dt: 0.5, Seed: 3, Label: "sun"}
	n, err := writeFrames(dir, cfg, 3)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	names, err := filepath.Glob(filepath.Join(dir, "*.frames"))
	require.NoError(t, err)
	require.Len(t, names, 3)

	var times []float64
	for _, name := range names {
		f, err := os.Open(name)
		require.NoError(t, err)
		dec := live.NewTextDecoder(f)
		for {
			fr, err := dec.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err)
			assert.Equal(t, 5, fr.Len())
			times = append(times, fr.Time)
		}
		f.Close()
	}
	assert.Equal(t, []float64{0, 0.5, 1, 1.5, 2, 2.5, 3}, times)
}

func TestWriteFramesNeedsSteps(t *testing.T) {
	_, err := writeFrames(t.TempDir(), live.OrbitConfig{Bodies: 1}, 1)
	assert.Error(t, err)
}

func TestStreamHandlerSendsWireFrames(t *testing.T) {
	cfg := live.OrbitConfig{Bodies: 4, Steps: 3, Dt: 1, Seed: 9}
	srv := httptest.NewServer(streamHandler(context.Background(), cfg, logger.Discard()))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	for i := 0; i < 3; i++ {
		kind, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, websocket.BinaryMessage, kind)
		fr, err := live.DecodeWire(msg)
		require.NoError(t, err)
		assert.Equal(t, float64(i), fr.Time)
		assert.Equal(t, 4, fr.Len())
	}
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
