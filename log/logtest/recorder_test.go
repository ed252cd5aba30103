/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package logtest

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-cbrcache/log"
)

func TestRecorder(t *testing.T) {
	logRecorder := NewRecorder()
	logRecorder.Warn("cache read failed", log.Int("attempt", 2), log.String("key", "currency_codes"))
	logRecorder.With(log.String("component", "cbr")).Info("rate fetched")
	logRecorder.WithLevel(log.LevelWarn).Debug("dropped")

	require.Len(t, logRecorder.Entries(), 2)

	_, found := logRecorder.FindEntry("dropped")
	require.False(t, found)

	entry, found := logRecorder.FindEntry("cache read failed")
	require.True(t, found)
	require.Equal(t, log.LevelWarn, entry.Level)

	attempt, found := entry.FindField("attempt")
	require.True(t, found)
	require.Equal(t, 2, int(attempt.Int))

	key, found := entry.FindField("key")
	require.True(t, found)
	require.Equal(t, "currency_codes", string(key.Bytes))

	entry, found = logRecorder.FindEntry("rate fetched")
	require.True(t, found)
	_, found = entry.FindField("component")
	require.True(t, found)

	infos := logRecorder.FindAllEntriesByFilter(func(e RecordedEntry) bool { return e.Level == log.LevelInfo })
	require.Len(t, infos, 1)

	logRecorder.Reset()
	require.Empty(t, logRecorder.Entries())
}

func TestNewLoggerWithOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithOutput(&buf)
	logger.Info("pong", log.String("route", "/v1/ping"))

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	require.Equal(t, "pong", m["msg"])
	require.Equal(t, "/v1/ping", m["route"])
	require.Equal(t, "info", m["level"])
}
