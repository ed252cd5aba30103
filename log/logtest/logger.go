/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package logtest

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ssgreg/logf"

	"github.com/acronis/go-cbrcache/log"
)

type syncEntryWriter struct {
	mu      sync.Mutex
	encoder logf.Encoder
	output  io.Writer
}

//nolint:gocritic
func (ew *syncEntryWriter) WriteEntry(e logf.Entry) {
	var buf logf.Buffer
	if err := ew.encoder.Encode(&buf, e); err != nil {
		buf.Data = []byte(err.Error() + "\n")
	}
	ew.mu.Lock()
	defer ew.mu.Unlock()
	_, _ = fmt.Fprint(ew.output, string(buf.Data))
}

// NewLogger returns a synchronous debug-level JSON logger writing to stderr.
// It is slow and meant for tests only.
func NewLogger() log.FieldLogger {
	return NewLoggerWithOutput(os.Stderr)
}

// NewLoggerWithOutput is NewLogger writing to w.
func NewLoggerWithOutput(w io.Writer) log.FieldLogger {
	ew := &syncEntryWriter{
		encoder: logf.NewJSONEncoder(logf.JSONEncoderConfig{
			EncodeTime:   logf.RFC3339NanoTimeEncoder,
			FieldKeyTime: "time",
		}),
		output: w,
	}
	return &log.LogfAdapter{Logger: logf.NewLogger(logf.LevelDebug, ew)}
}
