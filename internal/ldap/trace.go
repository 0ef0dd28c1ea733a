package ldap

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// traceLevel maps the numeric trace level onto an hclog level. Level 0 (and
// anything out of range below it) disables tracing.
func traceLevel(level int) hclog.Level {
	switch {
	case level <= 0:
		return hclog.Off
	case level == 1:
		return hclog.Info
	case level == 2:
		return hclog.Debug
	default:
		return hclog.Trace
	}
}

// traceSink writes protocol trace events for one handle. The sink owns the
// destination only when it opened a file; stdout and stderr are shared.
type traceSink struct {
	logger hclog.Logger
	file   *os.File
	owned  bool
	once   sync.Once
}

// openTraceSink resolves dest to stdout, stderr or an append-mode file.
func openTraceSink(dest string, level int) (*traceSink, error) {
	sink := &traceSink{}

	var out io.Writer
	switch strings.ToLower(strings.TrimSpace(dest)) {
	case "", TraceStdout:
		out = os.Stdout
	case TraceStderr:
		out = os.Stderr
	default:
		if level <= 0 {
			// nothing will be written; avoid creating the file
			out = io.Discard
			break
		}
		f, err := os.OpenFile(dest, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace file %s: %w", dest, err)
		}
		sink.file = f
		sink.owned = true
		out = f
	}

	sink.logger = hclog.New(&hclog.LoggerOptions{
		Name:   "ldap-trace",
		Level:  traceLevel(level),
		Output: out,
	})

	return sink, nil
}

// Info traces a protocol step.
func (s *traceSink) Info(msg string, fields map[string]any) {
	if s == nil {
		return
	}
	s.logger.Info(msg, traceArgs(fields)...)
}

// Debug traces request details.
func (s *traceSink) Debug(msg string, fields map[string]any) {
	if s == nil {
		return
	}
	s.logger.Debug(msg, traceArgs(fields)...)
}

// Trace traces response payloads.
func (s *traceSink) Trace(msg string, fields map[string]any) {
	if s == nil {
		return
	}
	s.logger.Trace(msg, traceArgs(fields)...)
}

// Close releases an owned trace file. Safe to call more than once.
func (s *traceSink) Close() error {
	if s == nil {
		return nil
	}

	var err error
	s.once.Do(func() {
		if s.owned && s.file != nil {
			err = s.file.Close()
		}
	})
	return err
}

func traceArgs(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}

	sanitized := SanitizeFields(fields)
	args := make([]any, 0, len(sanitized)*2)
	for _, k := range sortedKeys(sanitized) {
		args = append(args, k, sanitized[k])
	}
	return args
}
