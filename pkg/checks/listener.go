/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package checks

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Listener is the output sink of a build, typically its console log.
type Listener interface {
	Writer() io.Writer
}

type writerListener struct {
	w io.Writer
}

func (l writerListener) Writer() io.Writer { return l.w }

// WriterListener returns a Listener writing to w.
func WriterListener(w io.Writer) Listener {
	return writerListener{w: w}
}

// NullListener discards everything written to it.
var NullListener Listener = writerListener{w: io.Discard}

// ListenerOrNull returns l, or NullListener when l is nil.
func ListenerOrNull(l Listener) Listener {
	if l == nil || l.Writer() == nil {
		return NullListener
	}
	return l
}

// Logger writes label prefixed lines to a build's output.
// Write errors are ignored: diagnostics must never fail a build.
type Logger struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
}

// NewLogger returns a Logger that prefixes each line with "[label] ".
func NewLogger(w io.Writer, label string) *Logger {
	if w == nil {
		w = io.Discard
	}
	return &Logger{
		w:      w,
		prefix: "[" + label + "] ",
	}
}

// Log formats a message and writes it as a single line.
func (l *Logger) Log(format string, args ...any) {
	l.write(fmt.Sprintf(format, args...))
}

// LogEachLine writes each line with the prefix.
func (l *Logger) LogEachLine(lines []string) {
	for _, line := range lines {
		l.write(line)
	}
}

func (l *Logger) write(msg string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.w, l.prefix+strings.TrimRight(msg, "\n")+"\n")
}
