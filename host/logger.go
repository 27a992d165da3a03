// Package host holds the reference capability providers: Host links
// installed directly against a linker, bypassing the binder, per
// spec.md §4.5. Logger and KV are the two the reference runtime ships
// for testing and stateful system integration.
/*
 * Copyright (c) 2024-2026, exorun authors. All rights reserved.
 */
package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/exorun/exorun/engine"
)

// LoggingCapability is the interface name Logger must be linked under.
const LoggingCapability = "exorun:host/logging"

// Logger is the `exorun:host/logging` capability: a single "log"
// function capturing every message in memory, for inspection by tests
// and callers embedding the runtime.
type Logger struct {
	mu   sync.Mutex
	logs []string
}

// NewLogger returns an empty Logger.
func NewLogger() *Logger { return &Logger{} }

// Capability reports the interface name this provider must be linked
// under; instance.Builder rejects a mismatched link before Install ever
// runs.
func (l *Logger) Capability() string { return LoggingCapability }

// Logs returns a snapshot of every message captured so far.
func (l *Logger) Logs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.logs))
	copy(out, l.logs)
	return out
}

// Install defines "log(level: string, msg: string)" against linker.
func (l *Logger) Install(linker engine.Linker) error {
	return linker.DefineFunc(LoggingCapability, "log", l.log)
}

func (l *Logger) log(_ context.Context, args []engine.Value) ([]engine.Value, error) {
	if len(args) != 2 || args[0].Kind != engine.KindString || args[1].Kind != engine.KindString {
		return nil, fmt.Errorf("host/logger: log expects (level: string, msg: string)")
	}
	l.mu.Lock()
	l.logs = append(l.logs, fmt.Sprintf("[%s] %s", args[0].Str, args[1].Str))
	l.mu.Unlock()
	return nil, nil
}
