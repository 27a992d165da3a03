// Package xlog provides the runtime's structured logging wrapper around zap.
/*
 * Copyright (c) 2024-2026, exorun authors. All rights reserved.
 */
package xlog

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu  sync.RWMutex
	log *zap.SugaredLogger
)

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	log = l.Sugar()
}

// SetLogger replaces the package logger, e.g. with a development logger
// in tests or a caller-supplied logger in an embedding application.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l.Sugar()
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Infof logs at info level.
func Infof(template string, args ...any) { get().Infof(template, args...) }

// Warnf logs at warn level.
func Warnf(template string, args ...any) { get().Warnf(template, args...) }

// Errorf logs at error level.
func Errorf(template string, args ...any) { get().Errorf(template, args...) }

// With returns a logger decorated with the given structured fields, for
// call sites that want to attach seq/peer/target/method context to every
// subsequent line (peer.Peer does this with its name).
func With(kv ...any) *zap.SugaredLogger { return get().With(kv...) }
