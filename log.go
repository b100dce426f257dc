// Copyright 2026 The fo76dm Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package fo76dm

import "go.uber.org/zap"

// sugaredLogger is the thin wrapper threaded through the parser and the
// store: recoverable failures are logged here and parsing
// continues, while fatal ones are still returned as errors up the call
// stack.
type sugaredLogger struct {
	z *zap.SugaredLogger
}

// newNopLogger is the default used when a caller passes no Logger option.
func newNopLogger() *sugaredLogger {
	return &sugaredLogger{z: zap.NewNop().Sugar()}
}

func newLogger(z *zap.Logger) *sugaredLogger {
	if z == nil {
		return newNopLogger()
	}
	return &sugaredLogger{z: z.Sugar()}
}

func (l *sugaredLogger) Debugf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.z.Debugf(format, args...)
}

func (l *sugaredLogger) Warnf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.z.Warnf(format, args...)
}

func (l *sugaredLogger) Errorf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.z.Errorf(format, args...)
}
