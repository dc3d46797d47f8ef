/*
 * Copyright (c) 2014, Yawning Angel <yawning at torproject dot org>
 * All rights reserved.
 *
 * Redistribution and use in source and binary forms, with or without
 * modification, are permitted provided that the following conditions are met:
 *
 *  * Redistributions of source code must retain the above copyright notice,
 *    this list of conditions and the following disclaimer.
 *
 *  * Redistributions in binary form must reproduce the above copyright notice,
 *    this list of conditions and the following disclaimer in the documentation
 *    and/or other materials provided with the distribution.
 *
 * THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
 * AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
 * IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
 * ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
 * LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
 * CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
 * SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
 * INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
 * CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
 * ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
 * POSSIBILITY OF SUCH DAMAGE.
 */

package meek

import (
	"fmt"
	"log"
)

// Level is the severity of a log message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger absorbs all of the core's diagnostic output. The core never writes
// to a global stream directly; a Logger is supplied through Config.Logger,
// and New uses DiscardLogger when none is given. Sensitive
// indicates the message includes data (addresses, targets) that a caller
// may want to scrub before it reaches a shared log.
type Logger interface {
	Logf(level Level, sensitive bool, format string, args ...interface{})
}

// StdLogger adapts the standard library's *log.Logger. It never scrubs
// sensitive messages; callers that care should filter themselves or use a
// custom Logger.
type StdLogger struct {
	*log.Logger
}

// NewStdLogger wraps l as a Logger.
func NewStdLogger(l *log.Logger) StdLogger {
	return StdLogger{Logger: l}
}

func (s StdLogger) Logf(level Level, _ bool, format string, args ...interface{}) {
	s.Logger.Printf("[%s] %s", level, fmt.Sprintf(format, args...))
}

// discardLogger drops everything.
type discardLogger struct{}

func (discardLogger) Logf(Level, bool, string, ...interface{}) {}

// DiscardLogger is a Logger that drops every message.
var DiscardLogger Logger = discardLogger{}
