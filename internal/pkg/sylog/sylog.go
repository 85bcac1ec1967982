// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

// Package sylog provides the leveled logger used throughout dotlnx. It is
// deliberately small: a handful of package-level functions writing to
// os.Stderr, with the level controlled by the DOTLNX_MESSAGELEVEL
// environment variable so that both the CLI and the watcher daemon share
// the same knob.
package sylog

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

type messageLevel int

const (
	FatalLevel messageLevel = iota - 4
	ErrorLevel
	WarnLevel
	LogLevel
	InfoLevel
	VerboseLevel
	DebugLevel
)

func (l messageLevel) String() string {
	switch l {
	case FatalLevel:
		return "FATAL"
	case ErrorLevel:
		return "ERROR"
	case WarnLevel:
		return "WARNING"
	case LogLevel:
		return "LOG"
	case InfoLevel:
		return "INFO"
	case VerboseLevel:
		return "VERBOSE"
	case DebugLevel:
		return "DEBUG"
	}
	return "????"
}

var loggerLevel = InfoLevel

var logWriter = (io.Writer)(os.Stderr)

func init() {
	if l, err := strconv.Atoi(os.Getenv("DOTLNX_MESSAGELEVEL")); err == nil {
		loggerLevel = messageLevel(l)
	}
}

func writef(msgLevel messageLevel, format string, a ...interface{}) {
	if loggerLevel < msgLevel {
		return
	}
	message := strings.TrimRight(fmt.Sprintf(format, a...), "\n")
	fmt.Fprintf(logWriter, "%-8s%s\n", msgLevel.String()+":", message)
}

// Fatalf writes an ERROR level message and exits with status 255. Library
// code should not call this; it is for cmd/ entry points only.
func Fatalf(format string, a ...interface{}) {
	writef(ErrorLevel, format, a...)
	os.Exit(255)
}

// Errorf writes an ERROR level message without exiting.
func Errorf(format string, a ...interface{}) {
	writef(ErrorLevel, format, a...)
}

// Warningf writes a WARNING level message.
func Warningf(format string, a ...interface{}) {
	writef(WarnLevel, format, a...)
}

// Infof writes an INFO level message. Shown by default.
func Infof(format string, a ...interface{}) {
	writef(InfoLevel, format, a...)
}

// Debugf writes a DEBUG level message. Hidden unless DOTLNX_MESSAGELEVEL
// raises the level.
func Debugf(format string, a ...interface{}) {
	writef(DebugLevel, format, a...)
}

// SetLevel explicitly sets the logger level, overriding the environment.
func SetLevel(l int) {
	loggerLevel = messageLevel(l)
}

// GetLevel returns the current logger level as an integer.
func GetLevel() int {
	return int(loggerLevel)
}

// SetWriter installs a new writer for subsequent log output, returning the
// previous one so tests can restore it.
func SetWriter(w io.Writer) io.Writer {
	old := logWriter
	if w != nil {
		logWriter = w
	}
	return old
}
