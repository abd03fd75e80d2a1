/*
Copyright 2023 The CokeDB Authors. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package logger

import (
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

type LogLevel int8

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
)

// Logger is the leveled logging interface consumed across the codebase.
type Logger interface {
	Errorf(f string, v ...interface{})
	Warningf(f string, v ...interface{})
	Infof(f string, v ...interface{})
	Debugf(f string, v ...interface{})
}

var levelToString = map[LogLevel]string{
	LogDebug: "DEBUG",
	LogInfo:  "INFO",
	LogWarn:  "WARN",
	LogError: "ERROR",
}

// LogLevelFromEnvironment returns the level configured via LOG_LEVEL,
// defaulting to info.
func LogLevelFromEnvironment() LogLevel {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "error":
		return LogError
	case "warn", "warning":
		return LogWarn
	case "debug":
		return LogDebug
	}
	return LogInfo
}

// SimpleLogger writes level-prefixed lines through the standard log package.
type SimpleLogger struct {
	Out      *log.Logger
	mu       sync.Mutex
	minLevel LogLevel
}

func NewSimpleLogger(name string, out io.Writer) *SimpleLogger {
	return &SimpleLogger{
		Out:      log.New(out, name+" ", log.LstdFlags),
		minLevel: LogLevelFromEnvironment(),
	}
}

func NewSimpleLoggerWithLevel(name string, out io.Writer, level LogLevel) *SimpleLogger {
	return &SimpleLogger{
		Out:      log.New(out, name+" ", log.LstdFlags),
		minLevel: level,
	}
}

func (l *SimpleLogger) SetLogLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

func (l *SimpleLogger) logf(level LogLevel, f string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.minLevel {
		return
	}
	l.Out.Printf(levelToString[level]+": "+f, v...)
}

func (l *SimpleLogger) Errorf(f string, v ...interface{}) {
	l.logf(LogError, f, v...)
}

func (l *SimpleLogger) Warningf(f string, v ...interface{}) {
	l.logf(LogWarn, f, v...)
}

func (l *SimpleLogger) Infof(f string, v ...interface{}) {
	l.logf(LogInfo, f, v...)
}

func (l *SimpleLogger) Debugf(f string, v ...interface{}) {
	l.logf(LogDebug, f, v...)
}
