/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

type Logger = logrus.Logger

const timestampFormat = "2006-01-02 15:04:05.000"

var (
	loggerRegistryMu sync.RWMutex
	loggerRegistry   = map[string]*logrus.Logger{}

	defaultLevel     = ParseLogLevel(EnvDefaultString("LOG_LEVEL", "info"))
	consoleLogFormat = EnvDefaultString("CONSOLE_LOG_FORMAT", "text")
	consoleOutput    = io.Writer(os.Stdout)
)

// ConfigureConsoleLogFormat selects "json" or "text" output for loggers
// created afterwards.
func ConfigureConsoleLogFormat(format string) {
	loggerRegistryMu.Lock()
	defer loggerRegistryMu.Unlock()
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		consoleLogFormat = "json"
	} else {
		consoleLogFormat = "text"
	}
}

// ConfigureConsoleOutput redirects every registered logger to w.
func ConfigureConsoleOutput(w io.Writer) {
	loggerRegistryMu.Lock()
	defer loggerRegistryMu.Unlock()
	consoleOutput = w
	for _, lg := range loggerRegistry {
		lg.SetOutput(w)
	}
}

func ParseLogLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// NewLogger returns the logger registered under name, creating it on first
// use.
func NewLogger(name string) *logrus.Logger {
	loggerRegistryMu.Lock()
	defer loggerRegistryMu.Unlock()
	if l, ok := loggerRegistry[name]; ok {
		return l
	}
	l := logrus.New()
	l.SetOutput(consoleOutput)
	l.SetLevel(defaultLevel)
	l.SetReportCaller(true)
	if consoleLogFormat == "json" {
		l.SetFormatter(&JSONLogFormatter{LoggerName: name})
	} else {
		l.SetFormatter(&Log4jColorFormatter{LoggerName: name, NameWidth: 10, CallerWidth: 25})
	}
	loggerRegistry[name] = l
	return l
}

// SetLoggerLevel changes the level of a registered logger. It reports
// whether the logger exists.
func SetLoggerLevel(name string, lvlStr string) bool {
	loggerRegistryMu.RLock()
	lg, ok := loggerRegistry[name]
	loggerRegistryMu.RUnlock()
	if !ok {
		return false
	}
	lg.SetLevel(ParseLogLevel(lvlStr))
	return true
}

func SetAllLoggersLevel(lvl logrus.Level) {
	loggerRegistryMu.Lock()
	defer loggerRegistryMu.Unlock()
	defaultLevel = lvl
	for _, lg := range loggerRegistry {
		lg.SetLevel(lvl)
	}
}

var levelColors = map[logrus.Level]*color.Color{
	logrus.TraceLevel: color.New(color.Faint),
	logrus.DebugLevel: color.New(color.FgBlue),
	logrus.InfoLevel:  color.New(color.FgGreen),
	logrus.WarnLevel:  color.New(color.FgYellow),
	logrus.ErrorLevel: color.New(color.FgRed),
	logrus.FatalLevel: color.New(color.FgRed, color.Bold),
	logrus.PanicLevel: color.New(color.FgRed, color.Bold),
}

var (
	nameColor   = color.New(color.FgCyan)
	pidColor    = color.New(color.FgMagenta)
	callerColor = color.New(color.Faint)
)

// Log4jColorFormatter renders log4j style lines:
//
//	2025-01-02 15:04:05.000    INFO 4242   - [main]   DATABASE  session.go:42 : message key=value
type Log4jColorFormatter struct {
	LoggerName  string
	NameWidth   int
	CallerWidth int
}

func (f *Log4jColorFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	lvl := levelColors[entry.Level]
	if lvl == nil {
		lvl = color.New(color.Reset)
	}
	name := limitRunes(f.LoggerName, f.NameWidth)
	caller := ""
	if entry.Caller != nil {
		caller = " " + callerColor.Sprint(fmt.Sprintf("%*s", f.CallerWidth, callerLine(entry, f.CallerWidth)))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s %s - [main] %s%s %s %s",
		entry.Time.Format(timestampFormat),
		lvl.Sprintf("%7s", strings.ToUpper(entry.Level.String())),
		pidColor.Sprintf("%-6d", os.Getpid()),
		nameColor.Sprintf("%*s", f.NameWidth, name),
		caller,
		callerColor.Sprint(":"),
		entry.Message,
	)
	for _, k := range sortedFieldKeys(entry.Data) {
		fmt.Fprintf(&sb, " %s=%v", k, entry.Data[k])
	}
	sb.WriteByte('\n')
	return []byte(sb.String()), nil
}

// JSONLogFormatter renders one JSON object per line.
type JSONLogFormatter struct {
	LoggerName string
}

func (f *JSONLogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	data := make(map[string]interface{}, len(entry.Data)+5)
	for k, v := range entry.Data {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		data[k] = v
	}
	data["time"] = entry.Time.Format(timestampFormat)
	data["level"] = entry.Level.String()
	data["logger"] = f.LoggerName
	data["msg"] = entry.Message
	if entry.Caller != nil {
		data["caller"] = callerLine(entry, 0)
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal log entry: %w", err)
	}
	return append(b, '\n'), nil
}

// callerLine returns "dir/file.go:line", trimmed from the left to width
// when width is positive.
func callerLine(entry *logrus.Entry, width int) string {
	file := entry.Caller.File
	short := filepath.Join(filepath.Base(filepath.Dir(file)), filepath.Base(file))
	s := filepath.ToSlash(short) + ":" + strconv.Itoa(entry.Caller.Line)
	if width > 0 {
		if r := []rune(s); len(r) > width {
			return string(r[len(r)-width:])
		}
	}
	return s
}

func sortedFieldKeys(data logrus.Fields) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func limitRunes(s string, n int) string {
	if r := []rune(s); n > 0 && len(r) > n {
		return string(r[:n])
	}
	return s
}

func EnvDefaultString(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	}
	return def
}
