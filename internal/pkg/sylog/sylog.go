// Package sylog provides leveled, colorized logging for the launcher,
// following the call surface of the teacher's pkg/sylog package
// (Debugf/Infof/Warningf/Errorf/Fatalf, GetLevel, level constants) but built
// from scratch on top of github.com/apex/log and github.com/fatih/color,
// since the teacher's own implementation was not part of the retrieved
// reference pack.
package sylog

import (
	"fmt"
	"os"
	"sync"

	apexlog "github.com/apex/log"
	"github.com/fatih/color"
)

// Level mirrors the small set of severities the launcher ever logs at.
type Level int

const (
	FatalLevel Level = iota
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

var levelNames = map[Level]string{
	FatalLevel: "FATAL",
	ErrorLevel: "ERROR",
	WarnLevel:  "WARNING",
	InfoLevel:  "INFO",
	DebugLevel: "DEBUG",
}

var levelColors = map[Level]*color.Color{
	FatalLevel: color.New(color.FgRed, color.Bold),
	ErrorLevel: color.New(color.FgRed),
	WarnLevel:  color.New(color.FgYellow),
	InfoLevel:  color.New(color.FgCyan),
	DebugLevel: color.New(color.FgWhite),
}

var (
	mu      sync.Mutex
	current = InfoLevel
	backend = apexlog.Log
)

// SetLevel sets the process-wide log threshold. Messages above the
// configured level are discarded.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	current = l
}

// GetLevel returns the current process-wide log threshold.
func GetLevel() Level {
	mu.Lock()
	defer mu.Unlock()
	return current
}

func logf(l Level, format string, args ...interface{}) {
	mu.Lock()
	threshold := current
	mu.Unlock()

	if l > threshold {
		return
	}

	tag := levelColors[l].Sprintf("%-7s", levelNames[l])
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "%s %s\n", tag, msg)

	switch l {
	case FatalLevel:
		backend.Fatal(msg)
	case ErrorLevel:
		backend.Error(msg)
	case WarnLevel:
		backend.Warn(msg)
	case DebugLevel:
		backend.Debug(msg)
	default:
		backend.Info(msg)
	}
}

func Debugf(format string, args ...interface{})   { logf(DebugLevel, format, args...) }
func Infof(format string, args ...interface{})     { logf(InfoLevel, format, args...) }
func Warningf(format string, args ...interface{})  { logf(WarnLevel, format, args...) }
func Errorf(format string, args ...interface{})    { logf(ErrorLevel, format, args...) }

// Fatalf logs at FatalLevel and terminates the process, matching the
// teacher's sylog.Fatalf contract.
func Fatalf(format string, args ...interface{}) {
	logf(FatalLevel, format, args...)
	os.Exit(255)
}
