package logging

import "log"

// Provides a simple logger interface for the application

type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type StdLogger struct{}

func (StdLogger) Info(msg string, args ...any)  { log.Printf("INFO: "+msg, args...) }
func (StdLogger) Warn(msg string, args ...any)  { log.Printf("WARN: "+msg, args...) }
func (StdLogger) Error(msg string, args ...any) { log.Printf("ERROR: "+msg, args...) }

// Discard drops all messages. Useful in tests.
type Discard struct{}

func (Discard) Info(msg string, args ...any)  {}
func (Discard) Warn(msg string, args ...any)  {}
func (Discard) Error(msg string, args ...any) {}
