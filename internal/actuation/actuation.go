// Package actuation delivers control commands to the vehicle.
package actuation

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/banshee-data/fcw/internal/control"
)

// Actuator applies one command per decision cycle.
type Actuator interface {
	Apply(ctx context.Context, cmd control.Command) error
	Close() error
}

// FormatCommand renders the actuator wire line.
func FormatCommand(cmd control.Command) string {
	reverse := 0
	if cmd.Reverse {
		reverse = 1
	}
	return fmt.Sprintf("CMD throttle=%.3f brake=%.3f reverse=%d", cmd.Throttle, cmd.Brake, reverse)
}

// Log writes each command that differs from the previous one. It stands in
// for hardware on the bench.
type Log struct {
	mu     sync.Mutex
	logger *log.Logger
	last   control.Command
	any    bool
}

// NewLog logs commands to w.
func NewLog(w io.Writer) *Log {
	return &Log{logger: log.New(w, "[Actuator] ", log.LstdFlags|log.Lmicroseconds)}
}

// Apply logs cmd if it changed.
func (l *Log) Apply(_ context.Context, cmd control.Command) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.any && cmd == l.last {
		return nil
	}
	l.last, l.any = cmd, true
	l.logger.Print(FormatCommand(cmd))
	return nil
}

func (l *Log) Close() error { return nil }

// CommandWriter is the part of a serial mux the actuator needs.
type CommandWriter interface {
	SendCommand(string) error
	Close() error
}

// Serial sends every command as a line to an actuator controller.
type Serial struct {
	w CommandWriter
}

// NewSerial writes commands to w. Close closes w.
func NewSerial(w CommandWriter) *Serial {
	return &Serial{w: w}
}

// Apply sends cmd. A cancelled ctx skips the write.
func (s *Serial) Apply(ctx context.Context, cmd control.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.w.SendCommand(FormatCommand(cmd)); err != nil {
		return fmt.Errorf("actuator write: %w", err)
	}
	return nil
}

// Close releases the underlying link.
func (s *Serial) Close() error { return s.w.Close() }
