// Package serialmux multiplexes a single serial device between the decision
// core and any number of line subscribers. The radar feed and the actuator
// link both run over a SerialMux.
package serialmux

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"sync"

	"tailscale.com/tsweb"
)

var ErrWriteFailed = errors.New("failed to write to serial port")

//go:embed templates/*
var adminTemplateFS embed.FS

var sendCommandTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/send-command.html.tmpl"))

// subscriberBuffer is the per-subscriber line backlog. Lines are dropped for a
// subscriber whose backlog is full.
const subscriberBuffer = 16

// SerialMux fans lines read from one serial port out to subscribers and
// serialises writes to it.
type SerialMux[T SerialPorter] struct {
	name string
	port T

	subscriberMu sync.Mutex
	subscribers  map[string]chan string
	commandMu    sync.Mutex
	closing      bool
}

// Interface is the behaviour shared by SerialMux instantiations.
type Interface interface {
	// Subscribe returns an ID and a channel receiving every line read.
	Subscribe() (string, <-chan string)
	Unsubscribe(string)
	SendCommand(string) error
	// Monitor reads lines until ctx is done, the port hits EOF, or Close.
	Monitor(context.Context) error
	Close() error
	// AttachAdminRoutes registers send/tail debug routes on mux.
	AttachAdminRoutes(*http.ServeMux)
}

// NewSerialMux wraps port. name labels the device in logs and admin routes.
func NewSerialMux[T SerialPorter](name string, port T) *SerialMux[T] {
	return &SerialMux[T]{
		name:        name,
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

// Name returns the device label.
func (s *SerialMux[T]) Name() string { return s.name }

func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *SerialMux[T]) Subscribe() (string, <-chan string) {
	id := randomID()
	ch := make(chan string, subscriberBuffer)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if s.closing {
		close(ch)
		return id, ch
	}
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe closes and removes a subscriber.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Initialize sends each setup command in order, stopping at the first failure.
func (s *SerialMux[T]) Initialize(commands ...string) error {
	for _, command := range commands {
		if err := s.SendCommand(command); err != nil {
			return fmt.Errorf("%s: setup command %q: %w", s.name, command, err)
		}
	}
	return nil
}

// SendCommand writes one newline-terminated command.
func (s *SerialMux[T]) SendCommand(command string) error {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := s.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor scans lines from the port and delivers them to subscribers without
// blocking on slow readers. It returns nil on EOF or after Close, ctx.Err()
// on cancellation and the scanner error otherwise.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking Scan runs apart from the select loop so cancellation is
	// observed while the port is idle.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			scanErrChan <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			if s.isClosing() {
				return nil
			}
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					if !s.isClosing() {
						return err
					}
				default:
				}
				return nil
			}
			if s.isClosing() {
				return nil
			}
			s.broadcast(line)
		}
	}
}

func (s *SerialMux[T]) broadcast(line string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- line:
		default:
		}
	}
}

func (s *SerialMux[T]) isClosing() bool {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	return s.closing
}

// Close closes every subscriber channel and the port. Calling Close twice is
// a no-op.
func (s *SerialMux[T]) Close() error {
	s.subscriberMu.Lock()
	if s.closing {
		s.subscriberMu.Unlock()
		return nil
	}
	s.closing = true
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subscriberMu.Unlock()
	return s.port.Close()
}

// AttachAdminRoutes registers, under /debug/, "<name>-send" (a form),
// "<name>-send-api" (POST command=...), "<name>-tail" (server-sent events of
// every line) and "<name>-tail.js".
func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	prefix := s.name

	debug.HandleFunc(prefix+"-send", "send a command to the "+s.name+" serial device", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := sendCommandTemplate.Execute(w, map[string]string{"Name": s.name}); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
		}
	})

	debug.HandleSilentFunc(prefix+"-send-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		if err := s.SendCommand(command); err != nil {
			http.Error(w, "Failed to write command", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "Wrote command %q to %s", command, s.name)
	})

	debug.HandleSilentFunc(prefix+"-tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, c := s.Subscribe()
		defer s.Unsubscribe(id)

		io.WriteString(w, ": ping\n\n")
		flusher.Flush()

		for {
			select {
			case payload, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})

	debug.HandleSilentFunc(prefix+"-tail.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Header().Set("Cache-Control", "no-cache")
		f, err := adminTemplateFS.Open("templates/tail.js")
		if err != nil {
			http.Error(w, "Failed to open tail.js", http.StatusInternalServerError)
			return
		}
		defer f.Close()
		io.Copy(w, f)
	})
}
