// Package mpdtest runs an in-process MPD server for tests.
//
// The server speaks enough of the line protocol for the shuffler: a greeting,
// canned responses per command, and idle/noidle on any connection.
package mpdtest

import (
	"bufio"
	"fmt"
	"net"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

// Greeting is sent on every new connection.
const Greeting = "OK MPD 0.23.5"

// Server is a fake MPD server listening on 127.0.0.1.
type Server struct {
	ln net.Listener
	wg sync.WaitGroup

	mu        sync.Mutex
	responses map[string]string
	received  []string
	conns     []*conn
	idler     *conn // last connection that sent idle
	pending   []string
	closed    bool
}

type conn struct {
	net.Conn
	idling bool
	// MPD ignores noidle outside idle. A client racing its own idle loop may
	// still send one just before idling, so it ends the next idle instead.
	noidle bool
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &Server{ln: ln, responses: map[string]string{}}
	s.wg.Add(1)
	go s.accept()
	t.Cleanup(s.Close)
	return s
}

// Addr returns the host:port clients dial.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Handle sets the response body sent before OK. command is matched against
// the full command line first, then its first word.
func (s *Server) Handle(command, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[command] = body
}

// Notify reports changed subsystems to the idling connection, or to the next
// idle if nobody is idling.
func (s *Server) Notify(subsystems ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, subsystems...)
	if s.idler != nil && s.idler.idling {
		s.flushLocked(s.idler)
	}
}

// DropIdle closes the connection that last sent idle.
func (s *Server) DropIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idler != nil {
		s.idler.Close()
	}
}

// Received returns every command line in arrival order.
func (s *Server) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.received)
}

// WaitFor blocks until a command line starting with prefix arrives.
func (s *Server) WaitFor(t testing.TB, prefix string) string {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, line := range s.Received() {
			if strings.HasPrefix(line, prefix) {
				return line
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %q command received, got %q", prefix, s.Received())
	return ""
}

// Close stops the listener and drops every connection.
func (s *Server) Close() {
	s.ln.Close()
	s.mu.Lock()
	s.closed = true
	for _, c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			return
		}
		c := &conn{Conn: nc}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			nc.Close()
			return
		}
		s.conns = append(s.conns, c)
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(c)
	}
}

func (s *Server) serve(c *conn) {
	defer s.wg.Done()
	defer c.Close()

	fmt.Fprintf(c, "%s\n", Greeting)

	scanner := bufio.NewScanner(c)
	for scanner.Scan() {
		line := scanner.Text()
		if !s.handle(c, line) {
			return
		}
	}
}

// handle answers one command line. It returns false once the client closed.
func (s *Server) handle(c *conn, line string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.received = append(s.received, line)
	name, _, _ := strings.Cut(line, " ")

	switch name {
	case "close":
		return false
	case "idle":
		s.idler = c
		if c.noidle {
			c.noidle = false
			fmt.Fprint(c, "OK\n")
			return true
		}
		c.idling = true
		if len(s.pending) > 0 {
			s.flushLocked(c)
		}
	case "noidle":
		if !c.idling {
			c.noidle = true
			return true
		}
		c.idling = false
		fmt.Fprint(c, "OK\n")
	default:
		body, ok := s.responses[line]
		if !ok {
			body = s.responses[name]
		}
		fmt.Fprintf(c, "%sOK\n", body)
	}
	return true
}

func (s *Server) flushLocked(c *conn) {
	var b strings.Builder
	for _, name := range s.pending {
		fmt.Fprintf(&b, "changed: %s\n", name)
	}
	b.WriteString("OK\n")
	s.pending = nil
	c.idling = false
	fmt.Fprint(c, b.String())
}
