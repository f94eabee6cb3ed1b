package shuffler

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/awused/mpd-shuffler/internal/config"
	"github.com/awused/mpd-shuffler/internal/infra/mpd/mpdtest"
)

func newWireSession(t *testing.T, srv *mpdtest.Server) *Session {
	t.Helper()

	cfg, err := config.Parse([]byte(fmt.Sprintf(`
mpd_address = %q
database = %q
`, srv.Addr(), filepath.Join(t.TempDir(), "shuffler.db"))))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return NewSession(cfg, NewMPDDialer(cfg.MPDAddress, cfg.MPDPassword), SQLiteStore(cfg.Database, false))
}

func TestRunAgainstServer(t *testing.T) {
	srv := mpdtest.NewServer(t)
	srv.Handle("list file", "file: a.flac\nfile: b.flac\n")
	srv.Handle("status", "volume: 100\nrepeat: 0\nstate: stop\n")

	s := newWireSession(t, srv)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, nil) }()

	added := srv.WaitFor(t, "add ")
	if added != `add "a.flac"` && added != `add "b.flac"` {
		t.Errorf("unexpected add %q", added)
	}

	cancel()
	if err := wait(t, done); err != nil {
		t.Fatalf("Run: %v", err)
	}
	srv.WaitFor(t, "noidle")

	received := srv.Received()
	for _, cmd := range []string{"idle database player playlist options mixer", "list file", "status", "playlistinfo"} {
		if !slices.Contains(received, cmd) {
			t.Errorf("server did not receive %q, got %q", cmd, received)
		}
	}
	adds := 0
	for _, line := range received {
		if strings.HasPrefix(line, "add ") {
			adds++
		}
	}
	if adds != 1 {
		t.Errorf("expected exactly one add, got %d in %q", adds, received)
	}
}

func TestRunDroppedIdleConnection(t *testing.T) {
	srv := mpdtest.NewServer(t)
	srv.Handle("list file", "file: a.flac\n")
	srv.Handle("playlistinfo", "file: a.flac\nId: 1\n")

	s := newWireSession(t, srv)
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), nil) }()

	srv.WaitFor(t, "idle ")
	srv.WaitFor(t, "playlistinfo")
	srv.DropIdle()

	err := wait(t, done)
	if err == nil {
		t.Fatal("expected an error after the idle connection dropped")
	}
	if k := Classify(err); k != KindTransport {
		t.Errorf("Classify() = %v, want transport (%v)", k, err)
	}
}
