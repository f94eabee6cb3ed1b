package shuffler

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"

	"github.com/awused/mpd-shuffler/internal/config"
	"github.com/awused/mpd-shuffler/internal/infra/mpd"
)

func testConfig(t *testing.T, extra string) *config.Config {
	t.Helper()

	cfg, err := config.Parse([]byte(`
mpd_address = "localhost:6600"
database = "unused.db"
` + extra))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

// fakeConn records every mutating command in MPD protocol form.
type fakeConn struct {
	mu       sync.Mutex
	status   map[string]string
	queue    []mpd.Field
	files    []string
	fail     map[string]error
	commands []string
	pings    int
	closed   bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{status: map[string]string{}, fail: map[string]error{}}
}

func (c *fakeConn) record(cmd, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail[name]; err != nil {
		return err
	}
	c.commands = append(c.commands, cmd)
	return nil
}

func (c *fakeConn) Commands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.commands)
}

func (c *fakeConn) setStatus(status map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
}

func (c *fakeConn) setQueue(fields ...mpd.Field) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = fields
}

func (c *fakeConn) setFiles(files ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = files
}

func (c *fakeConn) Status() (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail["status"]; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(c.status))
	for k, v := range c.status {
		out[k] = v
	}
	return out, nil
}

func (c *fakeConn) PlaylistInfo() ([]mpd.Field, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail["playlistinfo"]; err != nil {
		return nil, err
	}
	return slices.Clone(c.queue), nil
}

func (c *fakeConn) ListFiles() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail["list"]; err != nil {
		return nil, err
	}
	return slices.Clone(c.files), nil
}

func (c *fakeConn) Add(uri string) error {
	return c.record("add "+uri, "add")
}

func (c *fakeConn) MoveID(id, position int) error {
	return c.record(fmt.Sprintf("moveid %d %d", id, position), "moveid")
}

func (c *fakeConn) Delete(start, end int) error {
	return c.record(fmt.Sprintf("delete %d:%d", start, end), "delete")
}

func (c *fakeConn) SetRepeat(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return c.record(fmt.Sprintf("repeat %d", v), "repeat")
}

func (c *fakeConn) SetVolume(vol int) error {
	return c.record(fmt.Sprintf("setvol %d", vol), "setvol")
}

func (c *fakeConn) SetCrossfade(seconds int) error {
	return c.record(fmt.Sprintf("crossfade %d", seconds), "crossfade")
}

func (c *fakeConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail["ping"]; err != nil {
		return err
	}
	c.pings++
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type fakeWatcher struct {
	events chan string
	errs   chan error
	mu     sync.Mutex
	closed bool
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{events: make(chan string, 16), errs: make(chan error, 1)}
}

func (w *fakeWatcher) Events() <-chan string { return w.events }
func (w *fakeWatcher) Errors() <-chan error  { return w.errs }

func (w *fakeWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWatcher) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

type fakeDialer struct {
	conn    *fakeConn
	watcher *fakeWatcher
	err     error
}

func (d *fakeDialer) Dial() (Conn, Watcher, error) {
	if d.err != nil {
		return nil, nil, d.err
	}
	return d.conn, d.watcher, nil
}

// fakeStore picks from picks in order, falling back to the smallest active value.
type fakeStore struct {
	mu        sync.Mutex
	active    map[string]bool
	removed   map[string]bool
	picks     []string
	loaded    []string
	softRm    []string
	compacted int
	closed    bool
	fail      map[string]error
}

func newFakeStore(values ...string) *fakeStore {
	s := &fakeStore{active: map[string]bool{}, removed: map[string]bool{}, fail: map[string]error{}}
	for _, v := range values {
		s.active[v] = true
	}
	return s
}

func (s *fakeStore) check(op string) error {
	if s.closed {
		return errors.New("closed")
	}
	return s.fail[op]
}

func (s *fakeStore) Next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("next"); err != nil {
		return "", err
	}
	if len(s.picks) > 0 {
		v := s.picks[0]
		s.picks = s.picks[1:]
		return v, nil
	}
	values := s.sorted()
	if len(values) == 0 {
		return "", errors.New("empty")
	}
	return values[0], nil
}

func (s *fakeStore) Load(value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("load"); err != nil {
		return err
	}
	s.loaded = append(s.loaded, value)
	delete(s.removed, value)
	s.active[value] = true
	return nil
}

func (s *fakeStore) SoftRemove(value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("soft remove"); err != nil {
		return err
	}
	s.softRm = append(s.softRm, value)
	delete(s.active, value)
	s.removed[value] = true
	return nil
}

func (s *fakeStore) Size() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("size"); err != nil {
		return 0, err
	}
	return len(s.active), nil
}

func (s *fakeStore) Values() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("values"); err != nil {
		return nil, err
	}
	return s.sorted(), nil
}

func (s *fakeStore) sorted() []string {
	values := make([]string, 0, len(s.active))
	for v := range s.active {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

func (s *fakeStore) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("compact"); err != nil {
		return err
	}
	s.compacted++
	return nil
}

func (s *fakeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type openCall struct {
	seed             []string
	keepUnrecognized bool
}

// fakeOpener hands out a new fakeStore per call, seeded like the real store.
type fakeOpener struct {
	mu     sync.Mutex
	calls  []openCall
	stores []*fakeStore
	err    error
}

func (o *fakeOpener) open(seed []string, keepUnrecognized bool) (Store, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, openCall{seed: slices.Clone(seed), keepUnrecognized: keepUnrecognized})
	if o.err != nil {
		return nil, o.err
	}
	s := newFakeStore(seed...)
	o.stores = append(o.stores, s)
	return s, nil
}

func (o *fakeOpener) Calls() []openCall {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.calls)
}

func (o *fakeOpener) Stores() []*fakeStore {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.stores)
}

// newTestSession builds a session wired to fakes, bypassing Run.
func newTestSession(t *testing.T, cfg *config.Config, conn *fakeConn, st *fakeStore) *Session {
	t.Helper()

	s := NewSession(cfg, &fakeDialer{conn: conn}, nil)
	s.conn = conn
	s.store = st
	s.playlist = map[string]string{}
	return s
}

func queue(pairs ...string) []mpd.Field {
	fields := make([]mpd.Field, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		fields = append(fields, mpd.Field{Key: "file", Value: pairs[i]}, mpd.Field{Key: "Id", Value: pairs[i+1]})
	}
	return fields
}
