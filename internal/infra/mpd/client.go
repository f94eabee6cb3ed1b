// Package mpd provides a wrapper around the gompd MPD client.
package mpd

import (
	"errors"
	"fmt"
	"net"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"
)

// Subsystems are the idle subsystems the shuffler reacts to.
var Subsystems = []string{"database", "player", "playlist", "options", "mixer"}

// ErrNotConnected is returned by commands issued before Connect or after Close.
var ErrNotConnected = errors.New("not connected")

// Field is one key/value line of a response, in server order.
type Field struct {
	Key   string
	Value string
}

// ResolveNetwork picks the transport for addr: "tcp" when it resolves as
// host:port, "unix" otherwise.
func ResolveNetwork(addr string) string {
	if _, err := net.ResolveTCPAddr("tcp", addr); err == nil {
		return "tcp"
	}
	return "unix"
}

// Client is the command connection of a session. It is owned by the session
// goroutine and is not safe for concurrent use.
type Client struct {
	client   *mpd.Client
	network  string
	address  string
	password string
}

// NewClient creates a new MPD client wrapper. The transport is resolved once here.
func NewClient(address, password string) *Client {
	return &Client{
		network:  ResolveNetwork(address),
		address:  address,
		password: password,
	}
}

// Network returns the transport chosen for this client.
func (c *Client) Network() string {
	return c.network
}

// Connect establishes connection to MPD.
func (c *Client) Connect() error {
	log.Debug().Str("network", c.network).Str("addr", c.address).Msg("Connecting to MPD")

	client, err := mpd.DialAuthenticated(c.network, c.address, c.password)
	if err != nil {
		return fmt.Errorf("failed to connect to MPD: %w", err)
	}

	c.client = client
	return nil
}

// Close closes the MPD connection.
func (c *Client) Close() error {
	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}

func (c *Client) conn() (*mpd.Client, error) {
	if c.client == nil {
		return nil, ErrNotConnected
	}
	return c.client, nil
}

// Ping checks if the connection is alive.
func (c *Client) Ping() error {
	client, err := c.conn()
	if err != nil {
		return err
	}
	return client.Ping()
}

// Status returns the current MPD status.
func (c *Client) Status() (map[string]string, error) {
	client, err := c.conn()
	if err != nil {
		return nil, err
	}
	attrs, err := client.Status()
	if err != nil {
		return nil, err
	}
	return map[string]string(attrs), nil
}

// PlaylistInfo returns the queue as file and Id fields in queue order.
//
// gompd groups the response into one map per entry, starting a new entry at
// every file line. Each entry yields its file field followed by its Id field
// when present, so a missing Id surfaces as an unpaired file. A repeated Id
// inside one entry keeps only the last value, and an Id before the first file
// is rejected by gompd as a protocol error.
func (c *Client) PlaylistInfo() ([]Field, error) {
	client, err := c.conn()
	if err != nil {
		return nil, err
	}

	entries, err := client.Command("playlistinfo").AttrsList("file")
	if err != nil {
		return nil, err
	}
	return flattenQueue(entries), nil
}

func flattenQueue(entries []mpd.Attrs) []Field {
	fields := make([]Field, 0, 2*len(entries))
	for _, e := range entries {
		if file, ok := e["file"]; ok {
			fields = append(fields, Field{Key: "file", Value: file})
		}
		if id, ok := e["Id"]; ok {
			fields = append(fields, Field{Key: "Id", Value: id})
		}
	}
	return fields
}

// ListFiles returns every file in the MPD database.
func (c *Client) ListFiles() ([]string, error) {
	client, err := c.conn()
	if err != nil {
		return nil, err
	}
	return client.GetFiles()
}

// Add appends a URI to the queue.
func (c *Client) Add(uri string) error {
	client, err := c.conn()
	if err != nil {
		return err
	}
	return client.Add(uri)
}

// MoveID moves the queue entry with the given id to position.
func (c *Client) MoveID(id, position int) error {
	client, err := c.conn()
	if err != nil {
		return err
	}
	return client.MoveID(id, position)
}

// Delete removes queue entries in [start, end).
func (c *Client) Delete(start, end int) error {
	client, err := c.conn()
	if err != nil {
		return err
	}
	return client.Delete(start, end)
}

// SetRepeat sets repeat mode.
func (c *Client) SetRepeat(on bool) error {
	client, err := c.conn()
	if err != nil {
		return err
	}
	return client.Repeat(on)
}

// SetVolume sets the mixer volume.
func (c *Client) SetVolume(vol int) error {
	client, err := c.conn()
	if err != nil {
		return err
	}
	return client.SetVolume(vol)
}

// SetCrossfade sets the crossfade duration in seconds.
func (c *Client) SetCrossfade(seconds int) error {
	client, err := c.conn()
	if err != nil {
		return err
	}
	return client.Command("crossfade %d", seconds).OK()
}

// Watch opens a dedicated idle connection for the given subsystems.
func (c *Client) Watch(subsystems ...string) (*Watcher, error) {
	w, err := mpd.NewWatcher(c.network, c.address, c.password, subsystems...)
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return newWatcher(w), nil
}
