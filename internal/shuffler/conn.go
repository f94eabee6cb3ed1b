package shuffler

import (
	"github.com/awused/mpd-shuffler/internal/infra/mpd"
	"github.com/awused/mpd-shuffler/internal/infra/store"
)

// Conn is the command connection of a session.
type Conn interface {
	Status() (map[string]string, error)
	PlaylistInfo() ([]mpd.Field, error)
	ListFiles() ([]string, error)
	Add(uri string) error
	MoveID(id, position int) error
	Delete(start, end int) error
	SetRepeat(on bool) error
	SetVolume(vol int) error
	SetCrossfade(seconds int) error
	Ping() error
	Close() error
}

// Watcher delivers changed subsystem names from an idle connection.
type Watcher interface {
	Events() <-chan string
	Errors() <-chan error
	Close() error
}

// Dialer opens both connections of a session.
type Dialer interface {
	Dial() (Conn, Watcher, error)
}

// Store is the persistent universe of files to pick from.
type Store interface {
	Next() (string, error)
	Load(value string) error
	SoftRemove(value string) error
	Size() (int, error)
	Values() ([]string, error)
	Compact() error
	Close() error
}

// StoreOpener opens the store seeded with seed. Stored values missing from
// seed are kept as removed when keepUnrecognized is set, and dropped otherwise.
type StoreOpener func(seed []string, keepUnrecognized bool) (Store, error)

type mpdDialer struct {
	address  string
	password string
}

// NewMPDDialer dials MPD at address, which is either host:port or a socket path.
func NewMPDDialer(address, password string) Dialer {
	return mpdDialer{address: address, password: password}
}

// Dial opens the idle connection before the command connection so no change
// made during bootstrap goes unnoticed.
func (d mpdDialer) Dial() (Conn, Watcher, error) {
	client := mpd.NewClient(d.address, d.password)

	watcher, err := client.Watch(mpd.Subsystems...)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Connect(); err != nil {
		watcher.Close()
		return nil, nil, err
	}
	return client, watcher, nil
}

// SQLiteStore opens the SQLite store at path.
func SQLiteStore(path string, newAsOld bool) StoreOpener {
	return func(seed []string, keepUnrecognized bool) (Store, error) {
		s, err := store.Open(path, store.Options{
			KeepUnrecognized: keepUnrecognized,
			NewAsOld:         newAsOld,
		}, seed)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
