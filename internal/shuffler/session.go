// Package shuffler keeps MPD playing a never-repeating shuffle of its library.
//
// A Session mirrors the MPD database into a persistent store and, whenever
// playback reaches the end of the queue, appends a song picked from the store.
package shuffler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/awused/mpd-shuffler/internal/config"
)

// Session drives one connection to MPD. Run may be called again after it
// returns; every call starts from fresh state.
type Session struct {
	cfg          *config.Config
	dialer       Dialer
	openStore    StoreOpener
	pingInterval time.Duration

	log      zerolog.Logger
	conn     Conn
	store    Store
	state    PlayerState
	playlist map[string]string
}

// NewSession creates a session driver.
func NewSession(cfg *config.Config, dialer Dialer, openStore StoreOpener) *Session {
	return &Session{
		cfg:          cfg,
		dialer:       dialer,
		openStore:    openStore,
		pingInterval: cfg.PingInterval(),
		log:          log.Logger,
	}
}

// Run connects to MPD and handles changes until the connection fails or ctx
// is cancelled. A cancelled ctx ends the session cleanly and returns nil.
// Each value received on maintenance compacts the store.
func (s *Session) Run(ctx context.Context, maintenance <-chan os.Signal) (err error) {
	s.log = log.With().Str("session", uuid.NewString()).Logger()
	s.state = PlayerState{}
	s.playlist = map[string]string{}

	conn, watcher, err := s.dialer.Dial()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	s.conn = conn
	defer func() {
		conn.Close()
		s.conn = nil
	}()
	// Closing the watcher sends noidle.
	defer watcher.Close()

	files, err := s.listFiles()
	if err != nil {
		return err
	}

	store, err := s.openStore(files, true)
	if err != nil {
		return storeErr("open", err)
	}
	s.store = store
	defer func() {
		if s.store == nil {
			return
		}
		if cerr := s.store.Close(); cerr != nil && err == nil {
			err = storeErr("close", cerr)
		}
		s.store = nil
	}()

	s.log.Info().Int("files", len(files)).Msg("Connected to MPD")

	if err := s.optionsChange(); err != nil {
		return err
	}
	if err := s.playlistChange(); err != nil {
		return err
	}
	if err := s.playerChange(); err != nil {
		return err
	}

	ping := time.NewTicker(s.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Closing session")
			return nil
		case <-maintenance:
			if err := s.compact(); err != nil {
				return err
			}
		case err := <-watcher.Errors():
			return fmt.Errorf("idle: %w", err)
		case ev, ok := <-watcher.Events():
			if !ok {
				return ErrWatcherClosed
			}
			if err := s.dispatch(collect(ev, watcher.Events())); err != nil {
				return err
			}
		case <-ping.C:
			if err := s.conn.Ping(); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

// collect gathers first and every event already pending into one wake.
func collect(first string, events <-chan string) map[string]bool {
	changed := map[string]bool{first: true}
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return changed
			}
			changed[ev] = true
		default:
			return changed
		}
	}
}

// dispatch runs each handler at most once per wake. Handlers read the
// current server state, so the order only matters for the database, which
// must be current before a song is picked.
func (s *Session) dispatch(changed map[string]bool) error {
	s.log.Debug().Strs("subsystems", lo.Keys(changed)).Msg("Idle wake")

	if changed["database"] {
		if err := s.updateFiles(); err != nil {
			return err
		}
	}
	if changed["player"] {
		if err := s.playerChange(); err != nil {
			return err
		}
	}
	if changed["playlist"] {
		if err := s.playlistChange(); err != nil {
			return err
		}
	}
	if changed["options"] || changed["mixer"] {
		if err := s.optionsChange(); err != nil {
			return err
		}
	}
	return nil
}

// compact hands the store over to a purging instance and back. The live
// store is closed before any other instance is opened.
func (s *Session) compact() error {
	s.log.Info().Msg("Compacting store")

	values, err := s.store.Values()
	if err != nil {
		return storeErr("values", err)
	}
	if err := s.store.Close(); err != nil {
		s.store = nil
		return storeErr("close", err)
	}
	s.store = nil

	tmp, err := s.openStore(values, false)
	if err != nil {
		return storeErr("open", err)
	}
	if err := tmp.Compact(); err != nil {
		tmp.Close()
		return storeErr("compact", err)
	}
	if err := tmp.Close(); err != nil {
		return storeErr("close", err)
	}

	live, err := s.openStore(values, true)
	if err != nil {
		return storeErr("open", err)
	}
	s.store = live

	s.log.Info().Int("size", len(values)).Msg("Store compacted")
	return nil
}
