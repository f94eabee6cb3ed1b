package shuffler

import (
	"fmt"
	"strconv"
)

// playerChange reacts to a new player status. Nothing happens unless one of
// the tracked fields changed.
func (s *Session) playerChange() error {
	status, err := s.conn.Status()
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	next := playerStateFrom(status)
	if next == s.state {
		return nil
	}
	s.state = next

	s.log.Debug().
		Str("state", s.state.State).
		Str("song", s.state.Song).
		Str("songid", s.state.SongID).
		Str("nextsongid", s.state.NextSongID).
		Msg("Player changed")

	if s.state.State != StatePlay {
		return nil
	}

	added, err := s.maybeAddNext()
	if err != nil {
		return err
	}
	if !added && !s.state.HasNext() {
		return nil
	}
	return s.pruneHistory()
}

// pruneHistory deletes queue entries more than keep_last before the current song.
func (s *Session) pruneHistory() error {
	keep, ok := s.cfg.Retention()
	if !ok {
		return nil
	}

	pos, err := strconv.Atoi(s.state.Song)
	if err != nil {
		return fmt.Errorf("current position %q: %w", s.state.Song, err)
	}
	if pos <= keep {
		return nil
	}

	end := pos - keep
	s.log.Debug().Int("start", 0).Int("end", end).Msg("Removing old songs")
	if err := s.conn.Delete(0, end); err != nil {
		return fmt.Errorf("delete 0:%d: %w", end, err)
	}
	return nil
}
