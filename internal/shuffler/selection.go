package shuffler

import (
	"fmt"
	"strconv"
)

// maybeAddNext queues a random song after the current one unless MPD already
// has a next song. It reports whether a new queue entry was created; reusing
// an entry already in the queue does not count.
func (s *Session) maybeAddNext() (bool, error) {
	if s.state.HasNext() {
		return false, nil
	}

	size, err := s.store.Size()
	if err != nil {
		return false, storeErr("size", err)
	}
	if size == 0 {
		s.log.Info().Msg("No valid files to add to end of playlist")
		return false, nil
	}

	var (
		file   string
		id     string
		queued bool
	)
	for {
		file, err = s.store.Next()
		if err != nil {
			return false, storeErr("next", err)
		}

		id, queued = s.playlist[file]
		if !queued || id != s.state.SongID {
			break
		}

		s.log.Debug().Str("file", file).Msg("Selected song is already playing")
		if size == 1 {
			s.log.Info().Msg("No other songs are available to play")
			return false, nil
		}
	}

	if queued {
		return false, s.moveNext(file, id)
	}

	s.log.Debug().Str("file", file).Msg("Adding song")
	if err := s.conn.Add(file); err != nil {
		return false, fmt.Errorf("add %q: %w", file, err)
	}
	return true, nil
}

// moveNext moves an existing queue entry to the current position. Nothing is
// queued after the current song, so the entry comes from earlier in the queue
// and lands directly after it.
func (s *Session) moveNext(file, id string) error {
	songID, err := strconv.Atoi(id)
	if err != nil {
		return fmt.Errorf("queue id %q: %w", id, err)
	}
	pos, err := strconv.Atoi(s.state.Song)
	if err != nil {
		return fmt.Errorf("current position %q: %w", s.state.Song, err)
	}

	s.log.Debug().Str("file", file).Int("id", songID).Int("position", pos).Msg("Song is already queued, moving")
	if err := s.conn.MoveID(songID, pos); err != nil {
		return fmt.Errorf("moveid %d %d: %w", songID, pos, err)
	}
	return nil
}
