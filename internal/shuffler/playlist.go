package shuffler

import (
	"fmt"

	"github.com/awused/mpd-shuffler/internal/infra/mpd"
)

// playlistChange rebuilds the queue mirror. An empty queue gets a song right
// away instead of waiting for a player event.
func (s *Session) playlistChange() error {
	fields, err := s.conn.PlaylistInfo()
	if err != nil {
		return fmt.Errorf("playlistinfo: %w", err)
	}

	playlist, err := buildPlaylist(fields)
	if err != nil {
		return err
	}
	s.playlist = playlist

	s.log.Debug().Int("length", len(playlist)).Msg("Playlist changed")

	if len(s.playlist) == 0 {
		_, err := s.maybeAddNext()
		return err
	}
	return nil
}

// buildPlaylist maps each queued file to its queue id. Every file line must be
// paired with exactly one Id line before the next file or Id begins.
func buildPlaylist(fields []mpd.Field) (map[string]string, error) {
	playlist := make(map[string]string, len(fields)/2)

	var file, id *string
	for _, f := range fields {
		switch f.Key {
		case "file":
			if file != nil {
				return nil, &InvariantError{Msg: fmt.Sprintf("mismatched playlist, unmatched file %q", *file)}
			}
			file = &f.Value
		case "Id":
			if id != nil {
				return nil, &InvariantError{Msg: fmt.Sprintf("mismatched playlist, unmatched id %q", *id)}
			}
			id = &f.Value
		}

		if file != nil && id != nil {
			playlist[*file] = *id
			file, id = nil, nil
		}
	}

	if file != nil {
		return nil, &InvariantError{Msg: fmt.Sprintf("mismatched playlist, unmatched file %q", *file)}
	}
	if id != nil {
		return nil, &InvariantError{Msg: fmt.Sprintf("mismatched playlist, unmatched id %q", *id)}
	}
	return playlist, nil
}
