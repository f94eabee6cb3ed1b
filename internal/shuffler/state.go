package shuffler

// Playback states reported by MPD.
const (
	StatePlay  = "play"
	StatePause = "pause"
	StateStop  = "stop"
)

// PlayerState is the part of the MPD status the shuffler reacts to.
// Empty strings mean the field was absent.
type PlayerState struct {
	State      string
	Song       string // queue position of the current song
	SongID     string
	NextSongID string
}

func playerStateFrom(status map[string]string) PlayerState {
	return PlayerState{
		State:      status["state"],
		Song:       status["song"],
		SongID:     status["songid"],
		NextSongID: status["nextsongid"],
	}
}

// HasNext reports whether MPD already has a song queued after the current one.
func (p PlayerState) HasNext() bool {
	return p.NextSongID != ""
}
