package shuffler

import "fmt"

// optionsChange undoes option changes that fight the shuffler.
func (s *Session) optionsChange() error {
	status, err := s.conn.Status()
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	if s.cfg.DisableRepeat && status["repeat"] == "1" {
		s.log.Info().Msg("Disabling repeat")
		if err := s.conn.SetRepeat(false); err != nil {
			return fmt.Errorf("repeat 0: %w", err)
		}
	}

	// -1 means MPD has no mixer and would reject setvol.
	if vol, ok := status["volume"]; s.cfg.LockVolume && ok && vol != "100" && vol != "-1" {
		s.log.Info().Str("volume", vol).Msg("Resetting volume")
		if err := s.conn.SetVolume(100); err != nil {
			return fmt.Errorf("setvol 100: %w", err)
		}
	}

	if xfade, ok := status["xfade"]; s.cfg.DisableCrossfade && ok && xfade != "0" {
		s.log.Info().Str("xfade", xfade).Msg("Disabling crossfade")
		if err := s.conn.SetCrossfade(0); err != nil {
			return fmt.Errorf("crossfade 0: %w", err)
		}
	}
	return nil
}
