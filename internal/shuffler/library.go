package shuffler

import (
	"fmt"

	"github.com/samber/lo"
)

// listFiles returns the MPD database filtered by song_regex.
func (s *Session) listFiles() ([]string, error) {
	files, err := s.conn.ListFiles()
	if err != nil {
		return nil, fmt.Errorf("list file: %w", err)
	}
	return lo.Filter(files, func(f string, _ int) bool {
		return s.cfg.MatchesSong(f)
	}), nil
}

// reconcile returns what must be loaded into and removed from a store holding
// current so that it holds exactly server.
func reconcile(current, server []string) (added, removed []string) {
	removed, added = lo.Difference(lo.Uniq(current), lo.Uniq(server))
	return added, removed
}

// updateFiles makes the store universe equal the MPD database.
func (s *Session) updateFiles() error {
	files, err := s.listFiles()
	if err != nil {
		return err
	}

	current, err := s.store.Values()
	if err != nil {
		return storeErr("values", err)
	}

	added, removed := reconcile(current, files)
	for _, f := range added {
		if err := s.store.Load(f); err != nil {
			return storeErr("load", err)
		}
	}
	for _, f := range removed {
		if err := s.store.SoftRemove(f); err != nil {
			return storeErr("soft remove", err)
		}
	}

	s.log.Info().
		Int("total", len(files)).
		Int("added", len(added)).
		Int("removed", len(removed)).
		Msg("Database updated")
	return nil
}
