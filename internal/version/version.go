// Package version identifies the mpd-shuffler build. It backs the --version
// flag and the startup banner, so a log can be matched to the binary that
// wrote it.
package version

import "fmt"

// Set with -ldflags "-X github.com/awused/mpd-shuffler/internal/version.Version=...".
var (
	Name      = "mpd-shuffler"
	Version   = "0.3.0"
	BuildTime = ""
	GitCommit = ""
)

// Info is a snapshot of the build variables.
type Info struct {
	Name      string
	Version   string
	BuildTime string
	GitCommit string
}

func GetInfo() Info {
	return Info{
		Name:      Name,
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}
}

// String renders "name vX (commit) built T", omitting unknown parts. The
// commit is shortened to seven characters.
func (i Info) String() string {
	s := fmt.Sprintf("%s v%s", i.Name, i.Version)
	if i.GitCommit != "" {
		s += fmt.Sprintf(" (%s)", i.GitCommit[:min(7, len(i.GitCommit))])
	}
	if i.BuildTime != "" {
		s += " built " + i.BuildTime
	}
	return s
}
