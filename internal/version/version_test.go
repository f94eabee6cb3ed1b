package version_test

import (
	"strings"
	"testing"

	"github.com/awused/mpd-shuffler/internal/version"
)

func TestGetInfo(t *testing.T) {
	info := version.GetInfo()

	if info.Name != "mpd-shuffler" {
		t.Errorf("Expected name 'mpd-shuffler', got '%s'", info.Name)
	}
	if info.Version == "" {
		t.Error("Version should not be empty")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		name string
		info version.Info
		want string
	}{
		{
			name: "name and version only",
			info: version.Info{Name: "mpd-shuffler", Version: "1.0.0"},
			want: "mpd-shuffler v1.0.0",
		},
		{
			name: "long commit is shortened",
			info: version.Info{Name: "mpd-shuffler", Version: "1.0.0", GitCommit: "0123456789abcdef"},
			want: "mpd-shuffler v1.0.0 (0123456)",
		},
		{
			name: "short commit kept as is",
			info: version.Info{Name: "mpd-shuffler", Version: "1.0.0", GitCommit: "abc"},
			want: "mpd-shuffler v1.0.0 (abc)",
		},
		{
			name: "build time appended",
			info: version.Info{Name: "mpd-shuffler", Version: "1.0.0", BuildTime: "2024-01-01"},
			want: "mpd-shuffler v1.0.0 built 2024-01-01",
		},
		{
			name: "banner with every field",
			info: version.Info{Name: "mpd-shuffler", Version: "0.3.0", GitCommit: "deadbeefcafe", BuildTime: "2026-10-16T12:00:00Z"},
			want: "mpd-shuffler v0.3.0 (deadbee) built 2026-10-16T12:00:00Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStringContainsName(t *testing.T) {
	if !strings.Contains(version.GetInfo().String(), version.Name) {
		t.Error("String() should contain the application name")
	}
}
