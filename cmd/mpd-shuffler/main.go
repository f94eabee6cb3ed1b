// Package main is the entry point for mpd-shuffler.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/awused/mpd-shuffler/internal/config"
	"github.com/awused/mpd-shuffler/internal/infra/mpd"
	"github.com/awused/mpd-shuffler/internal/shuffler"
	"github.com/awused/mpd-shuffler/internal/supervisor"
	"github.com/awused/mpd-shuffler/internal/version"
)

func main() {
	configPath := flag.StringP("config", "c", config.DefaultPath(), "Path to the TOML config file")
	debug := flag.BoolP("debug", "d", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetInfo().String())
		return
	}

	setupLogging(*debug)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
	}
	if cfg.Debug {
		setupLogging(true)
	}

	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", version.GetInfo().String())
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	retention := "unlimited"
	if keep, ok := cfg.Retention(); ok {
		retention = fmt.Sprint(keep)
	}
	log.Info().
		Str("mpd_address", cfg.MPDAddress).
		Str("network", mpd.ResolveNetwork(cfg.MPDAddress)).
		Bool("password_set", cfg.MPDPassword != "").
		Str("database", cfg.Database).
		Str("song_regex", cfg.SongRegex).
		Str("keep_last", retention).
		Bool("disable_repeat", cfg.DisableRepeat).
		Bool("lock_volume", cfg.LockVolume).
		Bool("disable_crossfade", cfg.DisableCrossfade).
		Msg("Configuration")

	ctx, maintenance, stop := supervisor.NotifySignals(context.Background())
	defer stop()

	session := shuffler.NewSession(
		cfg,
		shuffler.NewMPDDialer(cfg.MPDAddress, cfg.MPDPassword),
		shuffler.SQLiteStore(cfg.Database, cfg.NewSongsTreatedAsOld),
	)

	if err := supervisor.New(session, cfg.RetryDelay()).Run(ctx, maintenance); err != nil {
		stop()
		log.Fatal().Err(err).Stringer("kind", shuffler.Classify(err)).Msg("Unrecoverable error")
	}

	log.Info().Msg("Stopped")
}

func setupLogging(debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
