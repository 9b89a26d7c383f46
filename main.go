package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/itxchy/simon/internal/config"
	"github.com/itxchy/simon/internal/httpserver"
	"github.com/itxchy/simon/internal/palette"
	"github.com/itxchy/simon/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if os.Getenv("LOG_PRETTY") != "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	pal, err := palette.Load(cfg.SignalsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load signal palette")
	}

	srv := httpserver.New(store.NewMemoryStore(), pal, httpserver.Options{
		Engine:       cfg.Engine(),
		ClientOrigin: cfg.ClientOrigin,
		JWTSecret:    cfg.JWTSecret,
		JWTTTL:       cfg.JWTTTL,
		DailySalt:    cfg.DailySalt,
	})
	defer srv.Close()

	log.Info().Str("port", cfg.Port).Int("signals", len(pal.Signals())).Int("maxLength", cfg.MaxLength).Msg("starting simon server")
	if err := srv.Start(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
