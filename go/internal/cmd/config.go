package main

import (
	"flag"
	"os"

	"github.com/mcdev12/songduel/go/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// configPath resolves the config file from -config, then SONGDUEL_CONFIG
func configPath(args []string) (string, error) {
	fs := flag.NewFlagSet("songduel", flag.ContinueOnError)
	path := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if *path != "" {
		return *path, nil
	}
	return os.Getenv("SONGDUEL_CONFIG"), nil
}

func setupLogging(cfg config.Config) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := cfg.Level()
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
