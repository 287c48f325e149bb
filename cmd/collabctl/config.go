package main

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// COLLABCTL_ADDR is the base URL of the collabd control plane
	Addr string `envconfig:"COLLABCTL_ADDR" default:"http://localhost:8080"`
	// COLLABCTL_COLOURS enables colorized output
	Colours bool `envconfig:"COLLABCTL_COLOURS" default:"true"`
	// COLLABCTL_BADGER_FILEPATH reads snapshots straight from a badger archive
	BadgerFilepath string `envconfig:"COLLABCTL_BADGER_FILEPATH"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
