package main

import (
	"flag"

	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/config"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/daemon"
	"go.uber.org/fx"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath(), "path to config.toml")
	flag.Parse()

	app := fx.New(
		daemon.Module(daemon.Params{ConfigPath: *configPath}),
	)

	app.Run()
}
