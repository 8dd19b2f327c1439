package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
)

var configPath = flag.String("config", defaultConfigPath(), "path to the YAML config file")

func defaultConfigPath() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "configs/config.yaml"
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range dataCommands {
		commander.Register(c, "data")
	}
	for _, c := range serviceCommands {
		commander.Register(c, "service")
	}

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
