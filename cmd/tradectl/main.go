package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/atharvakonge/tradeshift/internal/cli"
	"github.com/google/subcommands"
	"github.com/joho/godotenv"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cli.Register(commander)

	// Environment from .env, if any
	_ = godotenv.Load()

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
