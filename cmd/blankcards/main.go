package main

import (
	"github.com/alecthomas/kong"

	"github.com/lox/blankcards/internal/client/commands"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	commands.GlobalFlags

	Version kong.VersionFlag       `short:"v" help:"Show version"`
	Play    commands.PlayCommand   `cmd:"" default:"withargs" help:"Play in the terminal UI"`
	Rooms   commands.RoomsCommand  `cmd:"" help:"List open rooms"`
	Create  commands.CreateCommand `cmd:"" help:"Create a room and print its id"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("blankcards"),
		kong.Description("Terminal client for blankcards, the fill-in-the-blank party game"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)

	err := ctx.Run(&cli.GlobalFlags)
	ctx.FatalIfErrorf(err)
}
