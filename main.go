package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

// CLI is the command line of the host process
type CLI struct {
	ConfigFile string `name:"config" help:"Path to configuration file (default chapterhook.yaml when present)" env:"CHAPTERHOOK_CONFIG"`
	Store      string `help:"Settings database, overrides the configuration"`
	LogLevel   string `help:"Log level (debug, info, warn, error)"`
	LogFile    string `help:"Write logs to this file instead of stderr"`

	Run      RunCmd      `cmd:"" help:"Open a page and capture it once"`
	Watch    WatchCmd    `cmd:"" help:"Open pages and capture the active tab on a hotkey"`
	Batch    BatchCmd    `cmd:"" help:"Capture several pages in order, advancing the chapter each time"`
	Settings SettingsCmd `cmd:"" name:"config" help:"Show or edit run settings and extractor rules"`
}

func main() {
	var cli CLI

	ctx := kong.Parse(&cli,
		kong.Name("chapterhook"),
		kong.Description("Capture novel chapters from browser tabs and send them to the chapter backend."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
