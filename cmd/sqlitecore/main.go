package main

import (
	"fmt"
	"os"

	"github.com/mitchellh/cli"

	"github.com/joeandaverde/sqlitecore/cmd/sqlitecore/command"
)

func main() {
	args := os.Args[1:]

	commands := map[string]cli.CommandFactory{
		"create": func() (cli.Command, error) {
			return &command.CreateCommand{}, nil
		},
		"new-tree": func() (cli.Command, error) {
			return &command.NewTreeCommand{}, nil
		},
		"put": func() (cli.Command, error) {
			return &command.PutCommand{}, nil
		},
		"get": func() (cli.Command, error) {
			return &command.GetCommand{}, nil
		},
		"scan": func() (cli.Command, error) {
			return &command.ScanCommand{}, nil
		},
		"delete": func() (cli.Command, error) {
			return &command.DeleteCommand{}, nil
		},
		"stat": func() (cli.Command, error) {
			return &command.StatCommand{}, nil
		},
	}

	coreCLI := &cli.CLI{
		Name:         "sqlitecore",
		Args:         args,
		Commands:     commands,
		HelpFunc:     cli.BasicHelpFunc("sqlitecore"),
		Autocomplete: true,
	}

	exitCode, err := coreCLI.Run()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		os.Exit(1)
	}

	os.Exit(exitCode)
}
