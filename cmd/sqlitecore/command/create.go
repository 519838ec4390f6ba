package command

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/joeandaverde/sqlitecore"
)

// FileConfig is the on-disk config loaded by -config; it only overrides
// page layout on creation, matching tinydb's flat yaml config style.
type FileConfig struct {
	PageSize      uint32 `yaml:"page_size"`
	ReservedSpace byte   `yaml:"reserved_space"`
}

type CreateCommand struct{}

func (c *CreateCommand) Help() string {
	helpText := `
Usage: sqlitecore create [options] <file>

Options:

	-config=""	Optional yaml file with page_size/reserved_space
`
	return strings.TrimSpace(helpText)
}

func (c *CreateCommand) Synopsis() string {
	return "Creates a new, empty SQLite 3 compatible database file"
}

func (c *CreateCommand) Run(args []string) int {
	var configPath string

	cmdFlags := flag.NewFlagSet("create", flag.ContinueOnError)
	cmdFlags.StringVar(&configPath, "config", "", "yaml config file")
	if err := cmdFlags.Parse(args); err != nil {
		return 1
	}

	rest := cmdFlags.Args()
	if len(rest) != 1 {
		_, _ = fmt.Fprintln(os.Stderr, "Error: expected exactly one file argument")
		return 1
	}

	cfg := sqlitecore.Config{Log: logrus.New()}
	if configPath != "" {
		f, err := os.Open(configPath)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error opening config file: %s\n", err.Error())
			return 1
		}
		defer f.Close()

		var fc FileConfig
		if err := yaml.NewDecoder(f).Decode(&fc); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error parsing config file: %s\n", err.Error())
			return 1
		}
		cfg.PageSize = fc.PageSize
		cfg.ReservedSpace = fc.ReservedSpace
	}

	db, err := sqlitecore.Create(rest[0], cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error creating database: %s\n", err.Error())
		return 1
	}
	defer db.Close()

	if err := db.Commit(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error committing database: %s\n", err.Error())
		return 1
	}

	fmt.Println("created", rest[0])
	return 0
}
