package command

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/joeandaverde/sqlitecore"
)

type NewTreeCommand struct{}

func (c *NewTreeCommand) Help() string {
	helpText := `
Usage: sqlitecore new-tree -kind=table|index <file>

Allocates a fresh, empty B-Tree in an existing database file and
prints its root page number.
`
	return strings.TrimSpace(helpText)
}

func (c *NewTreeCommand) Synopsis() string {
	return "Allocates a new table or index B-Tree"
}

func (c *NewTreeCommand) Run(args []string) int {
	var kindFlag string

	cmdFlags := flag.NewFlagSet("new-tree", flag.ContinueOnError)
	cmdFlags.StringVar(&kindFlag, "kind", "table", "table or index")
	if err := cmdFlags.Parse(args); err != nil {
		return 1
	}

	rest := cmdFlags.Args()
	if len(rest) != 1 {
		_, _ = fmt.Fprintln(os.Stderr, "Error: expected exactly one file argument")
		return 1
	}

	kind, err := parseKind(kindFlag)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		return 1
	}

	db, err := sqlitecore.Open(rest[0], sqlitecore.Config{Log: logrus.New()})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error opening database: %s\n", err.Error())
		return 1
	}
	defer db.Close()

	var root int
	if kind == 0 {
		tree, err := db.CreateTable()
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error allocating table: %s\n", err.Error())
			return 1
		}
		root = tree.Root()
	} else {
		tree, err := db.CreateIndex()
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error allocating index: %s\n", err.Error())
			return 1
		}
		root = tree.Root()
	}

	if err := db.Commit(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error committing database: %s\n", err.Error())
		return 1
	}

	fmt.Println(root)
	return 0
}
