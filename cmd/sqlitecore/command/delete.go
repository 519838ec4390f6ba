package command

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/joeandaverde/sqlitecore"
	"github.com/joeandaverde/sqlitecore/internal/btree"
)

type DeleteCommand struct{}

func (c *DeleteCommand) Help() string {
	helpText := `
Usage: sqlitecore delete -root=N [options] <file>

Removes a row by rowid from a table B-Tree, or a key from an index
B-Tree.

Options:

	-kind=table	table or index
	-rowid=0	Row id (table trees only)
	-values=""	Tagged key columns (index trees only)
`
	return strings.TrimSpace(helpText)
}

func (c *DeleteCommand) Synopsis() string {
	return "Deletes a row or index key"
}

func (c *DeleteCommand) Run(args []string) int {
	var kindFlag string
	var root int
	var rowID int64
	var values string

	cmdFlags := flag.NewFlagSet("delete", flag.ContinueOnError)
	cmdFlags.StringVar(&kindFlag, "kind", "table", "table or index")
	cmdFlags.IntVar(&root, "root", 0, "B-Tree root page number")
	cmdFlags.Int64Var(&rowID, "rowid", 0, "row id (table trees only)")
	cmdFlags.StringVar(&values, "values", "", "tagged key columns")
	if err := cmdFlags.Parse(args); err != nil {
		return 1
	}

	rest := cmdFlags.Args()
	if len(rest) != 1 || root == 0 {
		_, _ = fmt.Fprintln(os.Stderr, "Error: expected a -root and exactly one file argument")
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

	tree := db.OpenBTree(root, kind)
	var found bool
	if kind == btree.Table {
		found, err = tree.Delete(rowID)
	} else {
		key, perr := parseRecord(values)
		if perr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error parsing -values: %s\n", perr.Error())
			return 1
		}
		found, err = tree.DeleteIndex(key)
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error deleting: %s\n", err.Error())
		return 1
	}
	if !found {
		fmt.Println("not found")
		return 1
	}

	if err := db.Commit(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error committing database: %s\n", err.Error())
		return 1
	}

	fmt.Println("ok")
	return 0
}
