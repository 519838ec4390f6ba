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

type PutCommand struct{}

func (c *PutCommand) Help() string {
	helpText := `
Usage: sqlitecore put -root=N [options] <file>

Inserts a row into a table B-Tree, or a key into an index B-Tree.

Options:

	-kind=table	table or index
	-rowid=0	Row id (table trees only)
	-values=""	Comma separated tagged columns: i:1,t:hello,f:1.5,x:deadbeef,n
`
	return strings.TrimSpace(helpText)
}

func (c *PutCommand) Synopsis() string {
	return "Inserts a row or index key"
}

func (c *PutCommand) Run(args []string) int {
	var kindFlag string
	var root int
	var rowID int64
	var values string

	cmdFlags := flag.NewFlagSet("put", flag.ContinueOnError)
	cmdFlags.StringVar(&kindFlag, "kind", "table", "table or index")
	cmdFlags.IntVar(&root, "root", 0, "B-Tree root page number")
	cmdFlags.Int64Var(&rowID, "rowid", 0, "row id (table trees only)")
	cmdFlags.StringVar(&values, "values", "", "tagged columns")
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

	rec, err := parseRecord(values)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error parsing -values: %s\n", err.Error())
		return 1
	}

	db, err := sqlitecore.Open(rest[0], sqlitecore.Config{Log: logrus.New()})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error opening database: %s\n", err.Error())
		return 1
	}
	defer db.Close()

	tree := db.OpenBTree(root, kind)
	if kind == btree.Table {
		err = tree.Insert(rowID, rec)
	} else {
		err = tree.InsertIndex(rec)
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error inserting: %s\n", err.Error())
		return 1
	}

	if err := db.Commit(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error committing database: %s\n", err.Error())
		return 1
	}

	fmt.Println("ok")
	return 0
}
