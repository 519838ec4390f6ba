package command

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/posener/complete"
	"github.com/sirupsen/logrus"

	"github.com/joeandaverde/sqlitecore"
	"github.com/joeandaverde/sqlitecore/internal/btree"
	"github.com/joeandaverde/sqlitecore/internal/storage"
)

type ScanCommand struct{}

func (c *ScanCommand) AutocompleteFlags() complete.Flags {
	return complete.Flags{
		"-kind": complete.PredictSet("table", "index"),
		"-root": complete.PredictAnything,
	}
}

func (c *ScanCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictFiles("*.db")
}

func (c *ScanCommand) Help() string {
	helpText := `
Usage: sqlitecore scan -root=N [options] <file>

Walks every row (table) or key (index) in order and prints one per
line.

Options:

	-kind=table	table or index
`
	return strings.TrimSpace(helpText)
}

func (c *ScanCommand) Synopsis() string {
	return "Dumps every row or key in a B-Tree"
}

func (c *ScanCommand) Run(args []string) int {
	var kindFlag string
	var root int

	cmdFlags := flag.NewFlagSet("scan", flag.ContinueOnError)
	cmdFlags.StringVar(&kindFlag, "kind", "table", "table or index")
	cmdFlags.IntVar(&root, "root", 0, "B-Tree root page number")
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
	if kind == btree.Table {
		err = tree.ScanTable(func(rowID int64, rec storage.Record) (bool, error) {
			fmt.Printf("%d\t%s\n", rowID, formatRecord(rec))
			return true, nil
		})
	} else {
		err = tree.ScanIndex(func(rec storage.Record) (bool, error) {
			fmt.Println(formatRecord(rec))
			return true, nil
		})
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error scanning: %s\n", err.Error())
		return 1
	}
	return 0
}
