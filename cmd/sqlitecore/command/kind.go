package command

import (
	"fmt"

	"github.com/joeandaverde/sqlitecore/internal/btree"
)

func parseKind(s string) (btree.Kind, error) {
	switch s {
	case "table":
		return btree.Table, nil
	case "index":
		return btree.Index, nil
	default:
		return 0, fmt.Errorf("unknown tree kind %q, want table or index", s)
	}
}
