package command

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/joeandaverde/sqlitecore/internal/storage"
)

// parseRecord parses a comma-separated list of type-tagged columns into
// a record: i:<int>, f:<float>, t:<text>, x:<hex blob>, n for null.
func parseRecord(spec string) (storage.Record, error) {
	if spec == "" {
		return storage.Record{}, nil
	}
	parts := strings.Split(spec, ",")
	rec := make(storage.Record, 0, len(parts))
	for _, p := range parts {
		v, err := parseValue(p)
		if err != nil {
			return nil, err
		}
		rec = append(rec, v)
	}
	return rec, nil
}

func parseValue(tok string) (storage.Value, error) {
	if tok == "n" {
		return storage.Null(), nil
	}
	idx := strings.IndexByte(tok, ':')
	if idx < 0 {
		return storage.Value{}, fmt.Errorf("malformed column %q, want tag:value", tok)
	}
	tag, body := tok[:idx], tok[idx+1:]
	switch tag {
	case "i":
		n, err := strconv.ParseInt(body, 10, 64)
		if err != nil {
			return storage.Value{}, fmt.Errorf("column %q: %w", tok, err)
		}
		return storage.Int64(n), nil
	case "f":
		f, err := strconv.ParseFloat(body, 64)
		if err != nil {
			return storage.Value{}, fmt.Errorf("column %q: %w", tok, err)
		}
		return storage.Float64(f), nil
	case "t":
		return storage.TextValue(body), nil
	case "x":
		b, err := hex.DecodeString(body)
		if err != nil {
			return storage.Value{}, fmt.Errorf("column %q: %w", tok, err)
		}
		return storage.BlobValue(b), nil
	default:
		return storage.Value{}, fmt.Errorf("column %q: unknown tag %q", tok, tag)
	}
}

// formatRecord renders a record back to the same tagged-column syntax
// parseRecord accepts, for dump/scan output.
func formatRecord(rec storage.Record) string {
	parts := make([]string, len(rec))
	for i, v := range rec {
		parts[i] = formatValue(v)
	}
	return strings.Join(parts, ",")
}

func formatValue(v storage.Value) string {
	switch v.Kind {
	case storage.KindNull:
		return "n"
	case storage.KindInt:
		return fmt.Sprintf("i:%d", v.Int)
	case storage.KindFloat:
		return fmt.Sprintf("f:%g", v.Float)
	case storage.KindText:
		return "t:" + v.Text
	default:
		return "x:" + hex.EncodeToString(v.Blob)
	}
}
