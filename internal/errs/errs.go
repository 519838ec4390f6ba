// Package errs collects the sentinel error values surfaced by the storage
// core. Callers compare against these with errors.Is; the core itself never
// panics on an expected failure mode.
package errs

import "errors"

var (
	// ErrInvalidPageSize is returned by create when page_size is not a
	// power of two in [512, 65536].
	ErrInvalidPageSize = errors.New("sqlitecore: invalid page size")

	// ErrCorruptFile is returned when the file header fails to parse or
	// an allocated page reads short.
	ErrCorruptFile = errors.New("sqlitecore: corrupt file")

	// ErrCorruptPage is returned when a page is malformed: an invalid
	// page type, cell offsets out of bounds or duplicated, or a cell that
	// fails to decode.
	ErrCorruptPage = errors.New("sqlitecore: corrupt page")

	// ErrCorruptChain is returned when an overflow chain exceeds
	// page_count hops without reaching a terminal page (cycle).
	ErrCorruptChain = errors.New("sqlitecore: corrupt overflow chain")

	// ErrWrongPageType is returned when a page decodes to a type other
	// than the one the caller required.
	ErrWrongPageType = errors.New("sqlitecore: wrong page type")

	// ErrWrongTreeType is returned when a table operation is attempted
	// on an index handle, or vice versa.
	ErrWrongTreeType = errors.New("sqlitecore: wrong tree type")

	// ErrMalformedVarint is returned when a varint is truncated or
	// exceeds the 9-byte maximum encoding.
	ErrMalformedVarint = errors.New("sqlitecore: malformed varint")

	// ErrTruncatedRecord is returned when a record's declared field
	// lengths exceed the bytes available.
	ErrTruncatedRecord = errors.New("sqlitecore: truncated record")
)
