package storage

// Kind discriminates the five value kinds records and index keys share.
type Kind byte

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindText
	KindBlob
)

// Value is the tagged union used both for record columns and for index
// B-Tree keys (the abstract KeyValue of the data model).
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Text  string
	Blob  []byte
}

// Null returns the null value.
func Null() Value { return Value{Kind: KindNull} }

// Int64 wraps a signed integer value.
func Int64(v int64) Value { return Value{Kind: KindInt, Int: v} }

// Float64 wraps a floating point value.
func Float64(v float64) Value { return Value{Kind: KindFloat, Float: v} }

// TextValue wraps a UTF-8 text value.
func TextValue(v string) Value { return Value{Kind: KindText, Text: v} }

// BlobValue wraps an opaque byte-string value.
func BlobValue(v []byte) Value { return Value{Kind: KindBlob, Blob: v} }

func (v Value) asFloat() float64 {
	if v.Kind == KindInt {
		return float64(v.Int)
	}
	return v.Float
}

// Compare orders two values per the KeyValue collation: Null < numeric
// (Int/Float, mixed pairs promoted to float) < Text (byte-wise) < Blob
// (byte-wise). Returns <0, 0, >0.
func Compare(a, b Value) int {
	rank := func(v Value) int {
		switch v.Kind {
		case KindNull:
			return 0
		case KindInt, KindFloat:
			return 1
		case KindText:
			return 2
		default:
			return 3
		}
	}
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 0:
		return 0
	case 1:
		if a.Kind == KindInt && b.Kind == KindInt {
			switch {
			case a.Int < b.Int:
				return -1
			case a.Int > b.Int:
				return 1
			default:
				return 0
			}
		}
		fa, fb := a.asFloat(), b.asFloat()
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	case 2:
		return compareBytes([]byte(a.Text), []byte(b.Text))
	default:
		return compareBytes(a.Blob, b.Blob)
	}
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}

// Less reports whether a sorts strictly before b.
func Less(a, b Value) bool { return Compare(a, b) < 0 }
