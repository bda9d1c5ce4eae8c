package store

// FieldWrite is a write-intent value that the concrete Adapter
// implementation serializes to the underlying store's sentinel API
// (Firestore's ServerTimestamp and Increment). Keeping engine code
// against this type instead of against Firestore's own sentinel values
// is what lets internal/store/fakestore stand in for a real store in
// tests.
type FieldWrite struct {
	kind  fieldWriteKind
	value any
	delta int64
}

type fieldWriteKind int

const (
	kindLiteral fieldWriteKind = iota
	kindServerNow
	kindIncrement
	kindNull
)

// Literal writes v as-is.
func Literal(v any) FieldWrite { return FieldWrite{kind: kindLiteral, value: v} }

// ServerNow writes the store's server-timestamp sentinel.
func ServerNow() FieldWrite { return FieldWrite{kind: kindServerNow} }

// Increment writes the store's numeric-increment sentinel for delta.
func Increment(delta int64) FieldWrite { return FieldWrite{kind: kindIncrement, delta: delta} }

// Null writes an explicit null/clear.
func Null() FieldWrite { return FieldWrite{kind: kindNull} }

// IsLiteral, IsServerNow, IsIncrement, IsNull, Value, and Delta let
// Adapter implementations pattern-match without exporting the kind enum.
func (f FieldWrite) IsLiteral() bool   { return f.kind == kindLiteral }
func (f FieldWrite) IsServerNow() bool { return f.kind == kindServerNow }
func (f FieldWrite) IsIncrement() bool { return f.kind == kindIncrement }
func (f FieldWrite) IsNull() bool      { return f.kind == kindNull }
func (f FieldWrite) Value() any        { return f.value }
func (f FieldWrite) Delta() int64      { return f.delta }
