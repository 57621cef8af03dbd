package store

// errors.go declares the well-known error taxonomy produced by the keyspace
// engine. Every error carries a Kind so callers (pkg/dispatch) can switch on
// the category instead of matching strings, and a Payload holding the exact
// RESP simple-error line the protocol layer must emit.
//
// © 2025 rescache authors. MIT License.

// Kind classifies an Error into one of the categories spec.md §7 requires.
type Kind uint8

const (
	// KindWrongType: operation against a value whose variant does not
	// support it.
	KindWrongType Kind = iota + 1
	// KindOutOfMemory: a shard could not admit a new record even after an
	// expiry sweep, with LRU eviction disabled.
	KindOutOfMemory
	// KindAlreadyExists: CREATEDB on an existing name.
	KindAlreadyExists
	// KindInvalidDbName: database name is not valid UTF-8.
	KindInvalidDbName
	// KindInvalidInput: a startup-time configuration value (e.g. hash
	// selector name vs. shard count) is invalid.
	KindInvalidInput
)

// Error is the concrete error type returned by every pkg/store operation
// that can fail. It is never a sentinel: callers compare Kind, not identity.
type Error struct {
	Kind    Kind
	Payload string // literal RESP simple-error line, including "-" and "\r\n"
	msg     string
}

func (e *Error) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return e.Payload
}

func newError(kind Kind, payload, msg string) *Error {
	return &Error{Kind: kind, Payload: payload, msg: msg}
}

// ErrWrongType is returned when an operation targets a key holding a value
// of a different kind (e.g. HGET against a string).
func ErrWrongType() *Error {
	return newError(KindWrongType,
		"-Operation against a key holding the wrong kind of value\r\n",
		"operation against a key holding the wrong kind of value")
}

// ErrOutOfMemory is returned when a shard cannot admit a new record.
func ErrOutOfMemory() *Error {
	return newError(KindOutOfMemory, "-out of memory\r\n", "out of memory")
}

// ErrAlreadyExists is returned by CREATEDB against an existing name.
func ErrAlreadyExists() *Error {
	return newError(KindAlreadyExists, "-database already exists\r\n", "database already exists")
}

// ErrInvalidDbName is returned when a database name is not valid UTF-8.
func ErrInvalidDbName() *Error {
	return newError(KindInvalidDbName, "-invalid database name\r\n", "invalid database name")
}

// ErrInvalidInput wraps a configuration-time validation failure (e.g. an
// incompatible hash-selector/shard-count pairing) with a caller-supplied
// detail message. It has no RESP payload of its own since it never reaches
// the wire — it fails store construction, not a command.
func ErrInvalidInput(msg string) *Error {
	return newError(KindInvalidInput, "", msg)
}
