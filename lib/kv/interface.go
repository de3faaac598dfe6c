package kv

import "fmt"

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// PutOptions controls the lifecycle of a written entry.
// A zero value means the entry never expires.
// If both fields are set, ExpireAt wins.
type PutOptions struct {
	// TTLSeconds expires the entry this many seconds after the write.
	TTLSeconds uint64
	// ExpireAt expires the entry at an absolute point in time (unix epoch seconds).
	ExpireAt int64
}

// KeyInfo describes a single key returned by a List page.
type KeyInfo struct {
	Name string `json:"name"`
}

// Page is one batch of keys from a prefix listing.
// An empty Cursor means the listing is exhausted; callers must loop until then
// to see all matching keys.
type Page struct {
	Keys   []KeyInfo `json:"keys"`
	Cursor string    `json:"cursor,omitempty"`
}

// IStore is the generic interface for the key-value service the census core
// consumes. All values are opaque byte strings.
//
// Consistency: implementations are allowed to be eventually consistent. A
// successful Put may not be visible to an immediately following Get or List,
// even from the same caller. Every operation on a single key is atomic; there
// are no multi-key transactions.
type IStore interface {
	// Get returns the value for a key. The boolean return value indicates
	// whether a (non-expired) value for the key was found.
	Get(key string) (value []byte, loaded bool, err error)
	// Put inserts or updates a key-value pair with the given lifecycle options.
	Put(key string, value []byte, opts PutOptions) (err error)
	// List returns one page of keys matching the prefix, starting after the
	// given cursor. An empty cursor starts from the beginning.
	List(prefix, cursor string) (page Page, err error)
	// Delete removes a key-value pair. Deleting an absent key is not an error.
	Delete(key string) (err error)
	// Close releases any resources held by the store.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	errorCode := ""
	switch e.Code {
	case RetCInternalError:
		errorCode = "InternalError"
	case RetCUnavailable:
		errorCode = "Unavailable"
	case RetCInvalidOperation:
		errorCode = "InvalidOperation"
	default:
		errorCode = "Unknown"
	}

	return fmt.Sprintf("KVStoreError (code %s): %s", errorCode, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess          RetCode = iota // 0: Command executed successfully.
	RetCInternalError                   // 1: Command failed due to an internal error.
	RetCUnavailable                     // 2: The store could not be reached (transient).
	RetCInvalidOperation                // 3: Invalid operation.
)
