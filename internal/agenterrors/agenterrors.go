// Package agenterrors collects the sentinel errors that call sites across
// the agent branch on. Everything else is wrapped with fmt.Errorf("...: %w")
// at the layer that first observes it.
package agenterrors

import "errors"

var (
	// ErrUnknownProvider is returned by storage.New for an unrecognized
	// DatabaseStorage.Provider value.
	ErrUnknownProvider = errors.New("unknown storage provider")

	// ErrUnknownDBType is returned by dbdriver.New for an unrecognized
	// DatabaseConfig.Type value.
	ErrUnknownDBType = errors.New("unknown database type")

	// ErrUploadOffsetMismatch is returned by the tus client when the
	// server-reported offset disagrees with the client's local state.
	ErrUploadOffsetMismatch = errors.New("tus upload offset mismatch")

	// ErrEdgeKeyMissing is returned when EDGE_KEY is unset or empty.
	ErrEdgeKeyMissing = errors.New("EDGE_KEY is not set")

	// ErrRetriesExhausted is returned by a storage provider once its retry
	// budget is spent without a successful response.
	ErrRetriesExhausted = errors.New("retry budget exhausted")
)
