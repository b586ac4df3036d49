// Package capability implements the host functions scripted code calls to
// reach the filesystem, the database, the environment, the network, crypto
// primitives, the clock, request bodies, and (tool-mode only) the compiler.
// None of them take a raw path or URL from scripted code and hand it to the
// OS unvalidated — every primitive here is the boundary, not a convenience
// wrapper around one.
package capability

import "errors"

// The capability layer never panics (§4.2.9, §7): every primitive returns
// one of this small closed set of tagged errors, wrapped with %w for
// context. The scripting bridge translates these into script exceptions.
var (
	// ErrDenied means the manifest or sandbox does not grant this call.
	ErrDenied = errors.New("capability: denied")

	// ErrInvalid means the arguments themselves are malformed.
	ErrInvalid = errors.New("capability: invalid argument")

	// ErrNotFound means the target resource does not exist.
	ErrNotFound = errors.New("capability: not found")

	// ErrIOFailure means the underlying OS/DB call failed for a reason
	// other than a capability denial (disk full, connection reset, ...).
	ErrIOFailure = errors.New("capability: io failure")

	// ErrInternal means the host itself is in an unexpected state; this
	// should never surface from correct host code and indicates a bug.
	ErrInternal = errors.New("capability: internal error")
)
