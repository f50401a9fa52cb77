package topology

import "errors"

// ErrNotPowerOfTwo is a precondition violation: party count N must be a
// power of two (spec §3, §4.2). It is a programmer error and, per the
// error handling policy (spec §7), is surfaced as a panic by Dial rather
// than returned.
var ErrNotPowerOfTwo = errors.New("topology: participant count is not a power of two")

// ErrDuplicateLink indicates a second inbound connection arrived for a
// dimension that was already populated — a misconfigured peer set
// (spec §4.2 "Edge cases"). Fatal.
var ErrDuplicateLink = errors.New("topology: duplicate link for dimension")

// ErrPeerIDMismatch indicates the handshake preamble did not XOR to a
// power of two with our own id (spec §7 "Peer-id mismatch"). Fatal.
var ErrPeerIDMismatch = errors.New("topology: peer id does not differ from ours by a single bit")

// ErrRetriesExhausted is returned when a connect loop exceeds its retry
// cap (spec §4.2 step 3, §7 "Transient connect failure").
var ErrRetriesExhausted = errors.New("topology: exceeded connect retry attempts")
