package connection

import "time"

// Options realizes the Options table of spec §6: ReferenceTypes,
// Timeout, InitialID.
type Options struct {
	// ReferenceTypes lists representative zero/sample values whose
	// reflect.Type should be auto-bound as implicit proxies during
	// encoding (spec §6 "List of value kinds to auto-bind as implicit
	// proxies during encoding"). Each sample's type, not its value, is
	// what gets registered; tags are handed out in slice order starting
	// at wire.TagReferenceBase, so the order configured here is itself
	// part of the wire ABI between two peers that must agree on it.
	ReferenceTypes []interface{}

	// Timeout is the default per-read timeout applied to every
	// Transaction's inbox read (spec §4.4, §6). Zero disables the
	// timeout.
	Timeout time.Duration

	// InitialID seeds TransactionId allocation: 1 for a
	// client-originated Connection, 2 for a server-originated one
	// (spec §3, §6).
	InitialID int64
}

func (o Options) initialID() int64 {
	if o.InitialID == 0 {
		return 1
	}
	return o.InitialID
}
