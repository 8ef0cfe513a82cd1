// Package netutil provides transport-adjacent diagnostics for bus
// endpoints: peer credential lookup on accepted stream connections
// (SPEC_FULL.md §6), split by build tag the way the teacher splits
// platform-conditional code.
package netutil

import "net"

// Ucred is the peer's credentials as reported by the kernel at connect
// time (SO_PEERCRED on Linux): uid/gid/pid of the process holding the
// other end of a domain socket.
type Ucred struct {
	PID int32
	UID uint32
	GID uint32
}
