//go:build !linux

package netutil

import (
	"fmt"
	"net"
)

// PeerCredentials is unsupported outside Linux; callers should treat
// its error as "no credentials available" and log once, not fail.
func PeerCredentials(conn net.Conn) (*Ucred, error) {
	return nil, fmt.Errorf("netutil: peer credentials are not supported on this platform")
}
