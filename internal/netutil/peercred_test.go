package netutil

import (
	"net"
	"testing"
)

func TestPeerCredentialsOnNonSyscallConnReturnsError(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	if _, err := PeerCredentials(c1); err == nil {
		t.Fatal("expected an error for a non-syscall.Conn connection")
	}
}
