//go:build linux

package netutil

import (
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// PeerCredentials reads SO_PEERCRED off the underlying fd of a Unix
// domain socket connection. It returns an error if conn isn't backed by
// a raw syscall connection (e.g. net.Pipe in tests) or the socket
// doesn't support SO_PEERCRED.
func PeerCredentials(conn net.Conn) (*Ucred, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil, fmt.Errorf("netutil: connection does not expose a raw fd")
	}

	raw, err := sc.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("netutil: SyscallConn: %w", err)
	}

	var cred *unix.Ucred
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		cred, sockErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return nil, fmt.Errorf("netutil: raw control: %w", err)
	}
	if sockErr != nil {
		return nil, fmt.Errorf("netutil: getsockopt SO_PEERCRED: %w", sockErr)
	}

	return &Ucred{PID: cred.Pid, UID: cred.Uid, GID: cred.Gid}, nil
}
