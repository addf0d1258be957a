//go:build !linux

package core

import (
	"fmt"
	"runtime"
)

// OpenRawSocket opens the raw ICMP socket used to ping. Only Linux is supported.
func OpenRawSocket(ttl int) (Socket, error) {
	return nil, fmt.Errorf("raw ICMP sockets are not supported on %s", runtime.GOOS)
}
