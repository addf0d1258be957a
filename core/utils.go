package core

import (
	"net"
	"time"
)

func isIPv4(ip net.IP) bool {
	return ip.To4() != nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
