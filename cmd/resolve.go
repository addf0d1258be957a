package cmd

import (
	"fmt"
	"net"
	"strings"
)

var (
	resolveIPAddr = net.ResolveIPAddr
	lookupAddr    = net.LookupAddr
)

// resolve finds the IPv4 address of dest and the name it is displayed with. The reverse
// lookup is best effort, the address itself is used when it fails.
func resolve(dest string) (*net.IPAddr, string, error) {
	addr, err := resolveIPAddr("ip4", dest)
	if err != nil {
		return nil, "", fmt.Errorf("resolve %s: %w", dest, err)
	}

	names, err := lookupAddr(addr.IP.String())
	if err != nil || len(names) == 0 {
		return addr, addr.IP.String(), nil
	}

	return addr, strings.TrimSuffix(names[0], "."), nil
}
