// Package netutil resolves the address an instance listens on and the one
// it advertises to its peers.
package netutil

import (
	"fmt"
	"net"
	"strconv"
)

// Listen binds a TCP port on all interfaces and reports the port actually
// bound, which differs from the request only for "0".
func Listen(port string) (net.Listener, int, error) {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, 0, fmt.Errorf("listen on port %s: %w", port, err)
	}
	return lis, lis.Addr().(*net.TCPAddr).Port, nil
}

// OutboundIP is the local address used to reach the outside. No packet is
// sent; dialing UDP only selects a route. Falls back to loopback.
func OutboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

// AdvertiseAddr returns configured when set, otherwise OutboundIP:port.
func AdvertiseAddr(configured string, port int) string {
	if configured != "" {
		return configured
	}
	return net.JoinHostPort(OutboundIP(), strconv.Itoa(port))
}
