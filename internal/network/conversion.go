package network

import (
	"fmt"
	"net"
	"strconv"
)

// Splits a "host:port" argument and validates the port range
func ParseHostPort(endpoint string) (host string, port int, err error) {
	host, portText, err := net.SplitHostPort(endpoint)
	if err != nil {
		err = fmt.Errorf("invalid endpoint %q: %v", endpoint, err)
		return
	}
	if host == "" {
		err = fmt.Errorf("invalid endpoint %q: empty host", endpoint)
		return
	}

	port, err = strconv.Atoi(portText)
	if err != nil {
		err = fmt.Errorf("invalid port in %q: %v", endpoint, err)
		return
	}
	if port < 1 || port > 65535 {
		err = fmt.Errorf("port %d out of range 1-65535", port)
		return
	}
	return
}
