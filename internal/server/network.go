package server

import (
	"fmt"
	"net"
)

// localIPv4 returns the first non-loopback IPv4 address of an up interface.
func localIPv4() (net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipNet.IP.To4(); ip4 != nil && !ip4.IsLoopback() {
				return ip4, nil
			}
		}
	}
	return nil, fmt.Errorf("no non-loopback IPv4 address found")
}

// serverURL builds the URL a browser on the LAN uses to reach the server.
// A configured host other than a wildcard wins over interface discovery.
func serverURL(host string, port int) string {
	switch host {
	case "", "0.0.0.0", "::":
		if ip, err := localIPv4(); err == nil {
			host = ip.String()
		} else {
			host = "localhost"
		}
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, fmt.Sprint(port)))
}

// remoteIP strips the port from a remote address.
func remoteIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
