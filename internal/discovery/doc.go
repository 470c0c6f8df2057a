// Package discovery advertises control servers over mDNS and finds them again.
//
// A running server registers itself as a "_webcontrol._tcp" service with TXT
// records describing its paths. The CLI's discover command browses for the
// same service type and lists every server that answers.
//
// # Discovery Process
//
//  1. Broadcasts mDNS queries on the local network
//  2. Collects service advertisements until the timeout
//  3. Returns one Server per answering instance
//
// # Usage Example
//
//	servers, err := discovery.ScanForServers(ctx, 5*time.Second)
//	if err != nil {
//	    return err
//	}
//	for _, s := range servers {
//	    fmt.Println(s.BaseURL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Servers must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
