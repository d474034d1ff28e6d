// SPDX-License-Identifier: MIT

package hdhr

import (
	"fmt"
	"net"
)

// Interface is a local IPv4 address that can carry a discovery broadcast.
type Interface struct {
	Name      string
	IP        net.IP
	Broadcast net.IP
}

// BroadcastInterfaces lists every up, broadcast-capable, non-loopback IPv4
// address on the host together with its directed broadcast address.
func BroadcastInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}

	var out []Interface
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagBroadcast == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if iface, ok := broadcastFor(ifi.Name, ipnet); ok {
				out = append(out, iface)
			}
		}
	}
	return out, nil
}

func broadcastFor(name string, ipnet *net.IPNet) (Interface, bool) {
	ip4 := ipnet.IP.To4()
	if ip4 == nil || ip4.IsLoopback() {
		return Interface{}, false
	}
	mask := ipnet.Mask
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	if len(mask) != net.IPv4len {
		return Interface{}, false
	}
	bcast := make(net.IP, net.IPv4len)
	for i := range ip4 {
		bcast[i] = ip4[i] | ^mask[i]
	}
	return Interface{Name: name, IP: ip4, Broadcast: bcast}, true
}
