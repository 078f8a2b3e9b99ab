package discovery

import "net"

func isLinkLocal(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		return ip4[0] == 169 && ip4[1] == 254
	}
	return false
}

func isLoopback(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		return ip4[0] == 127
	}
	return false
}

func isPrivateNetwork(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		// 10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16
		return ip4[0] == 10 ||
			(ip4[0] == 172 && ip4[1] >= 16 && ip4[1] <= 31) ||
			(ip4[0] == 192 && ip4[1] == 168)
	}
	return false
}

// SelectBestIP picks the address a peer should use to reach this
// device: private-range IPv4 first, then any routable IPv4, never
// loopback or link-local.
func SelectBestIP(addrs []net.Addr) net.IP {
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				if !isLinkLocal(ip4) && !isLoopback(ip4) && isPrivateNetwork(ip4) {
					return ip4
				}
			}
		}
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				if !isLinkLocal(ip4) && !isLoopback(ip4) {
					return ip4
				}
			}
		}
	}
	return nil
}

// LocalIP returns the best local IPv4 as a string, or "unknown" when
// no suitable interface address exists. The announce record still goes
// out either way; the relay can fill the address it observed.
func LocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "unknown"
	}
	if ip := SelectBestIP(addrs); ip != nil {
		return ip.String()
	}
	return "unknown"
}
