package platform

import "net"

// OutboundIP returns the address this host uses for outbound traffic, the
// one game clients on other machines can reach. Dialing UDP sends no
// packets; it only resolves the route.
func OutboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}
