package discovery

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/ethan/rp-webrtc-gateway/pkg/logger"
)

// Scan broadcasts a SRCH datagram on every IPv4 address of every NIC that is
// up, broadcast-capable and not loopback (virtual NICs are not detected or
// skipped) and
// collects parsed DeviceResponse replies until ctx is cancelled or timeout
// elapses. Per-NIC send/listen errors are isolated: one bad interface never
// aborts the whole scan. Results are deduped by HostId.
func Scan(ctx context.Context, port int, timeout time.Duration, log *logger.Logger) ([]DeviceResponse, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}

	seen := make(map[string]DeviceResponse)
	results := make(chan DeviceResponse, 16)
	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	active := 0
	for _, iface := range ifaces {
		if !isUsableNIC(iface) {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			log.DebugDiscovery("skipping interface", "name", iface.Name, "error", err)
			continue
		}
		for _, addr := range addrs {
			ip := ipv4Of(addr)
			if ip == nil {
				continue
			}
			active++
			go scanOneNIC(scanCtx, ip, port, log, results)
		}
	}

	if active == 0 {
		return nil, fmt.Errorf("no usable IPv4 interfaces found")
	}

	for {
		select {
		case <-scanCtx.Done():
			out := make([]DeviceResponse, 0, len(seen))
			for _, r := range seen {
				out = append(out, r)
			}
			return out, nil
		case resp := <-results:
			seen[resp.HostId] = resp
		}
	}
}

func scanOneNIC(ctx context.Context, localIP net.IP, port int, log *logger.Logger, results chan<- DeviceResponse) {
	broadcastAddr := &net.UDPAddr{IP: net.IPv4bcast, Port: port}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: localIP, Port: 0})
	if err != nil {
		log.DebugDiscovery("failed to bind NIC for scan", "nic_ip", localIP.String(), "error", err)
		return
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if _, err := conn.WriteToUDP(SearchRequest(), broadcastAddr); err != nil {
		log.DebugDiscovery("failed to broadcast SRCH", "nic_ip", localIP.String(), "error", err)
		return
	}

	buf := make([]byte, 2048)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		resp, err := ParseDeviceResponse(buf[:n])
		if err != nil {
			log.DebugDiscovery("discarding malformed discovery response", "error", err)
			continue
		}
		select {
		case results <- resp:
		case <-ctx.Done():
			return
		}
	}
}

func isUsableNIC(iface net.Interface) bool {
	if iface.Flags&net.FlagUp == 0 {
		return false
	}
	if iface.Flags&net.FlagLoopback != 0 {
		return false
	}
	if iface.Flags&net.FlagBroadcast == 0 {
		return false
	}
	return true
}

func ipv4Of(addr net.Addr) net.IP {
	var ip net.IP
	switch v := addr.(type) {
	case *net.IPNet:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	}
	if ip == nil {
		return nil
	}
	return ip.To4()
}

// Wakeup sends a WAKEUP datagram to a single known host.
func Wakeup(ctx context.Context, hostIP net.IP, port int, regKeyHex string) error {
	req, err := WakeupRequest(port, regKeyHex)
	if err != nil {
		return err
	}
	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: hostIP, Port: port})
	if err != nil {
		return fmt.Errorf("dial %s:%d: %w", hostIP, port, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	}
	if _, err := conn.Write(req); err != nil {
		return fmt.Errorf("send wakeup: %w", err)
	}
	return nil
}
