package nfs

import (
	"errors"
	"fmt"
	"io"
	"net"
)

// ErrNoFreePorts is returned when FreePorts gives up.
var ErrNoFreePorts = errors.New("nfs: no free ports")

// FreePorts returns n distinct ports that were free for both UDP and TCP
// on all interfaces at the time of the call.
func FreePorts(n int) ([]int, error) {
	var (
		ports   []int
		holders []io.Closer
	)
	defer func() {
		for _, h := range holders {
			h.Close()
		}
	}()

	for attempt := 0; len(ports) < n; attempt++ {
		if attempt >= 50*n {
			return nil, fmt.Errorf("%w: found %d of %d", ErrNoFreePorts, len(ports), n)
		}

		udp, err := net.ListenPacket("udp", ":0")
		if err != nil {
			return nil, fmt.Errorf("probe udp port: %w", err)
		}
		port := udp.LocalAddr().(*net.UDPAddr).Port

		tcp, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			udp.Close()
			continue
		}
		holders = append(holders, udp, tcp)
		ports = append(ports, port)
	}
	return ports, nil
}
