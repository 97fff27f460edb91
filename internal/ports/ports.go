// internal/ports/ports.go
package ports

import (
	"fmt"
	"net"
)

// Valid port range for inspection servers. Ports below 1024 need
// elevated privileges and are never handed out.
const (
	MinPort = 1024
	MaxPort = 65535
)

// FirstAvailable asks the kernel for a free TCP port on localhost.
func FirstAvailable() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to probe for a free port: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	if err := ln.Close(); err != nil {
		return 0, fmt.Errorf("failed to release probe port: %w", err)
	}
	return port, nil
}

// Validate checks that a port is usable for an inspection server.
func Validate(port int) error {
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("port %d out of range [%d, %d]", port, MinPort, MaxPort)
	}
	return nil
}

// Assign maps each job index to an inspection port. Ports cycle
// through a window of workers*buffer ports above port0, so a port is
// only reused once its previous run has had room to finish. The
// buffer keeps the window wider than the worker count to avoid
// rebinding a port the instant its run ends.
func Assign(port0, jobs, workers, buffer int) ([]int, error) {
	if jobs <= 0 {
		return nil, fmt.Errorf("jobs must be a positive integer")
	}
	if workers <= 0 {
		return nil, fmt.Errorf("workers must be a positive integer")
	}
	if buffer <= 0 {
		return nil, fmt.Errorf("buffer must be a positive integer")
	}
	if err := Validate(port0); err != nil {
		return nil, err
	}

	window := workers * buffer
	base := port0 + 1
	if base+window-1 > MaxPort {
		return nil, fmt.Errorf("port window [%d, %d] exceeds maximum port %d", base, base+window-1, MaxPort)
	}

	assigned := make([]int, jobs)
	for i := 0; i < jobs; i++ {
		assigned[i] = base + (i % window)
	}
	return assigned, nil
}
