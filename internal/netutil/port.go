package netutil

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrNoBindAddr is returned when neither the preferred address nor any
// fallback can be listened on.
var ErrNoBindAddr = errors.New("no available controller bind address")

// SelectBindAddr returns preferred when it is free. Otherwise, if
// autoFallback is set, it returns the first free address in candidates.
func SelectBindAddr(preferred string, candidates []string, autoFallback bool) (string, error) {
	if preferred != "" {
		if IsAddrAvailable(preferred) {
			return preferred, nil
		}
		if !autoFallback {
			return "", fmt.Errorf("preferred bind address in use: %s", preferred)
		}
	}

	for _, addr := range candidates {
		if addr == preferred {
			continue
		}
		if IsAddrAvailable(addr) {
			return addr, nil
		}
	}

	tried := append([]string{preferred}, candidates...)
	return "", fmt.Errorf("%w (tried %s)", ErrNoBindAddr, strings.Join(tried, ", "))
}

// IsAddrAvailable reports whether addr can be listened on right now.
func IsAddrAvailable(addr string) bool {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
