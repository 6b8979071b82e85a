package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// describeFailure turns a network-level error into a one-line message with a
// hint about the most likely cause.
func describeFailure(addr string, err error) string {
	var reason string
	switch {
	case isTimeout(err):
		reason = "timed out waiting for the agent"
	case isConnectionRefused(err):
		reason = "connection refused (is the agent running?)"
	case isDNS(err):
		reason = "cannot resolve host"
	default:
		reason = err.Error()
	}
	return fmt.Sprintf("failed to reach agent at %s: %s", addr, reason)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}

func isConnectionRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

func isDNS(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
