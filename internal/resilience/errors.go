package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// timeoutMessages are substrings of timeout errors that lost their type on
// the way through an SDK.
var timeoutMessages = []string{
	"i/o timeout",
	"tls handshake timeout",
	"client.timeout exceeded",
	"deadline exceeded",
}

// unreachableMessages are substrings of connection failures reported only
// as text.
var unreachableMessages = []string{
	"connection refused",
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"no route to host",
	"network is unreachable",
	"server closed idle connection",
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return containsAny(err.Error(), timeoutMessages)
}

// IsConnectivity reports whether err means the host could not be reached:
// refused or reset connections and name resolution failures.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	for _, errno := range []syscall.Errno{
		syscall.ECONNRESET,
		syscall.ECONNREFUSED,
		syscall.ECONNABORTED,
		syscall.EHOSTUNREACH,
		syscall.ENETUNREACH,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return containsAny(err.Error(), unreachableMessages)
}

func containsAny(msg string, subs []string) bool {
	msg = strings.ToLower(msg)
	for _, s := range subs {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
