// Package safehttp builds HTTP transports for outbound calls to hosted models.
package safehttp

import (
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

// ErrPrivateAddress is returned when a dial targets a non-public address.
type ErrPrivateAddress struct {
	IP net.IP
}

func (e *ErrPrivateAddress) Error() string {
	return fmt.Sprintf("access to private IP %s is denied", e.IP)
}

// NewTransport returns a transport that refuses loopback, private and
// link-local destinations. The check runs on the resolved address before the
// socket connects, so DNS answers cannot redirect calls inward.
func NewTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   denyPrivate,
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = dialer.DialContext
	return t
}

// NewClient wraps NewTransport in a client with no overall timeout; callers
// bound each call with a context.
func NewClient() *http.Client {
	return &http.Client{Transport: NewTransport()}
}

func denyPrivate(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("failed to parse dial address %q: %w", address, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("failed to parse remote IP for %q", address)
	}
	if Blocked(ip) {
		return &ErrPrivateAddress{IP: ip}
	}
	return nil
}

// Blocked reports whether ip is outside the public unicast range.
func Blocked(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}
