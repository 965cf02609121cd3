// Package fingerprint derives a stable machine identifier used to bind a
// license activation to one machine. The identifier is a SHA-256 digest over
// hostname, primary MAC address, and platform, so it survives restarts but
// changes when the license moves to different hardware.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Provider computes and caches the machine identifier. Hardware probing is
// cheap but not free, and the id cannot change while the process runs, so a
// long cache TTL is safe.
type Provider struct {
	mu      sync.RWMutex
	cached  string
	expires time.Time
	ttl     time.Duration
}

// New creates a Provider with a one-hour cache.
func New() *Provider {
	return &Provider{ttl: time.Hour}
}

// MachineID returns the stable machine identifier as a 32-character hex
// string. Components that cannot be determined fall back to fixed markers
// rather than failing, so the id is always computable.
func (p *Provider) MachineID() (string, error) {
	p.mu.RLock()
	if p.cached != "" && time.Now().Before(p.expires) {
		id := p.cached
		p.mu.RUnlock()
		return id, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached != "" && time.Now().Before(p.expires) {
		return p.cached, nil
	}

	host := hostname()
	mac := primaryMAC()
	material := fmt.Sprintf("%s|%s|%s|%s", host, mac, runtime.GOOS, runtime.GOARCH)

	sum := sha256.Sum256([]byte(material))
	p.cached = hex.EncodeToString(sum[:16])
	p.expires = time.Now().Add(p.ttl)
	return p.cached, nil
}

func hostname() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown-host"
	}
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return "unknown-host"
	}
	return host
}

// primaryMAC returns the MAC address of the first up, non-loopback interface,
// falling back to any interface with a hardware address.
func primaryMAC() string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "no-mac"
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if mac := iface.HardwareAddr.String(); validMAC(mac) {
			return mac
		}
	}
	for _, iface := range interfaces {
		if mac := iface.HardwareAddr.String(); validMAC(mac) {
			return mac
		}
	}
	return "no-mac"
}

func validMAC(mac string) bool {
	return mac != "" && mac != "00:00:00:00:00:00"
}
