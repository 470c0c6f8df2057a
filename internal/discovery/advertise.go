package discovery

import (
	"fmt"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/muurk/webcontrol/internal/logging"
	"github.com/muurk/webcontrol/internal/version"
	"go.uber.org/zap"
)

// registration is a live mDNS registration.
type registration interface {
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (registration, error)

func zeroconfRegister(instance, service, domain string, port int, text []string, ifaces []net.Interface) (registration, error) {
	server, err := zeroconf.Register(instance, service, domain, port, text, ifaces)
	if err != nil {
		return nil, err
	}
	return server, nil
}

// Advertiser publishes the control server over mDNS while it is running.
type Advertiser struct {
	instance string
	register registerFunc

	mu      sync.Mutex
	current registration
}

// NewAdvertiser creates an advertiser for the given instance name.
func NewAdvertiser(instance string) *Advertiser {
	return &Advertiser{instance: instance, register: zeroconfRegister}
}

// TXTRecords returns the records published alongside the service.
func TXTRecords() []string {
	return []string{
		"path=/",
		"ws=" + DefaultWebSocketPath,
		"auth=basic",
		"version=" + version.Version,
	}
}

// Advertise registers the service on port, replacing any earlier
// registration.
func (a *Advertiser) Advertise(port int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != nil {
		a.current.Shutdown()
		a.current = nil
	}

	reg, err := a.register(a.instance, ServiceType, ServiceDomain, port, TXTRecords(), nil)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}
	a.current = reg

	logging.Info("Advertising control server over mDNS",
		zap.String("instance", a.instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)
	return nil
}

// Stop withdraws the registration. It is safe to call more than once.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil {
		return
	}
	a.current.Shutdown()
	a.current = nil
	logging.Info("Stopped mDNS advertisement", zap.String("instance", a.instance))
}
