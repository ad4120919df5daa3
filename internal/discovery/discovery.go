// Package discovery advertises the web UI over mDNS/DNS-SD so phones on
// the LAN can find the controller as "Gas Log Controller._http._tcp".
package discovery

import (
	"fmt"
	"log"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

const (
	ServiceType = "_http._tcp"
	Domain      = "local."
)

// Options configures the advertisement.
type Options struct {
	Instance  string
	Port      int
	Interface string // empty means all interfaces
	TTL       time.Duration
	TXT       map[string]string
}

// Advertiser owns the registered zeroconf server.
type Advertiser struct {
	mu     sync.Mutex
	server *zeroconf.Server
}

// Advertise registers the service and returns once it is announced.
func Advertise(o Options) (*Advertiser, error) {
	if o.Instance == "" {
		return nil, fmt.Errorf("advertise: empty instance name")
	}
	if o.Port <= 0 || o.Port > 65535 {
		return nil, fmt.Errorf("advertise: invalid port %d", o.Port)
	}

	var opts []zeroconf.ServerOption
	if o.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(o.TTL.Seconds())))
	}

	server, err := zeroconf.Register(o.Instance, ServiceType, Domain, o.Port, TXTRecords(o.TXT), interfaces(o.Interface), opts...)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", ServiceType, err)
	}
	log.Printf("discovery: advertising %q %s port %d", o.Instance, ServiceType, o.Port)
	return &Advertiser{server: server}, nil
}

// Shutdown withdraws the advertisement. Safe to call more than once.
func (a *Advertiser) Shutdown() {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
		log.Printf("discovery: stopped")
	}
}

func interfaces(name string) []net.Interface {
	if name == "" {
		return nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		log.Printf("discovery: interface %s: %v, using all", name, err)
		return nil
	}
	return []net.Interface{*iface}
}

// TXTRecords renders key=value strings in key order.
func TXTRecords(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+m[k])
	}
	return out
}

// PortFromAddr extracts the TCP port from a listen address such as ":80"
// or "0.0.0.0:8080".
func PortFromAddr(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("parse listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("parse listen address %q: invalid port", addr)
	}
	return port, nil
}
