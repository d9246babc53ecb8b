/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package discovery provides mDNS/DNS-SD advertisement of raedu servers.

OVERVIEW:
=========
Classroom labs rarely have DNS for the instructor's laptop. A server
started with advertising enabled publishes itself on the local network
so that students can find it with `raedu discover`.

SERVICE TYPE:
=============
raedu advertises itself as: _raedu._tcp.local.

Each server publishes:
- Instance name: <instance>._raedu._tcp.local.
- Port: HTTP API port
- TXT records: instance, http_addr, version

USAGE:
======

	adv := discovery.NewAdvertiser(discovery.Config{Instance: "lab-1", HTTPAddr: ":8080", Version: "1.0.0"})
	if err := adv.Start(); err != nil { ... }
	defer adv.Stop()

	servers, err := discovery.Discover(ctx, 3*time.Second)
*/
package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"

	"raedu/internal/logging"
)

const (
	// ServiceType is the mDNS service type for raedu.
	ServiceType = "_raedu._tcp"

	// DefaultTimeout is the default discovery timeout.
	DefaultTimeout = 3 * time.Second
)

var log = logging.NewLogger("discovery")

// Server is a raedu server found on the network.
type Server struct {
	Instance     string    `json:"instance"`
	Addr         string    `json:"addr"` // host:port as seen on the network
	HTTPAddr     string    `json:"http_addr"`
	Version      string    `json:"version"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// URL returns the base URL of the server's HTTP API.
func (s *Server) URL() string {
	return "http://" + s.Addr
}

// Config holds what an Advertiser publishes.
type Config struct {
	Instance string
	HTTPAddr string // listen address of the HTTP API, e.g. ":8080"
	Version  string
}

// Advertiser publishes this server over mDNS.
type Advertiser struct {
	config  Config
	mu      sync.Mutex
	server  *mdns.Server
	running bool
}

// NewAdvertiser creates an advertiser for config.
func NewAdvertiser(config Config) *Advertiser {
	return &Advertiser{config: config}
}

// Start begins answering mDNS queries for this server.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return nil
	}

	ips, port, err := advertiseTarget(a.config.HTTPAddr)
	if err != nil {
		return err
	}
	instance := a.config.Instance
	if instance == "" {
		instance = "raedu"
	}

	service, err := mdns.NewMDNSService(
		instance,    // Instance name
		ServiceType, // Service type
		"",          // Domain (empty = .local)
		"",          // Host name (empty = auto)
		port,        // Port
		ips,         // IPs to advertise
		txtRecords(a.config),
	)
	if err != nil {
		return fmt.Errorf("failed to create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mDNS server: %w", err)
	}
	a.server = server
	a.running = true

	log.Info("Advertising over mDNS", "instance", instance, "port", port, "service_type", ServiceType)
	return nil
}

// Stop withdraws the advertisement.
func (a *Advertiser) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}
	if a.server != nil {
		if err := a.server.Shutdown(); err != nil {
			log.Warn("mDNS shutdown failed", "error", err)
		}
		a.server = nil
	}
	a.running = false
	log.Info("mDNS advertisement stopped")
	return nil
}

// IsRunning reports whether the advertisement is active.
func (a *Advertiser) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Discover lists raedu servers answering within timeout. It returns
// early with ctx's error if ctx is cancelled first.
func Discover(ctx context.Context, timeout time.Duration) ([]*Server, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	entriesCh := make(chan *mdns.ServiceEntry, 16)
	collected := make(chan []*Server, 1)
	go func() {
		seen := make(map[string]*Server)
		for entry := range entriesCh {
			if s := parseServiceEntry(entry); s != nil {
				seen[s.Instance+"@"+s.Addr] = s
			}
		}
		servers := make([]*Server, 0, len(seen))
		for _, s := range seen {
			servers = append(servers, s)
		}
		sort.Slice(servers, func(i, j int) bool {
			if servers[i].Instance != servers[j].Instance {
				return servers[i].Instance < servers[j].Instance
			}
			return servers[i].Addr < servers[j].Addr
		})
		collected <- servers
	}()

	queryErr := make(chan error, 1)
	go func() {
		params := &mdns.QueryParam{
			Service:             ServiceType,
			Domain:              "local",
			Timeout:             timeout,
			Entries:             entriesCh,
			WantUnicastResponse: true,
		}
		err := mdns.Query(params)
		close(entriesCh)
		queryErr <- err
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-queryErr:
		servers := <-collected
		if err != nil {
			return nil, fmt.Errorf("mDNS query failed: %w", err)
		}
		return servers, nil
	}
}

// txtRecords builds the TXT records published for config.
func txtRecords(config Config) []string {
	return []string{
		"instance=" + config.Instance,
		"http_addr=" + config.HTTPAddr,
		"version=" + config.Version,
	}
}

// advertiseTarget splits a listen address into the IPs and port to
// publish. An empty or unspecified host publishes every non-loopback
// IPv4 address.
func advertiseTarget(listenAddr string) ([]net.IP, int, error) {
	host, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid HTTP address %q: %w", listenAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return nil, 0, fmt.Errorf("invalid HTTP port %q", portStr)
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		return localIPs(), port, nil
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, 0, fmt.Errorf("advertised host must be an IP address, got %q", host)
	}
	return []net.IP{ip}, port, nil
}

// parseServiceEntry converts an mDNS entry into a Server.
func parseServiceEntry(entry *mdns.ServiceEntry) *Server {
	if entry == nil {
		return nil
	}

	var ip string
	if entry.AddrV4 != nil {
		ip = entry.AddrV4.String()
	} else if entry.AddrV6 != nil {
		ip = entry.AddrV6.String()
	}
	if ip == "" {
		return nil
	}

	s := &Server{
		Addr:         net.JoinHostPort(ip, strconv.Itoa(entry.Port)),
		DiscoveredAt: time.Now(),
	}
	for _, txt := range entry.InfoFields {
		key, value, ok := strings.Cut(txt, "=")
		if !ok {
			continue
		}
		switch key {
		case "instance":
			s.Instance = value
		case "http_addr":
			s.HTTPAddr = value
		case "version":
			s.Version = value
		}
	}

	// Fall back to the first label of the instance name.
	if s.Instance == "" {
		s.Instance, _, _ = strings.Cut(entry.Name, ".")
	}
	return s
}

// localIPs returns all non-loopback IPv4 addresses.
func localIPs() []net.IP {
	var ips []net.IP

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ips
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok {
			if ipnet.IP.IsLoopback() {
				continue
			}
			if ipnet.IP.To4() != nil {
				ips = append(ips, ipnet.IP)
			}
		}
	}
	return ips
}
