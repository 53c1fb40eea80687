// Package discovery finds WBEM endpoints on a network by scanning for the
// CIM-XML service ports with nmap.
package discovery

import (
	"context"
	"fmt"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/sirupsen/logrus"
)

// Well-known CIM-XML ports: 5988 plain HTTP, 5989 HTTPS
const (
	PortHTTP  = 5988
	PortHTTPS = 5989
)

// defaultPorts is the port set scanned when none is configured
const defaultPorts = "5988,5989"

// Endpoint is a host/port that answered on a CIM-XML port
type Endpoint struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	TLS     bool   `json:"tls"`
	Service string `json:"service,omitempty"`
}

// String renders the endpoint as a connect URL
func (e Endpoint) String() string {
	scheme := "http"
	if e.TLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, e.Host, e.Port)
}

// Scanner scans targets (IPs, hostnames, CIDR ranges) for WBEM endpoints
type Scanner struct {
	targets          []string
	ports            string
	timeout          time.Duration
	serviceDetection bool
	log              *logrus.Logger
}

// Option is a functional option for configuring a Scanner
type Option func(*Scanner)

// WithPorts overrides the scanned port set.
// Format: "5988,5989" or a range like "5985-5990"
func WithPorts(ports string) Option {
	return func(s *Scanner) {
		s.ports = ports
	}
}

// WithTimeout sets the timeout for the entire scan
func WithTimeout(d time.Duration) Option {
	return func(s *Scanner) {
		s.timeout = d
	}
}

// WithServiceDetection enables service version detection (-sV)
func WithServiceDetection(enabled bool) Option {
	return func(s *Scanner) {
		s.serviceDetection = enabled
	}
}

// WithLogger injects a logger; defaults to the logrus standard logger
func WithLogger(log *logrus.Logger) Option {
	return func(s *Scanner) {
		s.log = log
	}
}

// NewScanner creates a Scanner for the given targets
func NewScanner(targets []string, opts ...Option) *Scanner {
	s := &Scanner{
		targets: targets,
		ports:   defaultPorts,
		timeout: 10 * time.Minute,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Available reports whether the nmap binary can be run
func (s *Scanner) Available(ctx context.Context) bool {
	scanner, err := nmap.NewScanner(
		ctx,
		nmap.WithTargets("localhost"),
		nmap.WithListScan(),
	)
	if err != nil {
		return false
	}
	_, _, err = scanner.Run()
	return err == nil
}

// Scan runs one scan over all targets and returns the endpoints found
func (s *Scanner) Scan(ctx context.Context) ([]Endpoint, error) {
	if len(s.targets) == 0 {
		return nil, fmt.Errorf("no scan targets configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := []nmap.Option{
		nmap.WithTargets(s.targets...),
		nmap.WithPorts(s.ports),
	}
	if s.serviceDetection {
		opts = append(opts, nmap.WithServiceInfo())
	}

	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create scanner: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"targets": s.targets,
		"ports":   s.ports,
	}).Info("scanning for CIM-XML endpoints")

	result, warnings, err := scanner.Run()
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	if warnings != nil && len(*warnings) > 0 {
		s.log.Warnf("scan warnings: %v", *warnings)
	}

	endpoints := endpointsFromRun(result)
	s.log.WithField("count", len(endpoints)).Info("scan complete")
	return endpoints, nil
}

// endpointsFromRun converts nmap results to endpoints, keeping open ports on
// hosts that are up
func endpointsFromRun(result *nmap.Run) []Endpoint {
	if result == nil {
		return nil
	}

	var endpoints []Endpoint
	for _, host := range result.Hosts {
		if host.Status.State != "up" || len(host.Addresses) == 0 {
			continue
		}

		addr := hostAddress(host)
		for _, port := range host.Ports {
			if port.State.State != "open" {
				continue
			}
			endpoints = append(endpoints, Endpoint{
				Host:    addr,
				Port:    int(port.ID),
				TLS:     int(port.ID) == PortHTTPS,
				Service: port.Service.Name,
			})
		}
	}
	return endpoints
}

// hostAddress prefers the IPv4 address, falling back to the first one
func hostAddress(host nmap.Host) string {
	for _, addr := range host.Addresses {
		if addr.AddrType == "ipv4" {
			return addr.Addr
		}
	}
	return host.Addresses[0].Addr
}
