// Package config parses the static membership document consumed by the
// core: the four role endpoints and the acceptor count. The core itself
// never parses configuration; this package is the thin adapter that
// turns a document on disk into the struct the core consumes.
package config

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/nbro/multi-paxos/internal/transport"
)

// Config enumerates the four multicast endpoints and the acceptor
// cardinality. AcceptorCount is explicit rather than a hard-coded
// constant, so a deployment is not locked to any particular acceptor
// quorum size.
type Config struct {
	Clients       transport.Endpoint
	Proposers     transport.Endpoint
	Acceptors     transport.Endpoint
	Learners      transport.Endpoint
	AcceptorCount int
}

// Majority returns the number of acceptor replies needed for a quorum:
// floor(AcceptorCount/2) + 1.
func (c Config) Majority() int {
	return c.AcceptorCount/2 + 1
}

// Load reads a flat "key=host:port" document from path. Recognized keys
// are clients, proposers, acceptors, learners, and acceptor_count; all
// five are required and any other key is an error.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var c Config
	seen := map[string]bool{}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return Config{}, fmt.Errorf("config: %s:%d: expected key=value, got %q", path, lineNo, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "clients", "proposers", "acceptors", "learners":
			ep, err := parseEndpoint(value)
			if err != nil {
				return Config{}, fmt.Errorf("config: %s:%d: %w", path, lineNo, err)
			}
			switch key {
			case "clients":
				c.Clients = ep
			case "proposers":
				c.Proposers = ep
			case "acceptors":
				c.Acceptors = ep
			case "learners":
				c.Learners = ep
			}
		case "acceptor_count":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return Config{}, fmt.Errorf("config: %s:%d: invalid acceptor_count %q", path, lineNo, value)
			}
			c.AcceptorCount = n
		default:
			return Config{}, fmt.Errorf("config: %s:%d: unknown key %q", path, lineNo, key)
		}
		seen[key] = true
	}
	if err := scanner.Err(); err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	for _, required := range []string{"clients", "proposers", "acceptors", "learners", "acceptor_count"} {
		if !seen[required] {
			return Config{}, fmt.Errorf("config: %s: missing required key %q", path, required)
		}
	}
	return c, nil
}

func parseEndpoint(value string) (transport.Endpoint, error) {
	host, portStr, err := net.SplitHostPort(value)
	if err != nil {
		return transport.Endpoint{}, fmt.Errorf("invalid address %q: %w", value, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return transport.Endpoint{}, fmt.Errorf("invalid IP %q", host)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return transport.Endpoint{}, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return transport.Endpoint{IP: ip, Port: port}, nil
}
