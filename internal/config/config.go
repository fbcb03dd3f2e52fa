package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dynamokv/internal/cluster"
)

const (
	DefaultN             = 3
	DefaultR             = 2
	DefaultW             = 2
	DefaultTimeout       = time.Second
	DefaultResponseDelay = 0
	DefaultClientGrace   = 500 * time.Millisecond
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// NodeSpec describes a node to create at startup.
type NodeSpec struct {
	ID    cluster.NodeID `yaml:"id"`
	Delay time.Duration  `yaml:"delay,omitempty"`
}

// Config holds the cluster configuration. N, R and W are fixed for the
// lifetime of a simulation.
type Config struct {
	N int `yaml:"n"`
	R int `yaml:"r"`
	W int `yaml:"w"`

	// Timeout bounds every coordinated request.
	Timeout time.Duration `yaml:"timeout"`
	// ResponseDelay is the default delay before a replica answers a read.
	ResponseDelay time.Duration `yaml:"responseDelay,omitempty"`
	// ClientGrace is how long past Timeout a client waits before giving up
	// on a coordinator that never answers.
	ClientGrace time.Duration `yaml:"clientGrace,omitempty"`

	Nodes []NodeSpec `yaml:"nodes,omitempty"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		N:             DefaultN,
		R:             DefaultR,
		W:             DefaultW,
		Timeout:       DefaultTimeout,
		ResponseDelay: DefaultResponseDelay,
		ClientGrace:   DefaultClientGrace,
	}
}

// Validate checks the quorum parameters, the durations and the node list.
func (c Config) Validate() error {
	if c.N < 1 {
		return fmt.Errorf("%w: N must be at least 1, got %d", ErrInvalidConfig, c.N)
	}
	if c.R < 1 || c.R > c.N {
		return fmt.Errorf("%w: R must be within [1, N=%d], got %d", ErrInvalidConfig, c.N, c.R)
	}
	if c.W < 1 || c.W > c.N {
		return fmt.Errorf("%w: W must be within [1, N=%d], got %d", ErrInvalidConfig, c.N, c.W)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfig, c.Timeout)
	}
	if c.ResponseDelay < 0 || c.ClientGrace < 0 {
		return fmt.Errorf("%w: delays cannot be negative", ErrInvalidConfig)
	}

	seen := make(map[cluster.NodeID]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		if !n.ID.Valid() {
			return fmt.Errorf("%w: node id %d is negative", ErrInvalidConfig, n.ID)
		}
		if seen[n.ID] {
			return fmt.Errorf("%w: node id %d listed twice", ErrInvalidConfig, n.ID)
		}
		if n.Delay < 0 {
			return fmt.Errorf("%w: node %d has a negative delay", ErrInvalidConfig, n.ID)
		}
		seen[n.ID] = true
	}
	return nil
}

// ClientWait is how long a client waits for any feedback.
func (c Config) ClientWait() time.Duration {
	return c.Timeout + c.ClientGrace
}

// Load reads a YAML file on top of the defaults and validates the result.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("error opening config file: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads a YAML document on top of the defaults. Unknown fields are
// rejected.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("error decoding config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseNodes parses a comma-separated node list in the format
// "10=50ms,20,30" where the optional part after "=" is the node's response
// delay.
func ParseNodes(nodesStr string) ([]NodeSpec, error) {
	if strings.TrimSpace(nodesStr) == "" {
		return []NodeSpec{}, nil
	}

	parts := strings.Split(nodesStr, ",")
	nodes := make([]NodeSpec, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		idStr := strings.TrimSpace(kv[0])
		if idStr == "" {
			return nil, fmt.Errorf("node ID cannot be empty: %s", part)
		}

		id, err := strconv.Atoi(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid node ID %q: %w", idStr, err)
		}
		if id < 0 {
			return nil, fmt.Errorf("node ID cannot be negative: %s", part)
		}

		spec := NodeSpec{ID: cluster.NodeID(id)}
		if len(kv) == 2 {
			delayStr := strings.TrimSpace(kv[1])
			if delayStr == "" {
				return nil, fmt.Errorf("node delay cannot be empty: %s (expected id=delay)", part)
			}
			delay, err := time.ParseDuration(delayStr)
			if err != nil {
				return nil, fmt.Errorf("invalid node delay %q: %w", delayStr, err)
			}
			spec.Delay = delay
		}

		nodes = append(nodes, spec)
	}

	return nodes, nil
}
