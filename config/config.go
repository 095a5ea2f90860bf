// Package config loads scenario configuration from YAML, validates it against
// a CUE schema, and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// maxPackets bounds rate*duration so that the packet count fits a uint64.
const maxPackets = 1 << 63

// Link describes the point-to-point link.
type Link struct {
	DataRateBps uint64        `yaml:"data_rate_bps"`
	Delay       time.Duration `yaml:"delay"`
}

// Client describes the packet generator and the node it runs on.
type Client struct {
	Address     string        `yaml:"address"`
	Start       time.Duration `yaml:"start"`
	Stop        time.Duration `yaml:"stop"`
	PayloadSize int           `yaml:"payload_size"`
	Rate        float64       `yaml:"rate"`
	Duration    float64       `yaml:"duration"`
}

// Server describes the packet sink and the node it runs on.
type Server struct {
	Address string        `yaml:"address"`
	Port    uint16        `yaml:"port"`
	Start   time.Duration `yaml:"start"`
	Stop    time.Duration `yaml:"stop"`
}

// Output names the files written after the simulation. Empty paths disable
// the optional outputs.
type Output struct {
	Latencies string `yaml:"latencies"`
	SQLite    string `yaml:"sqlite"`
	Metrics   string `yaml:"metrics"`

	// Trace is the segment trace file, without the .csv suffix.
	Trace string `yaml:"trace"`
}

// Scenario is the root configuration of a run.
type Scenario struct {
	Link   Link   `yaml:"link"`
	Client Client `yaml:"client"`
	Server Server `yaml:"server"`
	Output Output `yaml:"output"`

	// StopTime halts the whole simulation. Zero lets it run until no event
	// is left.
	StopTime time.Duration `yaml:"stop_time"`
}

// Default returns the reference experiment: a 1 Gbps, 30 µs link, a sink on
// 10.1.1.2:50000 from 1 s to 12 s, and a client on 10.1.1.1 sending 100-byte
// payloads at 10 per second for 10 seconds from 2 s to 20 s.
func Default() *Scenario {
	return &Scenario{
		Link: Link{
			DataRateBps: 1_000_000_000,
			Delay:       30 * time.Microsecond,
		},
		Client: Client{
			Address:     "10.1.1.1",
			Start:       2 * time.Second,
			Stop:        20 * time.Second,
			PayloadSize: 100,
			Rate:        10,
			Duration:    10,
		},
		Server: Server{
			Address: "10.1.1.2",
			Port:    50000,
			Start:   1 * time.Second,
			Stop:    12 * time.Second,
		},
		Output: Output{
			Latencies: "latencies.txt",
		},
	}
}

// Load reads a scenario file on top of the defaults. The file is validated
// against the schema before it is decoded, and the result is checked with
// Validate.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return Parse(path, data)
}

// Parse is Load for configuration that is already in memory. The name is used
// in error messages.
func Parse(name string, data []byte) (*Scenario, error) {
	err := ValidateSchema(name, data)
	if err != nil {
		return nil, err
	}

	var doc yaml.Node

	err = yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}

	normalizeZeroDurations(&doc)

	cfg := Default()

	if doc.Kind != 0 {
		err = doc.Decode(cfg)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return cfg, nil
}

var durationKeys = map[string]bool{
	"delay":     true,
	"start":     true,
	"stop":      true,
	"stop_time": true,
}

// normalizeZeroDurations rewrites a bare integer 0 under a duration key to
// "0s", since time.Duration only decodes from strings.
func normalizeZeroDurations(n *yaml.Node) {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, value := n.Content[i], n.Content[i+1]
			if durationKeys[key.Value] && value.Kind == yaml.ScalarNode &&
				value.ShortTag() == "!!int" && value.Value == "0" {
				value.Tag = "!!str"
				value.Value = "0s"
			}
		}
	}

	for _, c := range n.Content {
		normalizeZeroDurations(c)
	}
}

// ErrInvalid is wrapped by every semantic validation error.
var ErrInvalid = errors.New("invalid scenario")

// Validate checks the relations between fields that the schema cannot
// express.
func (s *Scenario) Validate() error {
	var errs []error

	clientIP, clientErr := netip.ParseAddr(s.Client.Address)
	if clientErr != nil {
		errs = append(errs, fmt.Errorf("client address: %w", clientErr))
	}

	serverIP, serverErr := netip.ParseAddr(s.Server.Address)
	if serverErr != nil {
		errs = append(errs, fmt.Errorf("server address: %w", serverErr))
	}

	if clientErr == nil && serverErr == nil && clientIP == serverIP {
		errs = append(errs, errors.New("client and server share an address"))
	}

	if s.Server.Port == 0 {
		errs = append(errs, errors.New("server port must be set"))
	}

	if s.Link.Delay < 0 {
		errs = append(errs, errors.New("link delay is negative"))
	}

	if s.Client.Start < 0 || s.Client.Stop < s.Client.Start {
		errs = append(errs, fmt.Errorf("client runs from %s to %s",
			s.Client.Start, s.Client.Stop))
	}

	if s.Server.Start < 0 || s.Server.Stop < s.Server.Start {
		errs = append(errs, fmt.Errorf("server runs from %s to %s",
			s.Server.Start, s.Server.Stop))
	}

	if s.Client.PayloadSize < 8 {
		errs = append(errs, fmt.Errorf("payload size %d is below 8 bytes",
			s.Client.PayloadSize))
	}

	if !(s.Client.Rate > 0) {
		errs = append(errs, fmt.Errorf("rate %g must be positive",
			s.Client.Rate))
	}

	if !(s.Client.Duration >= 0) {
		errs = append(errs, fmt.Errorf("duration %g must not be negative",
			s.Client.Duration))
	}

	if s.Client.Rate*s.Client.Duration >= maxPackets {
		errs = append(errs, fmt.Errorf("rate %g over %g seconds exceeds %g "+
			"packets", s.Client.Rate, s.Client.Duration, float64(maxPackets)))
	}

	if s.StopTime < 0 {
		errs = append(errs, errors.New("stop time is negative"))
	}

	if s.Output.Latencies == "" {
		errs = append(errs, errors.New("latency output path must be set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}

	return nil
}

// ClientIP returns the parsed client address. Call Validate first.
func (s *Scenario) ClientIP() netip.Addr {
	return netip.MustParseAddr(s.Client.Address)
}

// ServerAddr returns the parsed sink address. Call Validate first.
func (s *Scenario) ServerAddr() netip.AddrPort {
	return netip.AddrPortFrom(netip.MustParseAddr(s.Server.Address),
		s.Server.Port)
}
