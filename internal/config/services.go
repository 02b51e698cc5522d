package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"trackgate/internal/session"
)

// Host modes.
const (
	ModeListen    = "listen"
	ModeHTTP      = "http"
	ModeClient    = "client"
	ModeBroadcast = "broadcast"
)

// Service binds one adapter to one host strategy.
type Service struct {
	Name    string `yaml:"name"`
	Adapter string `yaml:"adapter"`
	Mode    string `yaml:"mode"`

	// Listen is the local address for listen, http and broadcast modes.
	Listen string `yaml:"listen"`
	// Remote is tcp://host:port or serial:///dev/ttyX for client mode.
	Remote         string        `yaml:"remote"`
	Baud           uint          `yaml:"baud"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`

	// Source names the adapters whose records a broadcast host relays,
	// empty for all.
	Source []string `yaml:"source"`

	Filter session.Filter `yaml:"filter"`
}

type Services struct {
	Services []Service `yaml:"services"`
}

func LoadServices(path string) ([]Service, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseServices(b)
}

func ParseServices(b []byte) ([]Service, error) {
	var file Services
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("services: %w", err)
	}

	seen := make(map[string]bool)
	for i := range file.Services {
		svc := &file.Services[i]
		if svc.Name == "" {
			svc.Name = fmt.Sprintf("%s-%d", svc.Adapter, i)
		}
		if seen[svc.Name] {
			return nil, fmt.Errorf("services[%d]: duplicate name %q", i, svc.Name)
		}
		seen[svc.Name] = true

		if svc.Adapter == "" {
			return nil, fmt.Errorf("services[%d].adapter is required", i)
		}
		switch svc.Mode {
		case ModeListen, ModeHTTP, ModeBroadcast:
			if svc.Listen == "" {
				return nil, fmt.Errorf("services[%d].listen is required in %s mode", i, svc.Mode)
			}
		case ModeClient:
			if !strings.HasPrefix(svc.Remote, "tcp://") && !strings.HasPrefix(svc.Remote, "serial://") {
				return nil, fmt.Errorf("services[%d].remote must be tcp:// or serial://", i)
			}
		default:
			return nil, fmt.Errorf("services[%d].mode %q is not one of listen, http, client, broadcast", i, svc.Mode)
		}

		if svc.ReconnectDelay <= 0 {
			svc.ReconnectDelay = 10 * time.Second
		}
		if svc.Baud == 0 {
			svc.Baud = 38400
		}
		if svc.Filter.MaxSpeed < 0 || svc.Filter.MinDist < 0 || svc.Filter.MaxErrors < 0 {
			return nil, fmt.Errorf("services[%d].filter thresholds must be >= 0", i)
		}
	}
	return file.Services, nil
}
