package component

import (
	"encoding/json"
	"fmt"

	"github.com/Zeppelin-and-Pails/Victualiser/errors"
)

// Direction for data flow
type Direction string

// Direction constants for port data flow
const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Port describes any I/O interface
type Port struct {
	Name        string    `json:"name"`
	Direction   Direction `json:"direction"`
	Required    bool      `json:"required"`
	Description string    `json:"description"`
	Config      Portable  `json:"config"`
}

// Portable interface - minimal, no Get prefix (Go idiomatic)
type Portable interface {
	ResourceID() string // Unique identifier for conflict detection
	IsExclusive() bool  // Whether multiple components can share
	Type() string       // Port type identifier
}

// FilePort describes a file-backed sink or source
type FilePort struct {
	Path   string `json:"path"`             // File path ("-" means stdio)
	Append bool   `json:"append,omitempty"` // Open in append mode
}

// ResourceID returns the unique identifier for this file resource
func (f FilePort) ResourceID() string {
	return "file:" + f.Path
}

// IsExclusive returns true; two components must not write the same file
func (f FilePort) IsExclusive() bool {
	return f.Path != "-"
}

// Type returns the port type identifier
func (f FilePort) Type() string {
	return "file"
}

// NATSPort describes a NATS subject subscription
type NATSPort struct {
	Subject string `json:"subject"`
	Queue   string `json:"queue,omitempty"`
}

// ResourceID returns the unique identifier for this subject
func (n NATSPort) ResourceID() string {
	return "nats:" + n.Subject
}

// IsExclusive returns false; subjects fan out
func (n NATSPort) IsExclusive() bool {
	return false
}

// Type returns the port type identifier
func (n NATSPort) Type() string {
	return "nats"
}

// WebSocketPort describes an upstream websocket connection
type WebSocketPort struct {
	URL string `json:"url"`
}

// ResourceID returns the unique identifier for this connection
func (w WebSocketPort) ResourceID() string {
	return "ws:" + w.URL
}

// IsExclusive returns false; multiple consumers may dial the same endpoint
func (w WebSocketPort) IsExclusive() bool {
	return false
}

// Type returns the port type identifier
func (w WebSocketPort) Type() string {
	return "websocket"
}

// MarshalJSON provides custom JSON marshaling for Port struct
// This handles the Portable interface by creating a wrapper with type information
func (p Port) MarshalJSON() ([]byte, error) {
	type PortAlias Port // Prevent infinite recursion

	wrapper := struct {
		PortAlias
		Config json.RawMessage `json:"config"`
	}{
		PortAlias: (PortAlias)(p),
	}

	if p.Config != nil {
		configWithType := struct {
			Type string `json:"type"`
			Data any    `json:"data"`
		}{
			Type: p.Config.Type(),
			Data: p.Config,
		}

		configBytes, err := json.Marshal(configWithType)
		if err != nil {
			return nil, errors.Wrap(err, "Port", "MarshalJSON", "config marshaling")
		}
		wrapper.Config = configBytes
	}

	return json.Marshal(wrapper)
}

// UnmarshalJSON provides custom JSON unmarshaling for Port struct
// This handles reconstruction of the Portable interface from JSON
func (p *Port) UnmarshalJSON(data []byte) error {
	type PortAlias Port

	temp := struct {
		*PortAlias
		Config json.RawMessage `json:"config"`
	}{
		PortAlias: (*PortAlias)(p),
	}

	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	if len(temp.Config) > 0 {
		var configWrapper struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}

		if err := json.Unmarshal(temp.Config, &configWrapper); err != nil {
			return errors.Wrap(err, "Port", "UnmarshalJSON", "config wrapper unmarshaling")
		}

		switch configWrapper.Type {
		case "file":
			var fileConfig FilePort
			if err := json.Unmarshal(configWrapper.Data, &fileConfig); err != nil {
				return errors.Wrap(err, "Port", "UnmarshalJSON", "file config unmarshaling")
			}
			p.Config = fileConfig
		case "nats":
			var natsConfig NATSPort
			if err := json.Unmarshal(configWrapper.Data, &natsConfig); err != nil {
				return errors.Wrap(err, "Port", "UnmarshalJSON", "nats config unmarshaling")
			}
			p.Config = natsConfig
		case "websocket":
			var wsConfig WebSocketPort
			if err := json.Unmarshal(configWrapper.Data, &wsConfig); err != nil {
				return errors.Wrap(err, "Port", "UnmarshalJSON", "websocket config unmarshaling")
			}
			p.Config = wsConfig
		default:
			return errors.WrapInvalid(
				fmt.Errorf("unknown config type: %s", configWrapper.Type),
				"Port",
				"UnmarshalJSON",
				"config type validation",
			)
		}
	}

	return nil
}
