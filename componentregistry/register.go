// Package componentregistry provides component registration for the
// Victualiser pipeline stages.
package componentregistry

import (
	"errors"

	"github.com/Zeppelin-and-Pails/Victualiser/component"
	pkgerrors "github.com/Zeppelin-and-Pails/Victualiser/errors"
	"github.com/Zeppelin-and-Pails/Victualiser/input/gate"
	"github.com/Zeppelin-and-Pails/Victualiser/processor/enrich"
	"github.com/Zeppelin-and-Pails/Victualiser/server"
)

// Register registers all pipeline components with the provided registry:
//
//   - StreamGate input (filters and persists raw stream events)
//   - Enricher processor (normalization, sentiment, noun phrases)
//   - Server output (field discovery, projection, aggregation)
func Register(registry *component.Registry) error {
	// Nil registry is a programming error (fatal), not invalid input
	if registry == nil {
		return pkgerrors.WrapFatal(
			errors.New("registry cannot be nil"),
			"ComponentRegistry", "Register", "registry validation")
	}

	if err := gate.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "stream gate component registration")
	}

	if err := enrich.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "enricher component registration")
	}

	if err := server.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "server component registration")
	}

	return nil
}
