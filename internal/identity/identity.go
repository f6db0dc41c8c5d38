// Package identity owns the stable device identifier.
package identity

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/letscooee/cooee-go/internal/kv"
)

// Manager loads or mints the device UUID. Once a UUID sits in durable
// storage it is never regenerated.
type Manager struct {
	store kv.Store
}

// NewManager creates a manager over the durable store.
func NewManager(store kv.Store) *Manager {
	return &Manager{store: store}
}

// UUID returns the device identifier, generating and persisting one on
// first use.
func (m *Manager) UUID() string {
	if existing, err := m.store.Get(kv.KeyDeviceUUID); err == nil {
		return existing
	}

	id := uuid.NewString()
	if err := m.store.Set(kv.KeyDeviceUUID, id); err != nil {
		// Persisting failed: the id still identifies this run, the next
		// load will mint a fresh one.
		log.Error().Err(err).Msg("Failed to persist device uuid")
	}
	log.Debug().Str("uuid", id).Msg("Generated device uuid")
	return id
}
