// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

package inspect

import (
	"sync"

	"github.com/tomtom215/telegraphus/internal/models"
)

// DefaultRegistryCapacity bounds how many recent packets the registry
// retains.
const DefaultRegistryCapacity = 1024

// Registry is a bounded index of recently seen packets keyed by packet
// identity. When full, adding a packet evicts the oldest entry. Safe
// for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	cap   int
	order []string
	byID  map[string]*models.Packet
}

// NewRegistry creates a registry with the given capacity. Non-positive
// capacities fall back to DefaultRegistryCapacity.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultRegistryCapacity
	}
	return &Registry{
		cap:  capacity,
		byID: make(map[string]*models.Packet, capacity),
	}
}

// Add indexes a packet, evicting the oldest entry when full. Re-adding
// an already indexed packet refreshes nothing; identity is stable.
func (r *Registry) Add(pkt *models.Packet) {
	if pkt == nil {
		return
	}
	key := pkt.ID().String()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[key]; exists {
		return
	}
	if len(r.order) >= r.cap {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.byID, oldest)
	}
	r.order = append(r.order, key)
	r.byID[key] = pkt
}

// Lookup resolves a packet identity to the full packet, if it is still
// retained.
func (r *Registry) Lookup(id models.PacketID) (*models.Packet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pkt, ok := r.byID[id.String()]
	return pkt, ok
}

// Len returns the number of retained packets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
