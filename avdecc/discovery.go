/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package avdecc implements the ADECC (IEEE 1722.1) control plane:
// ADP discovery aging, the entity model descriptor tree, and the
// AECP/ACMP stateful dispatchers, §4.8/§4.9.
package avdecc

import (
	"time"

	log "github.com/sirupsen/logrus"

	adecc "github.com/ptpavb/endpoint/wire/adecc"
)

// missedAdvertisementsForDeparture is the number of consecutive
// missed ADP advertisements before an entity is considered departed,
// §4.9.
const missedAdvertisementsForDeparture = 3

// DiscoveredEntity is one entry in the discovery table, keyed by
// entity_id and aged from its own valid_time, §4.9.
type DiscoveredEntity struct {
	EntityID      adecc.EntityID
	Last          *adecc.ADP
	lastSeen      time.Time
	missed        int
}

// expireDeadline returns the time after which the entity is considered
// departed, derived from its own advertised valid_time.
func (e *DiscoveredEntity) expireDeadline() time.Time {
	interval := time.Duration(e.Last.ValidTime) * 2 * time.Second
	return e.lastSeen.Add(interval * missedAdvertisementsForDeparture)
}

// DiscoveryTable is the ADP discovery state machine, §4.9: one
// instance per listening interface, not shared, §5.
type DiscoveryTable struct {
	entities map[adecc.EntityID]*DiscoveredEntity
	now      func() time.Time
	onArrive func(*DiscoveredEntity)
	onDepart func(adecc.EntityID)
}

// NewDiscoveryTable builds an empty discovery table. onArrive and
// onDepart may be nil.
func NewDiscoveryTable(onArrive func(*DiscoveredEntity), onDepart func(adecc.EntityID)) *DiscoveryTable {
	return &DiscoveryTable{
		entities: make(map[adecc.EntityID]*DiscoveredEntity),
		now:      time.Now,
		onArrive: onArrive,
		onDepart: onDepart,
	}
}

// ReceiveADP applies one received ADP PDU to the table: ENTITY_AVAILABLE
// refreshes or inserts the record, ENTITY_DEPARTING removes it
// immediately, §4.9.
func (t *DiscoveryTable) ReceiveADP(p *adecc.ADP) {
	switch p.MessageType {
	case adecc.ADPEntityDeparting:
		if _, ok := t.entities[p.EntityID]; ok {
			delete(t.entities, p.EntityID)
			t.depart(p.EntityID)
		}
	case adecc.ADPEntityAvailable:
		e, ok := t.entities[p.EntityID]
		if !ok {
			e = &DiscoveredEntity{EntityID: p.EntityID}
			t.entities[p.EntityID] = e
			defer func() {
				if t.onArrive != nil {
					t.onArrive(e)
				}
			}()
		}
		e.Last = p
		e.lastSeen = t.now()
		e.missed = 0
	case adecc.ADPEntityDiscover:
		// handled by the advertiser side, not the discovery table
	}
}

// Expire drops entities that have missed missedAdvertisementsForDeparture
// consecutive advertisement intervals, §4.9.
func (t *DiscoveryTable) Expire() {
	now := t.now()
	for id, e := range t.entities {
		if now.After(e.expireDeadline()) {
			delete(t.entities, id)
			t.depart(id)
		}
	}
}

func (t *DiscoveryTable) depart(id adecc.EntityID) {
	log.WithField("entity_id", id).Debug("avdecc: entity departed")
	if t.onDepart != nil {
		t.onDepart(id)
	}
}

// Get returns the discovered entity for id, if known.
func (t *DiscoveryTable) Get(id adecc.EntityID) (*DiscoveredEntity, bool) {
	e, ok := t.entities[id]
	return e, ok
}

// Len reports the number of currently tracked entities.
func (t *DiscoveryTable) Len() int { return len(t.entities) }

// All returns a snapshot slice of every tracked entity.
func (t *DiscoveryTable) All() []*DiscoveredEntity {
	out := make([]*DiscoveredEntity, 0, len(t.entities))
	for _, e := range t.entities {
		out = append(out, e)
	}
	return out
}
