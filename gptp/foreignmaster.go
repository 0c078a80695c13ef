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

package gptp

import (
	"time"

	ptp "github.com/ptpavb/endpoint/wire/ptp"
)

// qualifyCount is the number of consecutive announces at the expected
// interval a foreign master needs before it is eligible to win BMCA,
// §4.3.
const qualifyCount = 2

// ForeignMasterRecord tracks one candidate grandmaster as seen on a
// port. It is owned by the ForeignMasterStore and never shared, §5.
type ForeignMasterRecord struct {
	SourcePortIdentity ptp.PortIdentity
	Latest             *ptp.Announce
	messageCount       int
	lastSeen           time.Time
}

// Qualified reports whether this record has received enough
// consecutive announces to be considered by the state decision, §4.3.
func (r *ForeignMasterRecord) Qualified() bool {
	return r.messageCount >= qualifyCount
}

// ForeignMasterStore is the BMCA engine's table of candidate
// grandmasters, keyed by the announcing port's identity and aged out
// independently, §4.3/§4.6.
type ForeignMasterStore struct {
	AnnounceInterval time.Duration
	Timeout          int // multiplier on AnnounceInterval, default 3
	records          map[ptp.PortIdentity]*ForeignMasterRecord
	now              func() time.Time
}

// NewForeignMasterStore builds a store with the default 3x receipt
// timeout multiplier, §4.2.
func NewForeignMasterStore(announceInterval time.Duration) *ForeignMasterStore {
	return &ForeignMasterStore{
		AnnounceInterval: announceInterval,
		Timeout:          3,
		records:          make(map[ptp.PortIdentity]*ForeignMasterRecord),
		now:              time.Now,
	}
}

// Update records a received, already-validated Announce message,
// §4.6: the Rx machine is responsible for deduplicating by
// sequence_id and must not call Update with stale messages.
func (s *ForeignMasterStore) Update(a *ptp.Announce) *ForeignMasterRecord {
	pi := a.SourcePortIdentity
	r, ok := s.records[pi]
	if !ok {
		r = &ForeignMasterRecord{SourcePortIdentity: pi}
		s.records[pi] = r
	}
	r.Latest = a
	r.messageCount++
	r.lastSeen = s.now()
	return r
}

// Expire drops records older than Timeout x AnnounceInterval, §4.3.
// It returns the port identities of records that were dropped.
func (s *ForeignMasterStore) Expire() []ptp.PortIdentity {
	deadline := s.now().Add(-time.Duration(s.Timeout) * s.AnnounceInterval)
	var dropped []ptp.PortIdentity
	for pi, r := range s.records {
		if r.lastSeen.Before(deadline) {
			dropped = append(dropped, pi)
			delete(s.records, pi)
		}
	}
	return dropped
}

// Reset ages every foreign master to zero, §4.2's SLAVE ->
// LISTENING transition.
func (s *ForeignMasterStore) Reset() {
	s.records = make(map[ptp.PortIdentity]*ForeignMasterRecord)
}

// Best returns the qualified record whose Announce wins Dscmp against
// every other qualified record, or nil if none are qualified.
func (s *ForeignMasterStore) Best() *ForeignMasterRecord {
	var best *ForeignMasterRecord
	for _, r := range s.records {
		if !r.Qualified() {
			continue
		}
		if best == nil {
			best = r
			continue
		}
		if Dscmp(r.Latest, best.Latest) == ABetter {
			best = r
		}
	}
	return best
}

// Len reports the number of tracked foreign masters, qualified or not.
func (s *ForeignMasterStore) Len() int {
	return len(s.records)
}
