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

// Package adecc implements the wire codec for the ADECC (1722.1) PDUs
// layered on AVTP: ADP advertisement/discovery, AECP command/response
// (AEM and Milan MVU envelopes) and ACMP stream-connection management.
// Same Marshal/UnmarshalBinary shape as wire/ptp and wire/avtp.
package adecc

import (
	"encoding/binary"

	"github.com/ptpavb/endpoint/wire/wireerr"
)

// AVTP subtype values ADECC PDUs use, §6.
const (
	SubtypeADP  uint8 = 0xFA
	SubtypeAECP uint8 = 0xFB
	SubtypeACMP uint8 = 0xFC
)

// EntityID identifies an ADECC entity; 64-bit, EUI-64-derived.
type EntityID uint64

// UniqueID identifies a talker or listener stream source/sink within an entity.
type UniqueID uint16

// adeccHeaderSize is the common control header shared by ADP/AECP/ACMP:
// subtype(1) + sv/version/message_type(1) + status/control_data_length(2)
// + entity_id(8) = 12 bytes.
const adeccHeaderSize = 12

// controlHeader is the common prefix of every ADECC PDU. MessageType's
// meaning differs per subtype (ADP advertise/departing/discover, AECP
// command/response per kind, ACMP's fourteen connection messages); for
// ADP the Status slot carries valid_time.
type controlHeader struct {
	Subtype           uint8
	StreamValid       bool
	Version           uint8
	MessageType       uint8 // low nibble significant
	Status            uint8 // low 5 bits significant
	ControlDataLength uint16 // low 11 bits significant
	EntityID          EntityID
}

func encodeControlHeader(h *controlHeader, b []byte) {
	b[0] = h.Subtype
	flags := h.Version << 4
	if h.StreamValid {
		flags |= 0x80
	}
	flags |= h.MessageType & 0x0F
	b[1] = flags
	word := uint16(h.Status&0x1F)<<11 | (h.ControlDataLength & 0x07FF)
	binary.BigEndian.PutUint16(b[2:], word)
	binary.BigEndian.PutUint64(b[4:], uint64(h.EntityID))
}

func decodeControlHeader(b []byte) (controlHeader, error) {
	if len(b) < adeccHeaderSize {
		return controlHeader{}, wireerr.New(wireerr.Truncated, "need %d bytes for ADECC control header, got %d", adeccHeaderSize, len(b))
	}
	word := binary.BigEndian.Uint16(b[2:])
	h := controlHeader{
		Subtype:           b[0],
		StreamValid:       b[1]&0x80 != 0,
		Version:           (b[1] >> 4) & 0x7,
		MessageType:       b[1] & 0x0F,
		Status:            uint8(word >> 11),
		ControlDataLength: word & 0x07FF,
		EntityID:          EntityID(binary.BigEndian.Uint64(b[4:])),
	}
	return h, nil
}
