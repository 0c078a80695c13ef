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

package adecc

import (
	"encoding/binary"

	"github.com/ptpavb/endpoint/wire/wireerr"
)

// ADPMessageType is the ADP message_type field.
type ADPMessageType uint8

// ADP message types, §4.9.
const (
	ADPEntityAvailable ADPMessageType = 0
	ADPEntityDeparting ADPMessageType = 1
	ADPEntityDiscover  ADPMessageType = 2
)

// adpBodySize is the fixed ADP body following the 12-byte control
// header: entity_model_id(8) + entity_capabilities(4) +
// talker_stream_sources(2) + talker_capabilities(2) +
// listener_stream_sinks(2) + listener_capabilities(2) +
// controller_capabilities(4) + available_index(4) +
// gptp_grandmaster_id(8) + gptp_domain_number(1)+reserved(3) +
// identify_control_index(2) + interface_index(2) + association_id(8) = 52
const adpBodySize = 52

// ADP is an ADP advertisement/discovery PDU. EntityID lives in the
// common control header.
type ADP struct {
	MessageType            ADPMessageType
	ValidTime               uint8 // units of 2s, per §4.9's default 2s advertise interval
	EntityID                EntityID
	EntityModelID           uint64
	EntityCapabilities      uint32
	TalkerStreamSources     uint16
	TalkerCapabilities      uint16
	ListenerStreamSinks     uint16
	ListenerCapabilities    uint16
	ControllerCapabilities  uint32
	AvailableIndex          uint32
	GPTPGrandmasterID       uint64
	GPTPDomainNumber        uint8
	IdentifyControlIndex    uint16
	InterfaceIndex          uint16
	AssociationID           uint64
}

// MarshalBinary encodes the ADP PDU into a freshly allocated buffer.
func (p *ADP) MarshalBinary() ([]byte, error) {
	b := make([]byte, adeccHeaderSize+adpBodySize)
	h := controlHeader{
		Subtype:           SubtypeADP,
		Version:           0,
		MessageType:       uint8(p.MessageType),
		Status:            p.ValidTime, // ADP has no status field; this slot carries valid_time instead
		ControlDataLength: adpBodySize,
		EntityID:          p.EntityID,
	}
	encodeControlHeader(&h, b)
	n := adeccHeaderSize
	binary.BigEndian.PutUint64(b[n:], p.EntityModelID)
	binary.BigEndian.PutUint32(b[n+8:], p.EntityCapabilities)
	binary.BigEndian.PutUint16(b[n+12:], p.TalkerStreamSources)
	binary.BigEndian.PutUint16(b[n+14:], p.TalkerCapabilities)
	binary.BigEndian.PutUint16(b[n+16:], p.ListenerStreamSinks)
	binary.BigEndian.PutUint16(b[n+18:], p.ListenerCapabilities)
	binary.BigEndian.PutUint32(b[n+20:], p.ControllerCapabilities)
	binary.BigEndian.PutUint32(b[n+24:], p.AvailableIndex)
	binary.BigEndian.PutUint64(b[n+28:], p.GPTPGrandmasterID)
	b[n+36] = p.GPTPDomainNumber
	binary.BigEndian.PutUint16(b[n+40:], p.IdentifyControlIndex)
	binary.BigEndian.PutUint16(b[n+42:], p.InterfaceIndex)
	binary.BigEndian.PutUint64(b[n+44:], p.AssociationID)
	return b, nil
}

// UnmarshalBinary decodes an ADP PDU from b.
func (p *ADP) UnmarshalBinary(b []byte) error {
	if len(b) < adeccHeaderSize+adpBodySize {
		return wireerr.New(wireerr.Truncated, "need %d bytes for ADP, got %d", adeccHeaderSize+adpBodySize, len(b))
	}
	h, err := decodeControlHeader(b)
	if err != nil {
		return err
	}
	if h.Subtype != SubtypeADP {
		return wireerr.New(wireerr.UnknownSubtype, "not an ADP PDU (subtype 0x%x)", h.Subtype)
	}
	p.MessageType = ADPMessageType(h.MessageType)
	p.ValidTime = h.Status
	p.EntityID = h.EntityID
	n := adeccHeaderSize
	p.EntityModelID = binary.BigEndian.Uint64(b[n:])
	p.EntityCapabilities = binary.BigEndian.Uint32(b[n+8:])
	p.TalkerStreamSources = binary.BigEndian.Uint16(b[n+12:])
	p.TalkerCapabilities = binary.BigEndian.Uint16(b[n+14:])
	p.ListenerStreamSinks = binary.BigEndian.Uint16(b[n+16:])
	p.ListenerCapabilities = binary.BigEndian.Uint16(b[n+18:])
	p.ControllerCapabilities = binary.BigEndian.Uint32(b[n+20:])
	p.AvailableIndex = binary.BigEndian.Uint32(b[n+24:])
	p.GPTPGrandmasterID = binary.BigEndian.Uint64(b[n+28:])
	p.GPTPDomainNumber = b[n+36]
	p.IdentifyControlIndex = binary.BigEndian.Uint16(b[n+40:])
	p.InterfaceIndex = binary.BigEndian.Uint16(b[n+42:])
	p.AssociationID = binary.BigEndian.Uint64(b[n+44:])
	return nil
}
