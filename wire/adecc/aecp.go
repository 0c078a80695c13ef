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

// AECPMessageType is the AECP message_type field, §4.9.
type AECPMessageType uint8

// AECP message types this codec carries. The controller/responder
// notification variants are omitted; only command/response round-trips
// are in scope.
const (
	AECPAEMCommand           AECPMessageType = 0
	AECPAEMResponse          AECPMessageType = 1
	AECPVendorUniqueCommand  AECPMessageType = 6
	AECPVendorUniqueResponse AECPMessageType = 7
)

// AECPStatus is the AECP response status code, §4.9/§9.
type AECPStatus uint8

// AECP status codes. UNKNOWN_COMMAND is returned by the dispatcher on an
// unrecognized command type rather than an empty response.
const (
	AECPStatusSuccess         AECPStatus = 0
	AECPStatusNotImplemented  AECPStatus = 1
	AECPStatusNoSuchDescriptor AECPStatus = 2
	AECPStatusEntityLocked    AECPStatus = 3
	AECPStatusEntityAcquired  AECPStatus = 4
	AECPStatusNotAuthenticated AECPStatus = 5
	AECPStatusAuthDisabled    AECPStatus = 6
	AECPStatusBadArguments    AECPStatus = 7
	AECPStatusNoResources     AECPStatus = 8
	AECPStatusInProgress      AECPStatus = 9
	AECPStatusEntityMisbehaving AECPStatus = 10
	AECPStatusNotSupported    AECPStatus = 11
	AECPStatusStreamIsRunning AECPStatus = 12
	AECPStatusUnknownCommand  AECPStatus = 13
)

// AEMCommandType is the AEM command_type field carried in the u field,
// §4.9. Only the commands the acquire/lock and descriptor-read paths
// exercise are enumerated; the rest decode as raw CommandType values.
type AEMCommandType uint16

// AEM command types.
const (
	AEMAcquireEntity      AEMCommandType = 0x0000
	AEMLockEntity         AEMCommandType = 0x0001
	AEMReadDescriptor     AEMCommandType = 0x0004
	AEMSetStreamFormat    AEMCommandType = 0x0008
	AEMGetStreamFormat    AEMCommandType = 0x0009
)

// aecpHeaderSize is the AECP-specific fixed header that follows the
// 12-byte control header: controller_entity_id(8) + sequence_id(2) +
// command_type(2) = 12 bytes. The common u-bit (command/response flag)
// is folded into command_type's top bit.
const aecpHeaderSize = 12

// commandTypeMask strips the AECP u (command/response) bit from the
// wire command_type field.
const commandTypeMask = 0x7FFF

// AEM is an AECP frame carrying the AEM command/response envelope.
type AEM struct {
	MessageType       AECPMessageType
	Status            AECPStatus
	EntityID          EntityID
	ControllerEntityID EntityID
	SequenceID        uint16
	CommandType       AEMCommandType
	Payload           []byte
}

func (f *AEM) isResponse() bool {
	return f.MessageType == AECPAEMResponse
}

// MarshalBinary encodes the AEM frame into a freshly allocated buffer.
func (f *AEM) MarshalBinary() ([]byte, error) {
	body := aecpHeaderSize + len(f.Payload)
	b := make([]byte, adeccHeaderSize+body)
	h := controlHeader{
		Subtype:           SubtypeAECP,
		Version:           0,
		MessageType:       uint8(f.MessageType),
		Status:            uint8(f.Status),
		ControlDataLength: uint16(body),
		EntityID:          f.EntityID,
	}
	encodeControlHeader(&h, b)
	n := adeccHeaderSize
	binary.BigEndian.PutUint64(b[n:], uint64(f.ControllerEntityID))
	binary.BigEndian.PutUint16(b[n+8:], f.SequenceID)
	ct := uint16(f.CommandType) & commandTypeMask
	if f.isResponse() {
		ct |= 0x8000
	}
	binary.BigEndian.PutUint16(b[n+10:], ct)
	copy(b[n+aecpHeaderSize:], f.Payload)
	return b, nil
}

// UnmarshalBinary decodes an AEM frame from b.
func (f *AEM) UnmarshalBinary(b []byte) error {
	if len(b) < adeccHeaderSize+aecpHeaderSize {
		return wireerr.New(wireerr.Truncated, "need %d bytes for AECP AEM, got %d", adeccHeaderSize+aecpHeaderSize, len(b))
	}
	h, err := decodeControlHeader(b)
	if err != nil {
		return err
	}
	if h.Subtype != SubtypeAECP {
		return wireerr.New(wireerr.UnknownSubtype, "not an AECP PDU (subtype 0x%x)", h.Subtype)
	}
	f.MessageType = AECPMessageType(h.MessageType)
	f.Status = AECPStatus(h.Status)
	f.EntityID = h.EntityID
	n := adeccHeaderSize
	f.ControllerEntityID = EntityID(binary.BigEndian.Uint64(b[n:]))
	f.SequenceID = binary.BigEndian.Uint16(b[n+8:])
	raw := binary.BigEndian.Uint16(b[n+10:])
	f.CommandType = AEMCommandType(raw & commandTypeMask)
	payloadStart := n + aecpHeaderSize
	f.Payload = append([]byte(nil), b[payloadStart:]...)
	return nil
}

// mvuProtocolID is the Milan vendor-unique protocol identifier carried
// in every MVU command/response, §9: 0x90E0F000FE00.
const mvuProtocolID = 0x90E0F000FE00

// MVUCommandType is the Milan vendor-unique command_type, §4.10.
type MVUCommandType uint16

// MVU command types.
const (
	MVUGetMilanInfo              MVUCommandType = 0x0000
	MVUSetSystemUniqueID         MVUCommandType = 0x0001
	MVUGetSystemUniqueID         MVUCommandType = 0x0002
	MVUSetMediaClockReferenceInfo MVUCommandType = 0x0003
	MVUGetMediaClockReferenceInfo MVUCommandType = 0x0004
)

// mvuResponseBit is OR'd into command_type on MVU responses, §9.
const mvuResponseBit = 0x8000

// mvuHeaderSize is the vendor-unique envelope that follows the AECP
// fixed header: protocol_id(6) + mvu_command_type(2) = 8 bytes.
const mvuHeaderSize = 8

// MVU is an AECP vendor-unique frame carrying a Milan MVU command or
// response.
type MVU struct {
	MessageType        AECPMessageType
	Status             AECPStatus
	EntityID           EntityID
	ControllerEntityID EntityID
	SequenceID         uint16
	CommandType        MVUCommandType
	Payload            []byte
}

func (f *MVU) isResponse() bool {
	return f.MessageType == AECPVendorUniqueResponse
}

// MarshalBinary encodes the MVU frame into a freshly allocated buffer.
func (f *MVU) MarshalBinary() ([]byte, error) {
	body := aecpHeaderSize + mvuHeaderSize + len(f.Payload)
	b := make([]byte, adeccHeaderSize+body)
	h := controlHeader{
		Subtype:           SubtypeAECP,
		Version:           0,
		MessageType:       uint8(f.MessageType),
		Status:            uint8(f.Status),
		ControlDataLength: uint16(body),
		EntityID:          f.EntityID,
	}
	encodeControlHeader(&h, b)
	n := adeccHeaderSize
	binary.BigEndian.PutUint64(b[n:], uint64(f.ControllerEntityID))
	binary.BigEndian.PutUint16(b[n+8:], f.SequenceID)
	binary.BigEndian.PutUint16(b[n+10:], 0) // AEM command_type slot is unused for vendor-unique frames
	n += aecpHeaderSize
	// protocol_id is 48 bits; write as 6 bytes of a 64-bit value.
	var pidBuf [8]byte
	binary.BigEndian.PutUint64(pidBuf[:], mvuProtocolID)
	copy(b[n:n+6], pidBuf[2:])
	mvuCT := uint16(f.CommandType)
	if f.isResponse() {
		mvuCT |= mvuResponseBit
	}
	binary.BigEndian.PutUint16(b[n+6:], mvuCT)
	copy(b[n+mvuHeaderSize:], f.Payload)
	return b, nil
}

// UnmarshalBinary decodes an MVU frame from b.
func (f *MVU) UnmarshalBinary(b []byte) error {
	if len(b) < adeccHeaderSize+aecpHeaderSize+mvuHeaderSize {
		return wireerr.New(wireerr.Truncated, "need %d bytes for AECP MVU, got %d", adeccHeaderSize+aecpHeaderSize+mvuHeaderSize, len(b))
	}
	h, err := decodeControlHeader(b)
	if err != nil {
		return err
	}
	if h.Subtype != SubtypeAECP {
		return wireerr.New(wireerr.UnknownSubtype, "not an AECP PDU (subtype 0x%x)", h.Subtype)
	}
	f.MessageType = AECPMessageType(h.MessageType)
	f.Status = AECPStatus(h.Status)
	f.EntityID = h.EntityID
	n := adeccHeaderSize
	f.ControllerEntityID = EntityID(binary.BigEndian.Uint64(b[n:]))
	f.SequenceID = binary.BigEndian.Uint16(b[n+8:])
	n += aecpHeaderSize
	var pidBuf [8]byte
	copy(pidBuf[2:], b[n:n+6])
	pid := binary.BigEndian.Uint64(pidBuf[:])
	if pid != mvuProtocolID {
		return wireerr.New(wireerr.ReservedBitsSet, "unexpected vendor-unique protocol_id 0x%012x", pid)
	}
	raw := binary.BigEndian.Uint16(b[n+6:])
	f.CommandType = MVUCommandType(raw &^ mvuResponseBit)
	payloadStart := n + mvuHeaderSize
	f.Payload = append([]byte(nil), b[payloadStart:]...)
	return nil
}
