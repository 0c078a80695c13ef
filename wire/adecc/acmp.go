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

// ACMPMessageType is the ACMP message_type field, §4.9. The nine-way
// connection protocol's full message set.
type ACMPMessageType uint8

// ACMP message types.
const (
	ACMPConnectTXCommand      ACMPMessageType = 0
	ACMPConnectTXResponse     ACMPMessageType = 1
	ACMPDisconnectTXCommand   ACMPMessageType = 2
	ACMPDisconnectTXResponse  ACMPMessageType = 3
	ACMPGetTXStateCommand     ACMPMessageType = 4
	ACMPGetTXStateResponse    ACMPMessageType = 5
	ACMPConnectRXCommand      ACMPMessageType = 6
	ACMPConnectRXResponse     ACMPMessageType = 7
	ACMPDisconnectRXCommand   ACMPMessageType = 8
	ACMPDisconnectRXResponse  ACMPMessageType = 9
	ACMPGetRXStateCommand     ACMPMessageType = 10
	ACMPGetRXStateResponse    ACMPMessageType = 11
	ACMPGetTXConnectionCommand  ACMPMessageType = 12
	ACMPGetTXConnectionResponse ACMPMessageType = 13
)

// ACMPStatus is the ACMP response status code, §4.9.
type ACMPStatus uint8

// ACMP status codes.
const (
	ACMPStatusSuccess              ACMPStatus = 0
	ACMPStatusListenerUnknownID    ACMPStatus = 1
	ACMPStatusTalkerUnknownID      ACMPStatus = 2
	ACMPStatusTalkerDestMacFail    ACMPStatus = 3
	ACMPStatusTalkerNoStreamIndex  ACMPStatus = 4
	ACMPStatusTalkerNoBandwidth    ACMPStatus = 5
	ACMPStatusTalkerExclusive      ACMPStatus = 6
	ACMPStatusListenerTalkerTimeout ACMPStatus = 7
	ACMPStatusListenerExclusive    ACMPStatus = 8
	ACMPStatusStateUnavailable     ACMPStatus = 9
	ACMPStatusNotConnected         ACMPStatus = 10
	ACMPStatusNoSuchConnection     ACMPStatus = 11
	ACMPStatusCouldNotSendMessage  ACMPStatus = 12
	ACMPStatusTalkerMisbehaving    ACMPStatus = 14
	ACMPStatusListenerMisbehaving  ACMPStatus = 15
	ACMPStatusControllerNotAuthorized ACMPStatus = 17
	ACMPStatusNotSupported         ACMPStatus = 31
)

// acmpBodySize is the fixed ACMP body following the 12-byte control
// header: stream_id(8) + controller_entity_id(8) + talker_entity_id(8)
// + listener_entity_id(8) + talker_unique_id(2) + listener_unique_id(2)
// + dest_mac(6) + connection_count(2) + sequence_id(2) + flags(2) +
// stream_vlan_id(2) + reserved(2) = 52
const acmpBodySize = 52

// ACMP is one of the fourteen ACMP connection-management messages.
// EntityID in the common control header is unused by ACMP; Status
// lives in the control header's status slot.
type ACMP struct {
	MessageType       ACMPMessageType
	Status            ACMPStatus
	StreamID          uint64
	ControllerEntityID EntityID
	TalkerEntityID    EntityID
	ListenerEntityID  EntityID
	TalkerUniqueID    UniqueID
	ListenerUniqueID  UniqueID
	DestMAC           [6]byte
	ConnectionCount   uint16
	SequenceID        uint16
	Flags             uint16
	StreamVlanID      uint16
}

// MarshalBinary encodes the ACMP message into a freshly allocated buffer.
func (m *ACMP) MarshalBinary() ([]byte, error) {
	b := make([]byte, adeccHeaderSize+acmpBodySize)
	h := controlHeader{
		Subtype:           SubtypeACMP,
		Version:           0,
		MessageType:       uint8(m.MessageType),
		Status:            uint8(m.Status),
		ControlDataLength: acmpBodySize,
		EntityID:          0,
	}
	encodeControlHeader(&h, b)
	n := adeccHeaderSize
	binary.BigEndian.PutUint64(b[n:], m.StreamID)
	binary.BigEndian.PutUint64(b[n+8:], uint64(m.ControllerEntityID))
	binary.BigEndian.PutUint64(b[n+16:], uint64(m.TalkerEntityID))
	binary.BigEndian.PutUint64(b[n+24:], uint64(m.ListenerEntityID))
	binary.BigEndian.PutUint16(b[n+32:], uint16(m.TalkerUniqueID))
	binary.BigEndian.PutUint16(b[n+34:], uint16(m.ListenerUniqueID))
	copy(b[n+36:n+42], m.DestMAC[:])
	binary.BigEndian.PutUint16(b[n+42:], m.ConnectionCount)
	binary.BigEndian.PutUint16(b[n+44:], m.SequenceID)
	binary.BigEndian.PutUint16(b[n+46:], m.Flags)
	binary.BigEndian.PutUint16(b[n+48:], m.StreamVlanID)
	// b[n+50:n+52] reserved, zero on send
	return b, nil
}

// UnmarshalBinary decodes an ACMP message from b.
func (m *ACMP) UnmarshalBinary(b []byte) error {
	if len(b) < adeccHeaderSize+acmpBodySize {
		return wireerr.New(wireerr.Truncated, "need %d bytes for ACMP, got %d", adeccHeaderSize+acmpBodySize, len(b))
	}
	h, err := decodeControlHeader(b)
	if err != nil {
		return err
	}
	if h.Subtype != SubtypeACMP {
		return wireerr.New(wireerr.UnknownSubtype, "not an ACMP PDU (subtype 0x%x)", h.Subtype)
	}
	m.MessageType = ACMPMessageType(h.MessageType)
	m.Status = ACMPStatus(h.Status)
	n := adeccHeaderSize
	m.StreamID = binary.BigEndian.Uint64(b[n:])
	m.ControllerEntityID = EntityID(binary.BigEndian.Uint64(b[n+8:]))
	m.TalkerEntityID = EntityID(binary.BigEndian.Uint64(b[n+16:]))
	m.ListenerEntityID = EntityID(binary.BigEndian.Uint64(b[n+24:]))
	m.TalkerUniqueID = UniqueID(binary.BigEndian.Uint16(b[n+32:]))
	m.ListenerUniqueID = UniqueID(binary.BigEndian.Uint16(b[n+34:]))
	copy(m.DestMAC[:], b[n+36:n+42])
	m.ConnectionCount = binary.BigEndian.Uint16(b[n+42:])
	m.SequenceID = binary.BigEndian.Uint16(b[n+44:])
	m.Flags = binary.BigEndian.Uint16(b[n+46:])
	m.StreamVlanID = binary.BigEndian.Uint16(b[n+48:])
	return nil
}

// IsResponse reports whether m is a response-direction ACMP message.
// Response message types are always odd per the enumeration above.
func (m *ACMP) IsResponse() bool {
	return uint8(m.MessageType)%2 == 1
}
