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

package ptp

import (
	"encoding/binary"

	"github.com/ptpavb/endpoint/wire/wireerr"
)

// Message is the common interface implemented by every decoded PTP frame.
type Message interface {
	MessageType() MessageType
	SetSequence(uint16)
}

func (h *Header) SetSequence(seq uint16) { h.SequenceID = seq }

// Announce carries the grandmaster's dataset. Table 43.
type Announce struct {
	Header
	OriginTimestamp         Timestamp
	CurrentUTCOffset        int16
	GrandmasterPriority1    uint8
	GrandmasterClockQuality ClockQuality
	GrandmasterPriority2    uint8
	GrandmasterIdentity     ClockIdentity
	StepsRemoved            uint16
	TimeSource              TimeSource
	TLVs                    []TLV
}

const announceBodySize = 30

// MarshalBinaryTo encodes the Announce message into b, returning bytes written.
func (p *Announce) MarshalBinaryTo(b []byte) (int, error) {
	if len(b) < HeaderSize+announceBodySize {
		return 0, wireerr.New(wireerr.Truncated, "buffer too small for Announce")
	}
	marshalHeader(&p.Header, b)
	n := HeaderSize
	copy(b[n:], p.OriginTimestamp.Seconds[:])
	binary.BigEndian.PutUint32(b[n+6:], p.OriginTimestamp.Nanoseconds)
	binary.BigEndian.PutUint16(b[n+10:], uint16(p.CurrentUTCOffset))
	b[n+12] = 0 // reserved
	b[n+13] = p.GrandmasterPriority1
	b[n+14] = byte(p.GrandmasterClockQuality.ClockClass)
	b[n+15] = byte(p.GrandmasterClockQuality.ClockAccuracy)
	binary.BigEndian.PutUint16(b[n+16:], p.GrandmasterClockQuality.OffsetScaledLogVariance)
	b[n+18] = p.GrandmasterPriority2
	binary.BigEndian.PutUint64(b[n+19:], uint64(p.GrandmasterIdentity))
	binary.BigEndian.PutUint16(b[n+27:], p.StepsRemoved)
	b[n+29] = byte(p.TimeSource)
	pos := n + announceBodySize
	tlvLen, err := writeTLVs(p.TLVs, b[pos:])
	if err != nil {
		return 0, err
	}
	return pos + tlvLen, nil
}

// MarshalBinary encodes the Announce message into a freshly allocated buffer.
func (p *Announce) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize+announceBodySize+tlvBudget(p.TLVs))
	n, err := p.MarshalBinaryTo(buf)
	return buf[:n], err
}

// UnmarshalBinary decodes an Announce message from b.
func (p *Announce) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize+announceBodySize {
		return wireerr.New(wireerr.Truncated, "need %d bytes for Announce, got %d", HeaderSize+announceBodySize, len(b))
	}
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	n := HeaderSize
	copy(p.OriginTimestamp.Seconds[:], b[n:])
	p.OriginTimestamp.Nanoseconds = binary.BigEndian.Uint32(b[n+6:])
	p.CurrentUTCOffset = int16(binary.BigEndian.Uint16(b[n+10:]))
	p.GrandmasterPriority1 = b[n+13]
	p.GrandmasterClockQuality.ClockClass = ClockClass(b[n+14])
	p.GrandmasterClockQuality.ClockAccuracy = ClockAccuracy(b[n+15])
	p.GrandmasterClockQuality.OffsetScaledLogVariance = binary.BigEndian.Uint16(b[n+16:])
	p.GrandmasterPriority2 = b[n+18]
	p.GrandmasterIdentity = ClockIdentity(binary.BigEndian.Uint64(b[n+19:]))
	p.StepsRemoved = binary.BigEndian.Uint16(b[n+27:])
	p.TimeSource = TimeSource(b[n+29])
	pos := n + announceBodySize
	tlvs, err := readTLVs(int(p.MessageLength)-pos, b[pos:])
	if err != nil {
		return err
	}
	p.TLVs = tlvs
	return nil
}

// Sync/PDelay_Req share the one-field (origin timestamp) body. Table 44, Table 47.
type originTimestampBody struct {
	OriginTimestamp Timestamp
}

// Sync is the Sync message. In two-step mode OriginTimestamp is
// approximate; the precise value is carried by the paired Follow_Up.
type Sync struct {
	Header
	originTimestampBody
}

const syncBodySize = 10

// MarshalBinaryTo encodes Sync into b.
func (p *Sync) MarshalBinaryTo(b []byte) (int, error) {
	if len(b) < HeaderSize+syncBodySize {
		return 0, wireerr.New(wireerr.Truncated, "buffer too small for Sync")
	}
	marshalHeader(&p.Header, b)
	n := HeaderSize
	copy(b[n:], p.OriginTimestamp.Seconds[:])
	binary.BigEndian.PutUint32(b[n+6:], p.OriginTimestamp.Nanoseconds)
	return n + syncBodySize, nil
}

// MarshalBinary encodes Sync into a freshly allocated buffer.
func (p *Sync) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize+syncBodySize)
	n, err := p.MarshalBinaryTo(buf)
	return buf[:n], err
}

// UnmarshalBinary decodes a Sync message from b.
func (p *Sync) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize+syncBodySize {
		return wireerr.New(wireerr.Truncated, "need %d bytes for Sync, got %d", HeaderSize+syncBodySize, len(b))
	}
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	n := HeaderSize
	copy(p.OriginTimestamp.Seconds[:], b[n:])
	p.OriginTimestamp.Nanoseconds = binary.BigEndian.Uint32(b[n+6:])
	return nil
}

// FollowUp carries the precise origin timestamp for a prior Sync with
// the same SequenceID. Table 45.
type FollowUp struct {
	Header
	PreciseOriginTimestamp Timestamp
}

const followUpBodySize = 10

// MarshalBinaryTo encodes FollowUp into b.
func (p *FollowUp) MarshalBinaryTo(b []byte) (int, error) {
	if len(b) < HeaderSize+followUpBodySize {
		return 0, wireerr.New(wireerr.Truncated, "buffer too small for FollowUp")
	}
	marshalHeader(&p.Header, b)
	n := HeaderSize
	copy(b[n:], p.PreciseOriginTimestamp.Seconds[:])
	binary.BigEndian.PutUint32(b[n+6:], p.PreciseOriginTimestamp.Nanoseconds)
	return n + followUpBodySize, nil
}

// MarshalBinary encodes FollowUp into a freshly allocated buffer.
func (p *FollowUp) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize+followUpBodySize)
	n, err := p.MarshalBinaryTo(buf)
	return buf[:n], err
}

// UnmarshalBinary decodes a FollowUp message from b.
func (p *FollowUp) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize+followUpBodySize {
		return wireerr.New(wireerr.Truncated, "need %d bytes for FollowUp, got %d", HeaderSize+followUpBodySize, len(b))
	}
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	n := HeaderSize
	copy(p.PreciseOriginTimestamp.Seconds[:], b[n:])
	p.PreciseOriginTimestamp.Nanoseconds = binary.BigEndian.Uint32(b[n+6:])
	return nil
}

// PDelayReq is the peer-delay initiator's request. Table 47.
type PDelayReq struct {
	Header
	originTimestampBody
}

const pDelayReqBodySize = 20 // 10 bytes origin timestamp + 10 reserved

// MarshalBinaryTo encodes PDelayReq into b.
func (p *PDelayReq) MarshalBinaryTo(b []byte) (int, error) {
	if len(b) < HeaderSize+pDelayReqBodySize {
		return 0, wireerr.New(wireerr.Truncated, "buffer too small for PDelayReq")
	}
	marshalHeader(&p.Header, b)
	n := HeaderSize
	copy(b[n:], p.OriginTimestamp.Seconds[:])
	binary.BigEndian.PutUint32(b[n+6:], p.OriginTimestamp.Nanoseconds)
	for i := 0; i < 10; i++ {
		b[n+10+i] = 0
	}
	return n + pDelayReqBodySize, nil
}

// MarshalBinary encodes PDelayReq into a freshly allocated buffer.
func (p *PDelayReq) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize+pDelayReqBodySize)
	n, err := p.MarshalBinaryTo(buf)
	return buf[:n], err
}

// UnmarshalBinary decodes a PDelayReq message from b.
func (p *PDelayReq) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize+pDelayReqBodySize {
		return wireerr.New(wireerr.Truncated, "need %d bytes for PDelayReq, got %d", HeaderSize+pDelayReqBodySize, len(b))
	}
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	n := HeaderSize
	copy(p.OriginTimestamp.Seconds[:], b[n:])
	p.OriginTimestamp.Nanoseconds = binary.BigEndian.Uint32(b[n+6:])
	// trailing 10 reserved bytes ignored on receive
	return nil
}

// PDelayResp conveys T2, the responder's receipt timestamp for a
// PDelayReq. Table 48.
type PDelayResp struct {
	Header
	RequestReceiptTimestamp Timestamp
	RequestingPortIdentity  PortIdentity
}

const pDelayRespBodySize = 20

// MarshalBinaryTo encodes PDelayResp into b.
func (p *PDelayResp) MarshalBinaryTo(b []byte) (int, error) {
	if len(b) < HeaderSize+pDelayRespBodySize {
		return 0, wireerr.New(wireerr.Truncated, "buffer too small for PDelayResp")
	}
	marshalHeader(&p.Header, b)
	n := HeaderSize
	copy(b[n:], p.RequestReceiptTimestamp.Seconds[:])
	binary.BigEndian.PutUint32(b[n+6:], p.RequestReceiptTimestamp.Nanoseconds)
	binary.BigEndian.PutUint64(b[n+10:], uint64(p.RequestingPortIdentity.ClockIdentity))
	binary.BigEndian.PutUint16(b[n+18:], p.RequestingPortIdentity.PortNumber)
	return n + pDelayRespBodySize, nil
}

// MarshalBinary encodes PDelayResp into a freshly allocated buffer.
func (p *PDelayResp) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize+pDelayRespBodySize)
	n, err := p.MarshalBinaryTo(buf)
	return buf[:n], err
}

// UnmarshalBinary decodes a PDelayResp message from b.
func (p *PDelayResp) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize+pDelayRespBodySize {
		return wireerr.New(wireerr.Truncated, "need %d bytes for PDelayResp, got %d", HeaderSize+pDelayRespBodySize, len(b))
	}
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	n := HeaderSize
	copy(p.RequestReceiptTimestamp.Seconds[:], b[n:])
	p.RequestReceiptTimestamp.Nanoseconds = binary.BigEndian.Uint32(b[n+6:])
	p.RequestingPortIdentity.ClockIdentity = ClockIdentity(binary.BigEndian.Uint64(b[n+10:]))
	p.RequestingPortIdentity.PortNumber = binary.BigEndian.Uint16(b[n+18:])
	return nil
}

// PDelayRespFollowUp conveys T3, the responder's transmit timestamp
// for its PDelayResp. Table 49.
type PDelayRespFollowUp struct {
	Header
	ResponseOriginTimestamp Timestamp
	RequestingPortIdentity  PortIdentity
}

const pDelayRespFollowUpBodySize = 20

// MarshalBinaryTo encodes PDelayRespFollowUp into b.
func (p *PDelayRespFollowUp) MarshalBinaryTo(b []byte) (int, error) {
	if len(b) < HeaderSize+pDelayRespFollowUpBodySize {
		return 0, wireerr.New(wireerr.Truncated, "buffer too small for PDelayRespFollowUp")
	}
	marshalHeader(&p.Header, b)
	n := HeaderSize
	copy(b[n:], p.ResponseOriginTimestamp.Seconds[:])
	binary.BigEndian.PutUint32(b[n+6:], p.ResponseOriginTimestamp.Nanoseconds)
	binary.BigEndian.PutUint64(b[n+10:], uint64(p.RequestingPortIdentity.ClockIdentity))
	binary.BigEndian.PutUint16(b[n+18:], p.RequestingPortIdentity.PortNumber)
	return n + pDelayRespFollowUpBodySize, nil
}

// MarshalBinary encodes PDelayRespFollowUp into a freshly allocated buffer.
func (p *PDelayRespFollowUp) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize+pDelayRespFollowUpBodySize)
	n, err := p.MarshalBinaryTo(buf)
	return buf[:n], err
}

// UnmarshalBinary decodes a PDelayRespFollowUp message from b.
func (p *PDelayRespFollowUp) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize+pDelayRespFollowUpBodySize {
		return wireerr.New(wireerr.Truncated, "need %d bytes for PDelayRespFollowUp, got %d", HeaderSize+pDelayRespFollowUpBodySize, len(b))
	}
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	n := HeaderSize
	copy(p.ResponseOriginTimestamp.Seconds[:], b[n:])
	p.ResponseOriginTimestamp.Nanoseconds = binary.BigEndian.Uint32(b[n+6:])
	p.RequestingPortIdentity.ClockIdentity = ClockIdentity(binary.BigEndian.Uint64(b[n+10:]))
	p.RequestingPortIdentity.PortNumber = binary.BigEndian.Uint16(b[n+18:])
	return nil
}

// Decode dispatches on the common header's messageType and decodes the
// full message, returning a *DecodeError on any failure. No partial
// decoding: the returned Message is either complete or nil.
func Decode(b []byte) (Message, error) {
	msgType, err := ProbeMsgType(b)
	if err != nil {
		return nil, err
	}
	var m Message
	switch msgType {
	case MessageSync:
		m = &Sync{}
	case MessageFollowUp:
		m = &FollowUp{}
	case MessagePDelayReq:
		m = &PDelayReq{}
	case MessagePDelayResp:
		m = &PDelayResp{}
	case MessagePDelayRespFollowUp:
		m = &PDelayRespFollowUp{}
	case MessageAnnounce:
		m = &Announce{}
	default:
		return nil, wireerr.New(wireerr.UnknownSubtype, "messageType 0x%x", uint8(msgType))
	}
	type unmarshaler interface{ UnmarshalBinary([]byte) error }
	if err := m.(unmarshaler).UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return m, nil
}

// Encode marshals any Message that supports it to a freshly allocated buffer.
func Encode(m Message) ([]byte, error) {
	type marshaler interface{ MarshalBinary() ([]byte, error) }
	mm, ok := m.(marshaler)
	if !ok {
		return nil, wireerr.New(wireerr.UnknownSubtype, "%T has no MarshalBinary", m)
	}
	return mm.MarshalBinary()
}
