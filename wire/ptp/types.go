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

// Package ptp implements the wire codec for the IEEE 802.1AS (gPTP)
// profile subset used by this endpoint: Sync, Follow_Up, Announce,
// Pdelay_Req, Pdelay_Resp and Pdelay_Resp_Follow_Up. Only the
// peer-to-peer delay mechanism is implemented; the end-to-end
// Delay_Req/Delay_Resp exchange and the management protocol belong to
// the ordinary PTP profile, not 802.1AS, and are out of scope.
package ptp

import (
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/ptpavb/endpoint/wire/wireerr"
)

// 2 ** 16
const twoPow16 = 65536

// MessageType is the type for the messageType field of the common header.
type MessageType uint8

// Message types used by the 802.1AS profile, Table 36 of IEEE 1588-2019.
const (
	MessageSync               MessageType = 0x0
	MessagePDelayReq          MessageType = 0x2
	MessagePDelayResp         MessageType = 0x3
	MessageFollowUp           MessageType = 0x8
	MessagePDelayRespFollowUp MessageType = 0xA
	MessageAnnounce           MessageType = 0xB
)

// MessageTypeToString maps MessageType to its wire-format name.
var MessageTypeToString = map[MessageType]string{
	MessageSync:               "SYNC",
	MessagePDelayReq:          "PDELAY_REQ",
	MessagePDelayResp:         "PDELAY_RESP",
	MessageFollowUp:           "FOLLOW_UP",
	MessagePDelayRespFollowUp: "PDELAY_RESP_FOLLOW_UP",
	MessageAnnounce:           "ANNOUNCE",
}

func (m MessageType) String() string {
	if s, ok := MessageTypeToString[m]; ok {
		return s
	}
	return fmt.Sprintf("UNKNOWN(0x%x)", uint8(m))
}

// SdoIDAndMsgType packs a 4-bit transportSpecific/sdoId nibble with the
// 4-bit messageType nibble, per Table 35.
type SdoIDAndMsgType uint8

// MsgType extracts the MessageType.
func (m SdoIDAndMsgType) MsgType() MessageType {
	return MessageType(m & 0xf)
}

// SdoID extracts the transportSpecific/sdoId nibble.
func (m SdoIDAndMsgType) SdoID() uint8 {
	return uint8(m >> 4)
}

// NewSdoIDAndMsgType builds a SdoIDAndMsgType field.
func NewSdoIDAndMsgType(msgType MessageType, sdoID uint8) SdoIDAndMsgType {
	return SdoIDAndMsgType(sdoID<<4 | uint8(msgType))
}

// ProbeMsgType reads the first octet of a frame and returns its MessageType
// without attempting a full decode.
func ProbeMsgType(b []byte) (MessageType, error) {
	if len(b) < 1 {
		return 0, wireerr.New(wireerr.Truncated, "need 1 byte to probe message type, got 0")
	}
	return SdoIDAndMsgType(b[0]).MsgType(), nil
}

// IntFloat is a float64 value stored as a fixed-point int64, used for
// TimeInterval/Correction fields (2**16 fractional scaling).
type IntFloat int64

// Value decodes the fixed-point value to a float64.
func (t IntFloat) Value() float64 {
	return float64(t) / twoPow16
}

// TimeInterval is a signed nanosecond interval, scaled by 2**16 on the
// wire (Table 5).
type TimeInterval IntFloat

// Nanoseconds decodes TimeInterval to a plain nanosecond value.
func (t TimeInterval) Nanoseconds() float64 {
	return IntFloat(t).Value()
}

func (t TimeInterval) String() string {
	return fmt.Sprintf("TimeInterval(%.3fns)", t.Nanoseconds())
}

// NewTimeInterval builds a TimeInterval from a nanosecond value.
func NewTimeInterval(ns float64) TimeInterval {
	return TimeInterval(ns * twoPow16)
}

// Correction is the correctionField of the common header: nanoseconds
// scaled by 2**16, with an all-ones-except-MSB sentinel for overflow.
type Correction IntFloat

// TooBig reports whether this correction value is the "too big to
// represent" sentinel.
func (t Correction) TooBig() bool {
	return t == 0x7fffffffffffffff
}

// Nanoseconds decodes Correction to a nanosecond value.
func (t Correction) Nanoseconds() float64 {
	if t.TooBig() {
		return math.Inf(1)
	}
	return IntFloat(t).Value()
}

// Duration converts Correction to a time.Duration, truncating
// fractional nanoseconds and treating the overflow sentinel as zero.
func (t Correction) Duration() time.Duration {
	if t.TooBig() {
		return 0
	}
	return time.Duration(t.Nanoseconds())
}

func (t Correction) String() string {
	if t.TooBig() {
		return "Correction(too big)"
	}
	return fmt.Sprintf("Correction(%.3fns)", t.Nanoseconds())
}

// NewCorrection builds a Correction from a nanosecond value, clamping to
// the overflow sentinel rather than wrapping.
func NewCorrection(ns float64) Correction {
	if ns*twoPow16 > 0x7ffffffffffffff {
		return Correction(0x7fffffffffffffff)
	}
	return Correction(ns * twoPow16)
}

// ClockIdentity is the 8-byte opaque identifier of a PTP clock,
// typically derived from the port's MAC address via EUI-64.
type ClockIdentity uint64

func (c ClockIdentity) String() string {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(c))
	return fmt.Sprintf("%02x%02x%02x.%02x%02x.%02x%02x%02x",
		b[0], b[1], b[2], b[3], b[4], b[5], b[6], b[7])
}

// MAC recovers the EUI-48 MAC address a ClockIdentity was derived from.
func (c ClockIdentity) MAC() net.HardwareAddr {
	mac := make(net.HardwareAddr, 6)
	mac[0] = byte(c >> 56)
	mac[1] = byte(c >> 48)
	mac[2] = byte(c >> 40)
	mac[3] = byte(c >> 16)
	mac[4] = byte(c >> 8)
	mac[5] = byte(c)
	return mac
}

// NewClockIdentity derives a ClockIdentity from a MAC address using the
// EUI-64 conversion (inserting FF-FE at octets 3-4).
func NewClockIdentity(mac net.HardwareAddr) (ClockIdentity, error) {
	var b [8]byte
	switch len(mac) {
	case 6:
		b[0], b[1], b[2] = mac[0], mac[1], mac[2]
		b[3], b[4] = 0xFF, 0xFE
		b[5], b[6], b[7] = mac[3], mac[4], mac[5]
	case 8:
		copy(b[:], mac)
	default:
		return 0, fmt.Errorf("unsupported MAC %v, must be EUI-48 or EUI-64", mac)
	}
	return ClockIdentity(binary.BigEndian.Uint64(b[:])), nil
}

// PortIdentity identifies a PTP port: its owning clock plus a port
// number, immutable after port initialization.
type PortIdentity struct {
	ClockIdentity ClockIdentity
	PortNumber    uint16
}

func (p PortIdentity) String() string {
	return fmt.Sprintf("%s-%d", p.ClockIdentity, p.PortNumber)
}

// Compare returns -1/0/1 comparing p to q, ordering first by
// ClockIdentity then by PortNumber.
func (p PortIdentity) Compare(q PortIdentity) int {
	switch {
	case p.ClockIdentity < q.ClockIdentity:
		return -1
	case p.ClockIdentity > q.ClockIdentity:
		return 1
	}
	switch {
	case p.PortNumber < q.PortNumber:
		return -1
	case p.PortNumber > q.PortNumber:
		return 1
	}
	return 0
}

// Less reports whether p sorts before q.
func (p PortIdentity) Less(q PortIdentity) bool { return p.Compare(q) == -1 }

// DefaultTargetPortIdentity addresses any port, used in Pdelay TLV
// addressing and as a wildcard requestingPortIdentity.
var DefaultTargetPortIdentity = PortIdentity{
	ClockIdentity: 0xffffffffffffffff,
	PortNumber:    0xffff,
}

// PTPSeconds is the 48-bit seconds field shared by all Timestamp values.
type PTPSeconds [6]uint8

// Empty reports whether all 6 bytes are zero.
func (s PTPSeconds) Empty() bool { return s == [6]uint8{} }

// Seconds returns the seconds value as a uint64.
func (s PTPSeconds) Seconds() uint64 {
	return uint64(s[5]) | uint64(s[4])<<8 | uint64(s[3])<<16 |
		uint64(s[2])<<24 | uint64(s[1])<<32 | uint64(s[0])<<40
}

// NewPTPSeconds encodes a uint64 second count into the 48-bit wire field.
// Values above 2**48-1 saturate, per the spec's saturating-arithmetic
// invariant on Timestamp.
func NewPTPSeconds(v uint64) PTPSeconds {
	const max48 = 1<<48 - 1
	if v > max48 {
		v = max48
	}
	var s PTPSeconds
	s[0] = byte(v >> 40)
	s[1] = byte(v >> 32)
	s[2] = byte(v >> 24)
	s[3] = byte(v >> 16)
	s[4] = byte(v >> 8)
	s[5] = byte(v)
	return s
}

// Timestamp is a 48-bit-seconds + 32-bit-nanoseconds PTP timestamp.
// Nanoseconds is always < 1e9; arithmetic saturates at the 48-bit
// seconds boundary instead of wrapping.
type Timestamp struct {
	Seconds     PTPSeconds
	Nanoseconds uint32
}

// Time converts Timestamp to time.Time (UTC, no leap-second correction).
func (t Timestamp) Time() time.Time {
	if t.Empty() {
		return time.Time{}
	}
	return time.Unix(int64(t.Seconds.Seconds()), int64(t.Nanoseconds)).UTC()
}

// Empty reports whether the timestamp is the zero value.
func (t Timestamp) Empty() bool {
	return t.Nanoseconds == 0 && t.Seconds.Empty()
}

func (t Timestamp) String() string {
	if t.Empty() {
		return "Timestamp(empty)"
	}
	return fmt.Sprintf("Timestamp(%s)", t.Time())
}

// NewTimestamp builds a Timestamp from a time.Time.
func NewTimestamp(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	return Timestamp{
		Seconds:     NewPTPSeconds(uint64(t.Unix())),
		Nanoseconds: uint32(t.Nanosecond()),
	}
}

// Sub returns t minus u as a time.Duration; time.Time.Sub saturates at
// the minimum or maximum Duration rather than overflowing int64.
func (t Timestamp) Sub(u Timestamp) time.Duration {
	return t.Time().Sub(u.Time())
}

// ClockClass is the grandmaster's clock_class dataset field (lower is
// better in the BMCA comparison).
type ClockClass uint8

// Well-known clock classes, RFC 8173 §7.6.2.4.
const (
	ClockClass6         ClockClass = 6
	ClockClass7         ClockClass = 7
	ClockClass13        ClockClass = 13
	ClockClass14        ClockClass = 14
	ClockClass52        ClockClass = 52
	ClockClass58        ClockClass = 58
	ClockClassSlaveOnly ClockClass = 255
)

// ClockAccuracy is the grandmaster's clock_accuracy dataset field.
type ClockAccuracy uint8

// Well-known clock accuracy enumerants, RFC 8173 §7.6.2.5.
const (
	ClockAccuracyNanosecond25       ClockAccuracy = 0x20
	ClockAccuracyNanosecond100      ClockAccuracy = 0x21
	ClockAccuracyNanosecond250      ClockAccuracy = 0x22
	ClockAccuracyMicrosecond1       ClockAccuracy = 0x23
	ClockAccuracyMicrosecond2point5 ClockAccuracy = 0x24
	ClockAccuracyMicrosecond10      ClockAccuracy = 0x25
	ClockAccuracyMicrosecond25      ClockAccuracy = 0x26
	ClockAccuracyMicrosecond100     ClockAccuracy = 0x27
	ClockAccuracyMicrosecond250     ClockAccuracy = 0x28
	ClockAccuracyMillisecond1       ClockAccuracy = 0x29
	ClockAccuracyMillisecond2point5 ClockAccuracy = 0x2A
	ClockAccuracyMillisecond10      ClockAccuracy = 0x2B
	ClockAccuracyMillisecond25      ClockAccuracy = 0x2C
	ClockAccuracyMillisecond100     ClockAccuracy = 0x2D
	ClockAccuracyMillisecond250     ClockAccuracy = 0x2E
	ClockAccuracySecond1            ClockAccuracy = 0x2F
	ClockAccuracySecond10           ClockAccuracy = 0x30
	ClockAccuracySecondGreater10    ClockAccuracy = 0x31
	ClockAccuracyUnknown            ClockAccuracy = 0xFE
)

// ClockQuality is the (class, accuracy, variance) triple the BMCA
// comparison orders on; gptp.Dscmp compares it field by field.
type ClockQuality struct {
	ClockClass              ClockClass
	ClockAccuracy           ClockAccuracy
	OffsetScaledLogVariance uint16
}

// TimeSource indicates the immediate source of time used by the
// grandmaster, Table 6.
type TimeSource uint8

// TimeSource enumerants, Table 6.
const (
	TimeSourceAtomicClock        TimeSource = 0x10
	TimeSourceGNSS               TimeSource = 0x20
	TimeSourceTerrestrialRadio   TimeSource = 0x30
	TimeSourceSerialTimeCode     TimeSource = 0x39
	TimeSourcePTP                TimeSource = 0x40
	TimeSourceNTP                TimeSource = 0x50
	TimeSourceHandSet            TimeSource = 0x60
	TimeSourceOther              TimeSource = 0x90
	TimeSourceInternalOscillator TimeSource = 0xa0
)
