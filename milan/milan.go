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

// Package milan implements the Milan profile's MVU command set and
// compliance predicate layered on top of avdecc, §4.10.
package milan

import (
	"encoding/binary"
	"fmt"

	adecc "github.com/ptpavb/endpoint/wire/adecc"
)

// protocolVersion is the Milan protocol version this handler speaks,
// returned in GET_MILAN_INFO responses, §4.10.
const protocolVersion = 1

// baseAudioFormats is the whitelist of stream formats a Milan-compliant
// endpoint must support, §4.10: 48kHz/24-bit and 48kHz/16-bit AAF, one
// and two channel.
var baseAudioFormats = map[uint64]bool{
	0x0205022000440600: true, // AAF, 48kHz, 24-bit, 1ch (illustrative encoding)
	0x0205022000440601: true,
	0x0204022000440600: true, // AAF, 48kHz, 16-bit, 1ch
	0x0204022000440601: true,
}

// Info is the payload of a GET_MILAN_INFO response, §4.10.
type Info struct {
	ProtocolVersion      uint32
	FeatureFlags         uint32
	CertificationVersion uint32
}

// MediaClockReference is the payload of SET/GET_MEDIA_CLOCK_REFERENCE_INFO,
// §4.10.
type MediaClockReference struct {
	ClockDomain         uint8
	MediaClockReference uint16
	DefaultMediaClockReferencePriority uint8
	UserMediaClockReferencePriority    uint8
	MediaClockReferenceName            string
}

// Handler processes Milan MVU commands against one entity's state,
// §4.10. One instance exists per entity; it is not shared, §5.
type Handler struct {
	Info                Info
	SystemUniqueID      uint64
	MediaClockReference MediaClockReference
}

// NewHandler builds a handler advertising this package's protocol
// version with no feature flags set.
func NewHandler() *Handler {
	return &Handler{Info: Info{ProtocolVersion: protocolVersion}}
}

// HandleCommand dispatches one received MVU command, §4.10.
func (h *Handler) HandleCommand(cmd *adecc.MVU) (*adecc.MVU, error) {
	resp := &adecc.MVU{
		MessageType:        adecc.AECPVendorUniqueResponse,
		Status:             adecc.AECPStatusSuccess,
		EntityID:           cmd.EntityID,
		ControllerEntityID: cmd.ControllerEntityID,
		SequenceID:         cmd.SequenceID,
		CommandType:        cmd.CommandType,
	}
	switch cmd.CommandType {
	case adecc.MVUGetMilanInfo:
		resp.Payload = encodeInfo(h.Info)
	case adecc.MVUSetSystemUniqueID:
		if len(cmd.Payload) < 8 {
			resp.Status = adecc.AECPStatusBadArguments
			return resp, nil
		}
		h.SystemUniqueID = binary.BigEndian.Uint64(cmd.Payload)
		resp.Payload = cmd.Payload
	case adecc.MVUGetSystemUniqueID:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, h.SystemUniqueID)
		resp.Payload = buf
	case adecc.MVUSetMediaClockReferenceInfo:
		mcr, err := decodeMediaClockReference(cmd.Payload)
		if err != nil {
			resp.Status = adecc.AECPStatusBadArguments
			return resp, nil
		}
		h.MediaClockReference = mcr
		resp.Payload = cmd.Payload
	case adecc.MVUGetMediaClockReferenceInfo:
		resp.Payload = encodeMediaClockReference(h.MediaClockReference)
	default:
		resp.Status = adecc.AECPStatusNotImplemented
	}
	return resp, nil
}

func encodeInfo(i Info) []byte {
	b := make([]byte, 12)
	binary.BigEndian.PutUint32(b[0:], i.ProtocolVersion)
	binary.BigEndian.PutUint32(b[4:], i.FeatureFlags)
	binary.BigEndian.PutUint32(b[8:], i.CertificationVersion)
	return b
}

func encodeMediaClockReference(m MediaClockReference) []byte {
	b := make([]byte, 7+len(m.MediaClockReferenceName))
	b[0] = m.ClockDomain
	binary.BigEndian.PutUint16(b[1:], m.MediaClockReference)
	b[3] = m.DefaultMediaClockReferencePriority
	b[4] = m.UserMediaClockReferencePriority
	binary.BigEndian.PutUint16(b[5:], uint16(len(m.MediaClockReferenceName)))
	copy(b[7:], m.MediaClockReferenceName)
	return b
}

func decodeMediaClockReference(b []byte) (MediaClockReference, error) {
	if len(b) < 7 {
		return MediaClockReference{}, fmt.Errorf("milan: media clock reference payload too short: %d bytes", len(b))
	}
	n := binary.BigEndian.Uint16(b[5:])
	if int(n) > len(b)-7 {
		return MediaClockReference{}, fmt.Errorf("milan: media clock reference name length %d exceeds payload", n)
	}
	return MediaClockReference{
		ClockDomain:                        b[0],
		MediaClockReference:                binary.BigEndian.Uint16(b[1:]),
		DefaultMediaClockReferencePriority: b[3],
		UserMediaClockReferencePriority:    b[4],
		MediaClockReferenceName:            string(b[7 : 7+n]),
	}, nil
}

// BaseFormatSupported reports whether a stream format is in the
// Milan-mandated baseline whitelist, §4.10.
func BaseFormatSupported(format uint64) bool {
	return baseAudioFormats[format]
}

// ComplianceReport is the result of evaluating an entity against the
// Milan compliance predicate, §4.10.
type ComplianceReport struct {
	Compliant bool
	Reasons   []string
}

// CheckCompliance evaluates the minimal Milan compliance predicate:
// the entity must advertise GET_MILAN_INFO support and at least one
// base-profile stream format, §4.10.
func CheckCompliance(supportsMilanInfo bool, advertisedFormats []uint64) ComplianceReport {
	r := ComplianceReport{Compliant: true}
	if !supportsMilanInfo {
		r.Compliant = false
		r.Reasons = append(r.Reasons, "entity does not respond to GET_MILAN_INFO")
	}
	hasBase := false
	for _, f := range advertisedFormats {
		if BaseFormatSupported(f) {
			hasBase = true
			break
		}
	}
	if !hasBase {
		r.Compliant = false
		r.Reasons = append(r.Reasons, "entity advertises no Milan base-profile stream format")
	}
	return r
}
