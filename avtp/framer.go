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

// Package avtp is the stream-level framer built on top of wire/avtp's
// packet codec: per-stream sequence numbering, presentation-time
// stamping off the gPTP-disciplined clock, and loss detection on
// receive, §4.7.
package avtp

import (
	"fmt"

	wire "github.com/ptpavb/endpoint/wire/avtp"
)

// StreamConfig describes one AAF talker/listener stream's fixed
// parameters, set at stream-reservation time and constant for the
// stream's lifetime, §4.7.
type StreamConfig struct {
	StreamID        uint64
	Format          wire.Format
	SampleRate      wire.NominalSampleRate
	Channels        uint8
	BitDepth        uint8
	SamplesPerFrame int
	MTU             int
}

// bytesPerFrame returns the payload size one AAF packet must carry
// for this stream, per §4.7's channels*samples_per_frame*(bit_depth/8)
// invariant.
func (c StreamConfig) bytesPerFrame() int {
	return int(c.Channels) * c.SamplesPerFrame * int(c.BitDepth) / 8
}

// TalkerStream packetizes fixed-size sample blocks into AAF frames,
// owning the per-stream sequence_num counter, §4.7.
type TalkerStream struct {
	cfg        StreamConfig
	seq        uint8
	presentNS  func() uint32
}

// NewTalkerStream builds a talker-side framer. presentNS supplies the
// gPTP-synchronized presentation timestamp (truncated to the 32-bit
// avtp_timestamp field) for each frame.
func NewTalkerStream(cfg StreamConfig, presentNS func() uint32) *TalkerStream {
	return &TalkerStream{cfg: cfg, presentNS: presentNS}
}

// Frame packetizes one block of interleaved samples into an AAF
// packet, validating the §4.7 size and MTU invariants before
// returning it, and advances the sequence counter only on success.
func (s *TalkerStream) Frame(samples []byte, timestampValid bool) (*wire.AAF, error) {
	want := s.cfg.bytesPerFrame()
	if len(samples) != want {
		return nil, fmt.Errorf("avtp: stream %#x: expected %d sample bytes, got %d", s.cfg.StreamID, want, len(samples))
	}
	f := &wire.AAF{
		CommonHeader: wire.CommonHeader{
			Subtype:        wire.SubtypeAAF,
			StreamValid:    true,
			Version:        wire.Version,
			SequenceNum:    s.seq,
			TimestampValid: timestampValid,
			StreamID:       s.cfg.StreamID,
			AVTPTimestamp:  s.presentNS(),
		},
		Format:            s.cfg.Format,
		NominalSampleRate: s.cfg.SampleRate,
		Channels:          s.cfg.Channels,
		BitDepth:          s.cfg.BitDepth,
		StreamDataLength:  uint16(len(samples)),
		Payload:           samples,
	}
	if err := f.Validate(s.cfg.SamplesPerFrame, s.cfg.MTU); err != nil {
		return nil, err
	}
	s.seq++
	return f, nil
}

// ListenerStream reassembles a talker's AAF stream, tracking
// sequence_num continuity to detect loss, §4.7.
type ListenerStream struct {
	cfg      StreamConfig
	haveSeq  bool
	lastSeq  uint8
	received uint64
	lost     uint64
}

// NewListenerStream builds a listener-side framer for cfg.
func NewListenerStream(cfg StreamConfig) *ListenerStream {
	return &ListenerStream{cfg: cfg}
}

// Accept validates and reassembles one received AAF packet against
// this stream's configuration, reporting whether a sequence_num gap
// indicates lost frames since the previous call.
func (s *ListenerStream) Accept(b []byte) (f *wire.AAF, lostSinceLast int, err error) {
	f = &wire.AAF{}
	if err := f.UnmarshalBinary(b); err != nil {
		return nil, 0, err
	}
	if f.StreamID != s.cfg.StreamID {
		return nil, 0, fmt.Errorf("avtp: frame stream_id %#x does not match listener stream %#x", f.StreamID, s.cfg.StreamID)
	}
	if err := f.Validate(s.cfg.SamplesPerFrame, s.cfg.MTU); err != nil {
		return nil, 0, err
	}
	if s.haveSeq {
		lostSinceLast = int(f.SequenceNum-s.lastSeq) - 1
		if lostSinceLast < 0 {
			// repeated sequence_num; treat as zero loss (the uint8
			// subtraction already absorbs wrap-around)
			lostSinceLast = 0
		}
		s.lost += uint64(lostSinceLast)
	}
	s.lastSeq = f.SequenceNum
	s.haveSeq = true
	s.received++
	return f, lostSinceLast, nil
}

// Stats returns the running received/lost frame counters.
func (s *ListenerStream) Stats() (received, lost uint64) {
	return s.received, s.lost
}
