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
	"testing"

	"github.com/stretchr/testify/require"
)

func testPortIdentity() PortIdentity {
	return PortIdentity{PortNumber: 1, ClockIdentity: 36138748164966842}
}

func TestAnnounceRoundTrip(t *testing.T) {
	a := &Announce{
		Header: Header{
			SdoIDAndMsgType:    NewSdoIDAndMsgType(MessageAnnounce, 0),
			Version:            Version,
			MessageLength:      HeaderSize + announceBodySize,
			SourcePortIdentity: testPortIdentity(),
			SequenceID:         42,
			LogMessageInterval: 0,
		},
		OriginTimestamp:      NewTimestamp(Timestamp{}.Time()),
		GrandmasterPriority1: 128,
		GrandmasterClockQuality: ClockQuality{
			ClockClass:              ClockClass6,
			ClockAccuracy:           ClockAccuracyNanosecond100,
			OffsetScaledLogVariance: 0x4000,
		},
		GrandmasterPriority2: 128,
		GrandmasterIdentity:  0x001122fffe334455,
		StepsRemoved:         1,
		TimeSource:           TimeSourceGNSS,
	}
	b, err := a.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, int(a.MessageLength)) // encoded length matches the header's messageLength

	var got Announce
	require.NoError(t, got.UnmarshalBinary(b))
	require.Equal(t, a.GrandmasterIdentity, got.GrandmasterIdentity)
	require.Equal(t, a.GrandmasterClockQuality, got.GrandmasterClockQuality)
	require.Equal(t, a.StepsRemoved, got.StepsRemoved)
	require.Equal(t, a.TimeSource, got.TimeSource)

	decoded, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, MessageAnnounce, decoded.MessageType())
}

func TestAnnounceWithPathTraceTLVRoundTrip(t *testing.T) {
	a := &Announce{
		Header: Header{
			SdoIDAndMsgType:    NewSdoIDAndMsgType(MessageAnnounce, 0),
			Version:            Version,
			SourcePortIdentity: testPortIdentity(),
		},
		GrandmasterIdentity: 7,
		TLVs: []TLV{
			&PathTraceTLV{PathSequence: []ClockIdentity{1, 2, 3}},
		},
	}
	a.MessageLength = HeaderSize + announceBodySize + uint16(tlvBudget(a.TLVs))
	b, err := a.MarshalBinary()
	require.NoError(t, err)

	var got Announce
	require.NoError(t, got.UnmarshalBinary(b))
	require.Len(t, got.TLVs, 1)
	pt, ok := got.TLVs[0].(*PathTraceTLV)
	require.True(t, ok)
	require.Equal(t, []ClockIdentity{1, 2, 3}, pt.PathSequence)
}

func TestSyncFollowUpRoundTrip(t *testing.T) {
	ts := Timestamp{Seconds: NewPTPSeconds(1000), Nanoseconds: 123456789}
	s := &Sync{
		Header:               Header{SdoIDAndMsgType: NewSdoIDAndMsgType(MessageSync, 0), Version: Version, SourcePortIdentity: testPortIdentity(), SequenceID: 7},
		originTimestampBody:  originTimestampBody{OriginTimestamp: ts},
	}
	b, err := s.MarshalBinary()
	require.NoError(t, err)
	var got Sync
	require.NoError(t, got.UnmarshalBinary(b))
	require.Equal(t, ts, got.OriginTimestamp)

	f := &FollowUp{
		Header:                 Header{SdoIDAndMsgType: NewSdoIDAndMsgType(MessageFollowUp, 0), Version: Version, SourcePortIdentity: testPortIdentity(), SequenceID: 7},
		PreciseOriginTimestamp: ts,
	}
	fb, err := f.MarshalBinary()
	require.NoError(t, err)
	var gotF FollowUp
	require.NoError(t, gotF.UnmarshalBinary(fb))
	require.Equal(t, ts, gotF.PreciseOriginTimestamp)
}

func TestPDelaySequenceRoundTrip(t *testing.T) {
	req := &PDelayReq{Header: Header{SdoIDAndMsgType: NewSdoIDAndMsgType(MessagePDelayReq, 0), Version: Version, SourcePortIdentity: testPortIdentity()}}
	rb, err := req.MarshalBinary()
	require.NoError(t, err)
	var gotReq PDelayReq
	require.NoError(t, gotReq.UnmarshalBinary(rb))

	resp := &PDelayResp{
		Header:                  Header{SdoIDAndMsgType: NewSdoIDAndMsgType(MessagePDelayResp, 0), Version: Version, SourcePortIdentity: testPortIdentity()},
		RequestReceiptTimestamp: Timestamp{Nanoseconds: 10050},
		RequestingPortIdentity:  testPortIdentity(),
	}
	respB, err := resp.MarshalBinary()
	require.NoError(t, err)
	var gotResp PDelayResp
	require.NoError(t, gotResp.UnmarshalBinary(respB))
	require.Equal(t, resp.RequestReceiptTimestamp, gotResp.RequestReceiptTimestamp)

	fu := &PDelayRespFollowUp{
		Header:                  Header{SdoIDAndMsgType: NewSdoIDAndMsgType(MessagePDelayRespFollowUp, 0), Version: Version, SourcePortIdentity: testPortIdentity()},
		ResponseOriginTimestamp: Timestamp{Nanoseconds: 10100},
		RequestingPortIdentity:  testPortIdentity(),
	}
	fub, err := fu.MarshalBinary()
	require.NoError(t, err)
	var gotFu PDelayRespFollowUp
	require.NoError(t, gotFu.UnmarshalBinary(fub))
	require.Equal(t, fu.ResponseOriginTimestamp, gotFu.ResponseOriginTimestamp)
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode([]byte{})
	require.Error(t, err)
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	b := make([]byte, HeaderSize+announceBodySize)
	b[0] = byte(NewSdoIDAndMsgType(MessageAnnounce, 0))
	b[1] = 0x01 // major version 1, not 2
	_, err := Decode(b)
	require.Error(t, err)
}

func TestDecodeUnknownSubtype(t *testing.T) {
	b := make([]byte, HeaderSize)
	b[0] = byte(NewSdoIDAndMsgType(0xF, 0)) // reserved message type, no decoder registered
	b[1] = Version
	_, err := Decode(b)
	require.Error(t, err)
}

func TestNanosecondsRolloverBoundary(t *testing.T) {
	ts := Timestamp{Seconds: NewPTPSeconds(10), Nanoseconds: 999999999}
	require.False(t, ts.Empty())
	// adding 1ns should roll seconds +1; exercised at the gptp servo layer,
	// here we just confirm the boundary value round-trips exactly on the wire.
	a := &Announce{Header: Header{SdoIDAndMsgType: NewSdoIDAndMsgType(MessageAnnounce, 0), Version: Version}, OriginTimestamp: ts}
	b, err := a.MarshalBinary()
	require.NoError(t, err)
	var got Announce
	require.NoError(t, got.UnmarshalBinary(b))
	require.Equal(t, uint32(999999999), got.OriginTimestamp.Nanoseconds)
}
