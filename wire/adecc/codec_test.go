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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestADPRoundTrip(t *testing.T) {
	p := &ADP{
		MessageType:       ADPEntityAvailable,
		ValidTime:         10,
		EntityID:          0x001B92FFFE000001,
		EntityModelID:     0x001B92FFFE000002,
		EntityCapabilities: 0x00000008,
		GPTPGrandmasterID: 0x001B92FFFE000003,
		GPTPDomainNumber:  0,
		AvailableIndex:    7,
	}
	b, err := p.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, SubtypeADP, b[0])

	var got ADP
	require.NoError(t, got.UnmarshalBinary(b))
	require.Equal(t, p.MessageType, got.MessageType)
	require.Equal(t, p.ValidTime, got.ValidTime)
	require.Equal(t, p.EntityID, got.EntityID)
	require.Equal(t, p.EntityModelID, got.EntityModelID)
	require.Equal(t, p.GPTPGrandmasterID, got.GPTPGrandmasterID)
	require.Equal(t, p.AvailableIndex, got.AvailableIndex)

	decoded, err := Decode(b)
	require.NoError(t, err)
	_, ok := decoded.(*ADP)
	require.True(t, ok)
}

func TestAEMRoundTrip(t *testing.T) {
	f := &AEM{
		MessageType:        AECPAEMCommand,
		EntityID:           0x001B92FFFE000001,
		ControllerEntityID: 0x001B92FFFE0000AA,
		SequenceID:         42,
		CommandType:        AEMAcquireEntity,
		Payload:            []byte{0, 0, 0, 0, 0, 0},
	}
	b, err := f.MarshalBinary()
	require.NoError(t, err)

	var got AEM
	require.NoError(t, got.UnmarshalBinary(b))
	require.Equal(t, f.CommandType, got.CommandType)
	require.Equal(t, f.ControllerEntityID, got.ControllerEntityID)
	require.Equal(t, f.SequenceID, got.SequenceID)
	require.Equal(t, f.Payload, got.Payload)

	decoded, err := Decode(b)
	require.NoError(t, err)
	_, ok := decoded.(*AEM)
	require.True(t, ok)
}

func TestAEMResponseSetsUBit(t *testing.T) {
	f := &AEM{MessageType: AECPAEMResponse, CommandType: AEMReadDescriptor, Status: AECPStatusSuccess}
	b, err := f.MarshalBinary()
	require.NoError(t, err)
	require.NotZero(t, b[adeccHeaderSize+10]&0x80) // top bit of command_type on the wire
	var got AEM
	require.NoError(t, got.UnmarshalBinary(b))
	require.Equal(t, AEMReadDescriptor, got.CommandType)
	require.Equal(t, AECPStatusSuccess, got.Status)
}

func TestMVURoundTrip(t *testing.T) {
	f := &MVU{
		MessageType:        AECPVendorUniqueCommand,
		EntityID:           0x001B92FFFE000001,
		ControllerEntityID: 0x001B92FFFE0000AA,
		SequenceID:         1,
		CommandType:        MVUGetMilanInfo,
	}
	b, err := f.MarshalBinary()
	require.NoError(t, err)

	var got MVU
	require.NoError(t, got.UnmarshalBinary(b))
	require.Equal(t, f.CommandType, got.CommandType)
	require.Equal(t, f.ControllerEntityID, got.ControllerEntityID)

	decoded, err := Decode(b)
	require.NoError(t, err)
	_, ok := decoded.(*MVU)
	require.True(t, ok)
}

func TestMVURejectsBadProtocolID(t *testing.T) {
	f := &MVU{MessageType: AECPVendorUniqueCommand, CommandType: MVUGetMilanInfo}
	b, err := f.MarshalBinary()
	require.NoError(t, err)
	b[adeccHeaderSize+aecpHeaderSize] ^= 0xFF // corrupt protocol_id
	var got MVU
	require.Error(t, got.UnmarshalBinary(b))
}

func TestACMPRoundTrip(t *testing.T) {
	m := &ACMP{
		MessageType:        ACMPConnectRXCommand,
		StreamID:           0x001B92FFFE000001,
		ControllerEntityID: 0x001B92FFFE0000AA,
		TalkerEntityID:     0x001B92FFFE0000BB,
		ListenerEntityID:   0x001B92FFFE0000CC,
		TalkerUniqueID:     0,
		ListenerUniqueID:   0,
		DestMAC:            [6]byte{0x91, 0xE0, 0xF0, 0x01, 0x00, 0x00},
		SequenceID:         5,
	}
	b, err := m.MarshalBinary()
	require.NoError(t, err)

	var got ACMP
	require.NoError(t, got.UnmarshalBinary(b))
	require.Equal(t, m.StreamID, got.StreamID)
	require.Equal(t, m.TalkerEntityID, got.TalkerEntityID)
	require.Equal(t, m.ListenerEntityID, got.ListenerEntityID)
	require.Equal(t, m.DestMAC, got.DestMAC)
	require.False(t, m.IsResponse())

	decoded, err := Decode(b)
	require.NoError(t, err)
	_, ok := decoded.(*ACMP)
	require.True(t, ok)
}

func TestACMPResponseIsOdd(t *testing.T) {
	m := &ACMP{MessageType: ACMPConnectRXResponse, Status: ACMPStatusSuccess}
	require.True(t, m.IsResponse())
}

func TestDecodeUnknownSubtype(t *testing.T) {
	_, err := Decode([]byte{0x01, 0x02})
	require.Error(t, err)
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode([]byte{})
	require.Error(t, err)
}
