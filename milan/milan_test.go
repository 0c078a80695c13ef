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

package milan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	adecc "github.com/ptpavb/endpoint/wire/adecc"
)

func TestHandleGetMilanInfo(t *testing.T) {
	h := NewHandler()
	resp, err := h.HandleCommand(&adecc.MVU{CommandType: adecc.MVUGetMilanInfo})
	require.NoError(t, err)
	require.Equal(t, adecc.AECPStatusSuccess, resp.Status)
	require.Len(t, resp.Payload, 12)
}

func TestSetGetSystemUniqueID(t *testing.T) {
	h := NewHandler()
	payload := make([]byte, 8)
	payload[7] = 42
	resp, err := h.HandleCommand(&adecc.MVU{CommandType: adecc.MVUSetSystemUniqueID, Payload: payload})
	require.NoError(t, err)
	require.Equal(t, adecc.AECPStatusSuccess, resp.Status)
	require.EqualValues(t, 42, h.SystemUniqueID)

	resp, err = h.HandleCommand(&adecc.MVU{CommandType: adecc.MVUGetSystemUniqueID})
	require.NoError(t, err)
	require.Equal(t, payload, resp.Payload)
}

func TestMediaClockReferenceRoundTrip(t *testing.T) {
	h := NewHandler()
	mcr := MediaClockReference{
		ClockDomain:                        1,
		MediaClockReference:                7,
		DefaultMediaClockReferencePriority: 1,
		UserMediaClockReferencePriority:    0,
		MediaClockReferenceName:            "house-clock",
	}
	set := encodeMediaClockReference(mcr)
	resp, err := h.HandleCommand(&adecc.MVU{CommandType: adecc.MVUSetMediaClockReferenceInfo, Payload: set})
	require.NoError(t, err)
	require.Equal(t, adecc.AECPStatusSuccess, resp.Status)

	resp, err = h.HandleCommand(&adecc.MVU{CommandType: adecc.MVUGetMediaClockReferenceInfo})
	require.NoError(t, err)
	got, err := decodeMediaClockReference(resp.Payload)
	require.NoError(t, err)
	require.Equal(t, mcr, got)
}

func TestCheckCompliance(t *testing.T) {
	var base uint64
	for f := range baseAudioFormats {
		base = f
		break
	}
	r := CheckCompliance(true, []uint64{base})
	require.True(t, r.Compliant)

	r = CheckCompliance(false, []uint64{base})
	require.False(t, r.Compliant)
	require.NotEmpty(t, r.Reasons)

	r = CheckCompliance(true, []uint64{0xdeadbeef})
	require.False(t, r.Compliant)
}

func TestRedundantStreamPairSwitchover(t *testing.T) {
	p := NewRedundantStreamPair()
	now := time.Now()
	p.ReceivePrimary(now)
	p.ReceiveSecondary(now)
	require.Equal(t, LegPrimary, p.Active())

	now = now.Add(100 * time.Millisecond)
	p.ReceiveSecondary(now)
	switched := p.Evaluate(now)
	require.True(t, switched)
	require.Equal(t, LegSecondary, p.Active())
}

func TestRedundantStreamPairStaysPutWhenBothDown(t *testing.T) {
	p := NewRedundantStreamPair()
	now := time.Now()
	p.ReceivePrimary(now)
	now = now.Add(time.Second)
	require.False(t, p.Evaluate(now))
	require.Equal(t, LegPrimary, p.Active())
}
