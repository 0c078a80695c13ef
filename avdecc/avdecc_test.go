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

package avdecc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	adecc "github.com/ptpavb/endpoint/wire/adecc"
)

func TestDiscoveryTableArrivalAndExpiry(t *testing.T) {
	var arrived, departed int
	now := time.Now()
	table := NewDiscoveryTable(func(*DiscoveredEntity) { arrived++ }, func(adecc.EntityID) { departed++ })
	table.now = func() time.Time { return now }

	p := &adecc.ADP{MessageType: adecc.ADPEntityAvailable, EntityID: 0x1, ValidTime: 1}
	table.ReceiveADP(p)
	require.Equal(t, 1, arrived)
	require.Equal(t, 1, table.Len())

	now = now.Add(10 * time.Second)
	table.Expire()
	require.Equal(t, 1, departed)
	require.Equal(t, 0, table.Len())
}

func TestDiscoveryTableDeparting(t *testing.T) {
	table := NewDiscoveryTable(nil, nil)
	table.ReceiveADP(&adecc.ADP{MessageType: adecc.ADPEntityAvailable, EntityID: 0x2, ValidTime: 10})
	require.Equal(t, 1, table.Len())
	table.ReceiveADP(&adecc.ADP{MessageType: adecc.ADPEntityDeparting, EntityID: 0x2})
	require.Equal(t, 0, table.Len())
}

func TestEntityChecksumStableAndSensitive(t *testing.T) {
	d := &EntityDescriptor{
		EntityID:      0xAABBCCDD,
		EntityModelID: 1,
		EntityName:    "endpoint-1",
		Configurations: []ConfigurationDescriptor{{
			ObjectName: "default",
			StreamInputs: []StreamDescriptor{{Index: 0, ObjectName: "in0", CurrentFormat: 1}},
		}},
	}
	c1 := d.Checksum()
	c2 := d.Checksum()
	require.Equal(t, c1, c2)

	d.EntityName = "endpoint-2"
	require.NotEqual(t, c1, d.Checksum())
}

func TestEntityModelAcquireExclusion(t *testing.T) {
	m := NewEntityModel(&EntityDescriptor{EntityID: 0x1})
	cmdA := &adecc.AEM{CommandType: adecc.AEMAcquireEntity, ControllerEntityID: 0xA}
	resp := m.HandleCommand(cmdA)
	require.Equal(t, adecc.AECPStatusSuccess, resp.Status)

	cmdB := &adecc.AEM{CommandType: adecc.AEMAcquireEntity, ControllerEntityID: 0xB}
	resp = m.HandleCommand(cmdB)
	require.Equal(t, adecc.AECPStatusEntityAcquired, resp.Status)

	release := &adecc.AEM{CommandType: adecc.AEMAcquireEntity, ControllerEntityID: 0xA, Payload: []byte{acquireReleaseFlag}}
	resp = m.HandleCommand(release)
	require.Equal(t, adecc.AECPStatusSuccess, resp.Status)

	resp = m.HandleCommand(cmdB)
	require.Equal(t, adecc.AECPStatusSuccess, resp.Status)
}

func TestControllerRetryAndFailure(t *testing.T) {
	c := NewController()
	now := time.Now()
	c.now = func() time.Time { return now }
	cmd := c.Send(&adecc.AEM{EntityID: 0x1, CommandType: adecc.AEMAcquireEntity})

	now = now.Add(300 * time.Millisecond)
	retry, failed := c.RetryDue(now)
	require.Len(t, retry, 1)
	require.Empty(t, failed)
	require.Equal(t, cmd.SequenceID, retry[0].SequenceID)

	for i := 0; i < aecpMaxRetries; i++ {
		now = now.Add(time.Hour)
		retry, failed = c.RetryDue(now)
	}
	require.Empty(t, retry)
	require.Len(t, failed, 1)
	require.Equal(t, 0, c.Pending())
}

func TestNineWayConnectHandshake(t *testing.T) {
	talkerState := NewTalkerState()
	talkerState.StreamID[0] = 0x1234
	talkerState.DestMAC[0] = [6]byte{1, 2, 3, 4, 5, 6}
	listenerState := NewListenerState()

	ctrl := NewConnectionController()
	var talkerID, listenerID adecc.EntityID = 0xA1, 0xB2
	txCmd := ctrl.Connect(talkerID, listenerID, 0, 0)
	txResp := talkerState.HandleConnect(txCmd)
	require.Equal(t, adecc.ACMPStatusSuccess, txResp.Status)

	rxCmd, err := ctrl.ReceiveTalkerResponse(txResp)
	require.NoError(t, err)
	require.Equal(t, uint64(0x1234), rxCmd.StreamID)

	rxResp := listenerState.HandleConnect(rxCmd)
	require.Equal(t, adecc.ACMPStatusSuccess, rxResp.Status)

	err = ctrl.ReceiveListenerResponse(rxResp)
	require.NoError(t, err)

	conn, ok := listenerState.Get(0)
	require.True(t, ok)
	require.True(t, conn.Connected)
	require.Equal(t, uint64(0x1234), conn.StreamID)
}
