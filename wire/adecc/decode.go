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

import "github.com/ptpavb/endpoint/wire/wireerr"

// Decode dispatches an ADECC PDU by its leading subtype byte. AECP
// frames are further split into the AEM and MVU vendor-unique envelope
// by inspecting message_type.
func Decode(b []byte) (any, error) {
	if len(b) < 1 {
		return nil, wireerr.New(wireerr.Truncated, "need 1 byte to probe ADECC subtype, got 0")
	}
	switch b[0] {
	case SubtypeADP:
		var p ADP
		if err := p.UnmarshalBinary(b); err != nil {
			return nil, err
		}
		return &p, nil
	case SubtypeAECP:
		if len(b) < 2 {
			return nil, wireerr.New(wireerr.Truncated, "need 2 bytes to probe AECP message_type, got %d", len(b))
		}
		mt := AECPMessageType(b[1] & 0x0F)
		if mt == AECPVendorUniqueCommand || mt == AECPVendorUniqueResponse {
			var v MVU
			if err := v.UnmarshalBinary(b); err != nil {
				return nil, err
			}
			return &v, nil
		}
		var a AEM
		if err := a.UnmarshalBinary(b); err != nil {
			return nil, err
		}
		return &a, nil
	case SubtypeACMP:
		var m ACMP
		if err := m.UnmarshalBinary(b); err != nil {
			return nil, err
		}
		return &m, nil
	default:
		return nil, wireerr.New(wireerr.UnknownSubtype, "unknown ADECC subtype 0x%x", b[0])
	}
}
