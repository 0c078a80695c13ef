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
	"encoding/binary"
	"fmt"
	"hash/crc32"

	adecc "github.com/ptpavb/endpoint/wire/adecc"
)

// DescriptorType identifies a node kind in the entity model tree,
// IEEE 1722.1 Table 7.1.
type DescriptorType uint16

// Descriptor types this model implements, §4.8.
const (
	DescriptorEntity        DescriptorType = 0x0000
	DescriptorConfiguration DescriptorType = 0x0001
	DescriptorAudioUnit     DescriptorType = 0x0002
	DescriptorStreamInput   DescriptorType = 0x0005
	DescriptorStreamOutput  DescriptorType = 0x0006
)

// StreamDescriptor describes one talker or listener stream source or
// sink, §4.8.
type StreamDescriptor struct {
	Index          uint16
	ObjectName     string
	CurrentFormat  uint64
	Formats        []uint64
}

// ConfigurationDescriptor groups the stream descriptors active under
// one entity configuration, §4.8. An EntityDescriptor holds a list of
// them and selects the active one through CurrentConfiguration; Milan
// endpoints conventionally expose exactly one.
type ConfigurationDescriptor struct {
	ObjectName     string
	StreamInputs   []StreamDescriptor
	StreamOutputs  []StreamDescriptor
}

// EntityDescriptor is the root of the descriptor tree advertised by
// ADP, §4.8. EntityModel.HandleCommand answers AECP READ_DESCRIPTOR
// with NOT_IMPLEMENTED; descriptors are resolved locally through
// ReadDescriptor.
type EntityDescriptor struct {
	EntityID           adecc.EntityID
	EntityModelID      uint64
	EntityName         string
	FirmwareVersion    string
	SerialNumber       string
	Configurations     []ConfigurationDescriptor
	CurrentConfiguration uint16
}

// Checksum computes the AEM checksum over the descriptor's canonical
// serialization, §4.8/invariant 7: CRC-32 (IEEE 802.3 polynomial) of
// the bytes built by canonicalBytes, which contain no checksum field.
func (d *EntityDescriptor) Checksum() uint32 {
	return crc32.ChecksumIEEE(d.canonicalBytes())
}

// canonicalBytes serializes the fields that feed into the AEM
// checksum: entity_id, entity_model_id, names and the stream index
// tables, in a fixed field order so the checksum is deterministic
// regardless of map iteration order elsewhere in the model.
func (d *EntityDescriptor) canonicalBytes() []byte {
	b := make([]byte, 0, 64)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(d.EntityID))
	b = append(b, buf[:]...)
	binary.BigEndian.PutUint64(buf[:], d.EntityModelID)
	b = append(b, buf[:]...)
	b = append(b, []byte(d.EntityName)...)
	b = append(b, []byte(d.FirmwareVersion)...)
	b = append(b, []byte(d.SerialNumber)...)
	for _, cfg := range d.Configurations {
		b = append(b, []byte(cfg.ObjectName)...)
		for _, s := range cfg.StreamInputs {
			b = appendStream(b, s)
		}
		for _, s := range cfg.StreamOutputs {
			b = appendStream(b, s)
		}
	}
	return b
}

func appendStream(b []byte, s StreamDescriptor) []byte {
	var idx [2]byte
	binary.BigEndian.PutUint16(idx[:], s.Index)
	b = append(b, idx[:]...)
	b = append(b, []byte(s.ObjectName)...)
	var fmtBuf [8]byte
	binary.BigEndian.PutUint64(fmtBuf[:], s.CurrentFormat)
	return append(b, fmtBuf[:]...)
}

// ReadDescriptor resolves one (descriptor_type, descriptor_index) pair
// against the current configuration, the lookup behind AEM's
// READ_DESCRIPTOR command, §4.8/§4.9. It is not called from AECP
// command handling.
func (d *EntityDescriptor) ReadDescriptor(descType DescriptorType, index uint16) (any, error) {
	switch descType {
	case DescriptorEntity:
		return d, nil
	case DescriptorConfiguration:
		if int(index) >= len(d.Configurations) {
			return nil, fmt.Errorf("avdecc: configuration index %d out of range", index)
		}
		return &d.Configurations[index], nil
	case DescriptorStreamInput:
		cfg := d.activeConfiguration()
		if cfg == nil || int(index) >= len(cfg.StreamInputs) {
			return nil, fmt.Errorf("avdecc: stream input index %d out of range", index)
		}
		return &cfg.StreamInputs[index], nil
	case DescriptorStreamOutput:
		cfg := d.activeConfiguration()
		if cfg == nil || int(index) >= len(cfg.StreamOutputs) {
			return nil, fmt.Errorf("avdecc: stream output index %d out of range", index)
		}
		return &cfg.StreamOutputs[index], nil
	default:
		return nil, fmt.Errorf("avdecc: unsupported descriptor_type 0x%04x", descType)
	}
}

func (d *EntityDescriptor) activeConfiguration() *ConfigurationDescriptor {
	if int(d.CurrentConfiguration) >= len(d.Configurations) {
		return nil
	}
	return &d.Configurations[d.CurrentConfiguration]
}
