// Package wasmvm implements the WASM host environment of §4.6: a
// short-lived instance per contract invocation, a compiled-module LRU
// cache, Region-based memory marshalling at the guest boundary, the host
// import table, read-only enforcement, and query-depth limiting.
//
// Grounded on the teacher's core/virtual_machine.go HeavyVM/registerHost
// (the wasmer-go v1.0.4 API idiom: wasmer.NewFunction/NewFunctionType/
// NewValueTypes, imports.Register("env", ...), instance.Exports.GetMemory),
// generalized from its four toy opcodes to the full §4.6 import table, and
// on original_source crates/vm-wasm/src/imports.rs /
// crates/sdk/src/wasm/imports.rs for the exact import names and Region
// wire shape.
package wasmvm

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"
)

// MaxRegionLength caps a single Region's claimed length, bounding
// denial-of-service by an enormous allocation request (§4.6 "Memory
// safety at the boundary").
const MaxRegionLength = 16 * 1024 * 1024

var (
	ErrRegionOutOfBounds = errors.New("wasmvm: region offset/length out of guest memory bounds")
	ErrRegionTooLarge    = errors.New("wasmvm: region length exceeds the maximum single allocation size")
	ErrRegionCorrupt     = errors.New("wasmvm: region capacity is smaller than its claimed length")
)

// Region is the wire shape of a guest-owned memory descriptor (§4.6 step
// 3): {offset: u32, capacity: u32, length: u32}, always referenced by its
// own guest pointer rather than passed by value across the import
// boundary.
type Region struct {
	Offset   uint32
	Capacity uint32
	Length   uint32
}

const regionStructSize = 12

// readRegion decodes the 12-byte Region struct living at ptr in guest
// memory, validating it before any data read (§4.6 "Region records are
// always validated for length <= capacity and for in-bounds offsets
// before any read").
func readRegion(mem *wasmer.Memory, ptr uint32) (Region, error) {
	data := mem.Data()
	if int(ptr)+regionStructSize > len(data) {
		return Region{}, fmt.Errorf("%w: region descriptor at %d", ErrRegionOutOfBounds, ptr)
	}
	r := Region{
		Offset:   binary.LittleEndian.Uint32(data[ptr : ptr+4]),
		Capacity: binary.LittleEndian.Uint32(data[ptr+4 : ptr+8]),
		Length:   binary.LittleEndian.Uint32(data[ptr+8 : ptr+12]),
	}
	if err := r.validate(len(data)); err != nil {
		return Region{}, err
	}
	return r, nil
}

// writeRegionLength updates the length field of the Region descriptor at ptr
// after the host has written data into the guest-allocated buffer it
// describes.
func writeRegionLength(mem *wasmer.Memory, ptr uint32, length uint32) error {
	data := mem.Data()
	if int(ptr)+regionStructSize > len(data) {
		return fmt.Errorf("%w: region descriptor at %d", ErrRegionOutOfBounds, ptr)
	}
	binary.LittleEndian.PutUint32(data[ptr+8:ptr+12], length)
	return nil
}

func (r Region) validate(memLen int) error {
	if r.Length > r.Capacity {
		return ErrRegionCorrupt
	}
	if r.Capacity > MaxRegionLength {
		return ErrRegionTooLarge
	}
	end := uint64(r.Offset) + uint64(r.Length)
	if end > uint64(memLen) {
		return fmt.Errorf("%w: [%d, %d) in a %d-byte memory", ErrRegionOutOfBounds, r.Offset, end, memLen)
	}
	return nil
}

// readRegionBytes reads the Region at ptr and returns a copy of the bytes
// it describes.
func readRegionBytes(mem *wasmer.Memory, ptr uint32) ([]byte, error) {
	r, err := readRegion(mem, ptr)
	if err != nil {
		return nil, err
	}
	data := mem.Data()
	out := make([]byte, r.Length)
	copy(out, data[r.Offset:r.Offset+r.Length])
	return out, nil
}

// writeIntoRegion writes payload into the guest buffer described by the
// Region at ptr, failing if payload doesn't fit in the buffer's declared
// capacity, then updates the Region's length field.
func writeIntoRegion(mem *wasmer.Memory, ptr uint32, payload []byte) error {
	r, err := readRegion(mem, ptr)
	if err != nil {
		return err
	}
	if uint32(len(payload)) > r.Capacity {
		return fmt.Errorf("wasmvm: payload of %d bytes exceeds region capacity %d", len(payload), r.Capacity)
	}
	data := mem.Data()
	copy(data[r.Offset:r.Offset+uint32(len(payload))], payload)
	return writeRegionLength(mem, ptr, uint32(len(payload)))
}
