// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package upload

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/airis/device"
)

var (
	// ErrIndexOutOfRange is returned by Write for an index outside the buffer.
	ErrIndexOutOfRange = errors.New("upload: index out of range")

	// ErrClosed is returned when using a closed Buffer.
	ErrClosed = errors.New("upload: buffer closed")

	// ErrInFlight is returned by Write when the device reports that queued
	// GPU work still reads the buffer.
	ErrInFlight = errors.New("upload: buffer in use by the GPU")

	// ErrNotFixedSize is returned for element types without a fixed binary
	// layout.
	ErrNotFixedSize = errors.New("upload: element type has no fixed size")
)

// Buffer is an array of T in upload-heap memory, mapped for its whole
// lifetime. Elements are encoded little-endian with encoding/binary, so T
// must be a fixed-size type (numbers, arrays and structs of those).
//
// A Buffer may be written at any time. Overwriting an element the GPU is
// still reading is a race; the frame ring prevents it by giving every
// in-flight frame its own buffers.
type Buffer[T any] struct {
	buf      device.Buffer
	mem      []byte
	stride   uint64
	elemSize int
	count    int
	inFlight device.InFlightReporter
	closed   bool
}

// NewBuffer creates a persistent upload buffer of count elements. When
// constant is true every element is padded to
// device.ConstantBufferAlignment so each can be bound as a constant buffer.
func NewBuffer[T any](dev device.Device, label string, count int, constant bool) (*Buffer[T], error) {
	if count <= 0 {
		return nil, fmt.Errorf("upload: buffer %s needs at least one element, got %d", label, count)
	}
	var zero T
	size := binary.Size(zero)
	if size <= 0 {
		return nil, fmt.Errorf("%w: %T", ErrNotFixedSize, zero)
	}
	stride := uint64(size)
	usage := gputypes.BufferUsageStorage
	if constant {
		stride = device.AlignConstant(stride)
		usage = gputypes.BufferUsageUniform
	}

	buf, err := dev.CreateBuffer(&device.BufferDesc{
		Label: label,
		Size:  stride * uint64(count),
		Heap:  device.HeapUpload,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("upload: create %s: %w", label, err)
	}
	mem, err := buf.Map()
	if err != nil {
		buf.Release()
		return nil, fmt.Errorf("upload: map %s: %w", label, err)
	}
	b := &Buffer[T]{
		buf:      buf,
		mem:      mem,
		stride:   stride,
		elemSize: size,
		count:    count,
	}
	if r, ok := dev.(device.InFlightReporter); ok {
		b.inFlight = r
	}
	return b, nil
}

// Write copies v into element i.
func (b *Buffer[T]) Write(i int, v T) error {
	if b.closed {
		return ErrClosed
	}
	if i < 0 || i >= b.count {
		return fmt.Errorf("%w: %d not in [0,%d) of %s", ErrIndexOutOfRange, i, b.count, b.buf.Label())
	}
	if b.inFlight != nil && b.inFlight.InFlight(b.buf) {
		return fmt.Errorf("%w: %s", ErrInFlight, b.buf.Label())
	}
	off := uint64(i) * b.stride
	if _, err := binary.Encode(b.mem[off:off+uint64(b.elemSize)], binary.LittleEndian, v); err != nil {
		return fmt.Errorf("upload: encode %s[%d]: %w", b.buf.Label(), i, err)
	}
	return nil
}

// Resource returns the underlying GPU buffer.
func (b *Buffer[T]) Resource() device.Buffer { return b.buf }

// Stride returns the distance in bytes between elements.
func (b *Buffer[T]) Stride() uint64 { return b.stride }

// ElementSize returns the encoded size of T.
func (b *Buffer[T]) ElementSize() int { return b.elemSize }

// Len returns the element count.
func (b *Buffer[T]) Len() int { return b.count }

// Binding returns a constant binding of element i.
func (b *Buffer[T]) Binding(i int) device.Binding {
	return device.UniformBinding(b.buf, uint64(i)*b.stride, b.stride)
}

// Close unmaps and releases the buffer. Later writes fail with ErrClosed.
func (b *Buffer[T]) Close() {
	if b.closed {
		return
	}
	b.closed = true
	b.buf.Unmap()
	b.mem = nil
	b.buf.Release()
}
