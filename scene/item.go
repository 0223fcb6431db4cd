// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scene

// Item is one drawable object. Every frame resource holds its own copy of
// the item's ObjectConstants, so a change has to be written once per frame
// resource before the item is clean again. Dirty counts the frame resources
// still holding stale constants.
type Item struct {
	Name string

	// Index is the item's element in the per-frame object constant buffer.
	Index int

	Model      Mat4
	IndexCount uint32

	Dirty int
}

// NewItem returns an item that is dirty in all ringSize frame resources.
func NewItem(name string, index int, model Mat4, indexCount uint32, ringSize int) *Item {
	return &Item{
		Name:       name,
		Index:      index,
		Model:      model,
		IndexCount: indexCount,
		Dirty:      ringSize,
	}
}

// MarkDirty flags the item for upload into every frame resource. ringSize
// must be the size the ring was created with.
func (it *Item) MarkDirty(ringSize int) { it.Dirty = ringSize }

// SetModel replaces the model matrix and marks the item dirty.
func (it *Item) SetModel(m Mat4, ringSize int) {
	it.Model = m
	it.MarkDirty(ringSize)
}

// Refresh writes the item's constants through write when it is dirty and
// decrements the counter. It reports whether anything was written.
func (it *Item) Refresh(write func(index int, c ObjectConstants) error) (bool, error) {
	if it.Dirty <= 0 {
		return false, nil
	}
	if err := write(it.Index, ObjectConstants{Model: it.Model}); err != nil {
		return false, err
	}
	it.Dirty--
	return true, nil
}
