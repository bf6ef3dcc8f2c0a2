package pika

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a batch item.
type Status int

const (
	StatusPending Status = iota
	StatusCompressing
	StatusDone
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusCompressing:
		return "compressing"
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	default:
		return "pending"
	}
}

// Item is one image in a Batch.
type Item struct {
	// ID is unique within the batch.
	ID string
	// Name is the source file name.
	Name string
	// OriginalSize is the source size in bytes.
	OriginalSize int64
	// Source is the acquired image.
	Source *Source
	// Status is the lifecycle state.
	Status Status
	// Progress is the last reported percentage, 0..100.
	Progress float64
	// Compressed is set once Status is StatusDone.
	Compressed *Result
	// Err is set once Status is StatusError.
	Err error
}

// ItemFunc is called after every change to an item. It receives a copy.
type ItemFunc func(Item)

// Batch is an ordered collection of images compressed one after another with
// shared settings.
type Batch struct {
	c *Compressor

	mu    sync.Mutex
	order []string
	items map[string]*Item
}

// NewBatch returns an empty batch driven by c.
func NewBatch(c *Compressor) *Batch {
	return &Batch{c: c, items: make(map[string]*Item)}
}

// Add appends sources to the batch and returns their ids in order.
func (b *Batch) Add(srcs ...*Source) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]string, 0, len(srcs))
	for _, src := range srcs {
		if src == nil {
			continue
		}
		id := uuid.NewString()
		b.items[id] = &Item{
			ID:           id,
			Name:         src.Name,
			OriginalSize: src.Size(),
			Source:       src,
		}
		b.order = append(b.order, id)
		ids = append(ids, id)
	}
	return ids
}

// Remove drops the item with the given id. It reports whether it existed.
func (b *Batch) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.items[id]; !ok {
		return false
	}
	delete(b.items, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear removes every item.
func (b *Batch) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.order = nil
	b.items = make(map[string]*Item)
}

// Len returns the number of items.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// Get returns a copy of the item with the given id.
func (b *Batch) Get(id string) (Item, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	it, ok := b.items[id]
	if !ok {
		return Item{}, false
	}
	return *it, true
}

// Items returns copies of all items in insertion order.
func (b *Batch) Items() []Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Item, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.items[id])
	}
	return out
}

// CompressedCount returns how many items finished successfully.
func (b *Batch) CompressedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, it := range b.items {
		if it.Status == StatusDone {
			n++
		}
	}
	return n
}

// BatchSummary aggregates a batch's outcome.
type BatchSummary struct {
	Total         int
	Succeeded     int
	Failed        int
	OriginalBytes int64
	OutputBytes   int64
}

// Summary computes aggregate statistics over the successfully compressed items.
func (b *Batch) Summary() BatchSummary {
	items := b.Items()
	s := BatchSummary{Total: len(items)}
	for _, it := range items {
		switch it.Status {
		case StatusDone:
			s.Succeeded++
			s.OriginalBytes += it.OriginalSize
			s.OutputBytes += it.Compressed.Size()
		case StatusError:
			s.Failed++
		}
	}
	return s
}

// String returns a human-readable batch summary.
func (s BatchSummary) String() string {
	return fmt.Sprintf(
		"Batch: %d/%d succeeded | %s → %s | Saved: %d%%",
		s.Succeeded, s.Total,
		FormatSize(s.OriginalBytes, 2), FormatSize(s.OutputBytes, 2),
		Savings(s.OriginalBytes, s.OutputBytes),
	)
}

// CompressAll compresses every item in order with the same settings, one at a
// time: the next item starts only after the previous one finished. Earlier
// results are discarded first, so running it again re-compresses everything.
//
// A failing item is marked StatusError and the batch moves on. When ctx is
// cancelled between items, the remaining items stay pending and ctx.Err() is
// returned.
func (b *Batch) CompressAll(ctx context.Context, s Settings, onUpdate ItemFunc) error {
	s = s.Normalize()

	b.mu.Lock()
	ids := append([]string(nil), b.order...)
	for _, id := range ids {
		it := b.items[id]
		it.Status = StatusPending
		it.Progress = 0
		it.Compressed = nil
		it.Err = nil
	}
	b.mu.Unlock()

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}

		src, ok := b.update(id, onUpdate, func(it *Item) {
			it.Status = StatusCompressing
		})
		if !ok {
			// Removed while the batch was running.
			continue
		}

		res, err := b.c.Compress(ctx, s.Request(src), func(pct float64) {
			b.update(id, onUpdate, func(it *Item) {
				it.Progress = pct
			})
		})

		b.update(id, onUpdate, func(it *Item) {
			it.Progress = 100
			if err != nil {
				it.Status = StatusError
				it.Err = err
				return
			}
			it.Status = StatusDone
			it.Compressed = res
		})
	}
	return nil
}

// update applies fn to the item under lock and notifies onUpdate with a copy.
func (b *Batch) update(id string, onUpdate ItemFunc, fn func(*Item)) (*Source, bool) {
	b.mu.Lock()
	it, ok := b.items[id]
	if !ok {
		b.mu.Unlock()
		return nil, false
	}
	fn(it)
	snapshot := *it
	b.mu.Unlock()

	if onUpdate != nil {
		onUpdate(snapshot)
	}
	return snapshot.Source, true
}

// Entries returns archive entries for every successfully compressed item, in
// batch order.
func (b *Batch) Entries() []ArchiveEntry {
	items := b.Items()
	out := make([]ArchiveEntry, 0, len(items))
	for _, it := range items {
		if it.Status != StatusDone || it.Compressed == nil {
			continue
		}
		out = append(out, ArchiveEntry{
			Name: CompressedName(it.Name, it.Compressed.Blob.MIMEType),
			Data: it.Compressed.Blob.Data,
		})
	}
	return out
}
