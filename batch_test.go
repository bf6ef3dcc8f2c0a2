package pika

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeBatch(enc *fakeEncoder) *Batch {
	return NewBatch(newTestCompressor(enc))
}

func TestBatchAddRemoveClear(t *testing.T) {
	b := newFakeBatch(&fakeEncoder{})

	ids := b.Add(fakeSource("a.jpg"), nil, fakeSource("b.jpg"), fakeSource("c.jpg"))
	require.Len(t, ids, 3)
	assert.Equal(t, 3, b.Len())
	assert.NotEqual(t, ids[0], ids[1])

	it, ok := b.Get(ids[1])
	require.True(t, ok)
	assert.Equal(t, "b.jpg", it.Name)
	assert.Equal(t, StatusPending, it.Status)
	assert.Equal(t, int64(1000), it.OriginalSize)

	assert.True(t, b.Remove(ids[1]))
	assert.False(t, b.Remove(ids[1]))
	_, ok = b.Get(ids[1])
	assert.False(t, ok)

	var names []string
	for _, it := range b.Items() {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{"a.jpg", "c.jpg"}, names)

	b.Clear()
	assert.Zero(t, b.Len())
	assert.Empty(t, b.Items())
}

func TestBatchCompressAllSequential(t *testing.T) {
	enc := &fakeEncoder{natural: image.Pt(400, 300), bytesPerPixel: 0.5}
	b := newFakeBatch(enc)
	ids := b.Add(fakeSource("a.jpg"), fakeSource("b.jpg"), fakeSource("c.jpg"))

	var updates []Item
	err := b.CompressAll(ctx(), DefaultSettings(), func(it Item) { updates = append(updates, it) })
	require.NoError(t, err)

	assert.EqualValues(t, 1, enc.peak.Load(), "at most one encode in flight")
	assert.Equal(t, 3, b.CompressedCount())

	// Each item finishes before the next one starts.
	var order []string
	for _, u := range updates {
		if u.Status == StatusCompressing && (len(order) == 0 || order[len(order)-1] != u.ID) {
			order = append(order, u.ID)
		}
	}
	assert.Equal(t, ids, order)
	finished := map[string]bool{}
	for _, u := range updates {
		if u.Status == StatusDone {
			finished[u.ID] = true
		}
		if u.Status == StatusCompressing {
			for _, id := range ids {
				if id == u.ID {
					break
				}
				assert.True(t, finished[id], "%s started before %s finished", u.Name, id)
			}
		}
	}

	for _, it := range b.Items() {
		assert.Equal(t, StatusDone, it.Status)
		assert.InDelta(t, 100, it.Progress, 0)
		require.NotNil(t, it.Compressed)
		assert.Equal(t, it.Name, it.Compressed.Name)
	}
}

func TestBatchFailureDoesNotStopBatch(t *testing.T) {
	enc := &fakeEncoder{natural: image.Pt(100, 100), bytesPerPixel: 1, failAt: 2}
	b := newFakeBatch(enc)
	ids := b.Add(fakeSource("a.jpg"), fakeSource("b.jpg"), fakeSource("c.jpg"))

	require.NoError(t, b.CompressAll(ctx(), DefaultSettings(), nil))

	it, _ := b.Get(ids[1])
	assert.Equal(t, StatusError, it.Status)
	var ee *EncodeError
	require.ErrorAs(t, it.Err, &ee)
	assert.Nil(t, it.Compressed)

	assert.Equal(t, 2, b.CompressedCount())
	s := b.Summary()
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 1, s.Failed)
	assert.Contains(t, s.String(), "2/3 succeeded")
}

func TestBatchRecompressResets(t *testing.T) {
	enc := &fakeEncoder{natural: image.Pt(100, 100), bytesPerPixel: 1, failAt: 1}
	b := newFakeBatch(enc)
	ids := b.Add(fakeSource("a.jpg"))

	require.NoError(t, b.CompressAll(ctx(), DefaultSettings(), nil))
	it, _ := b.Get(ids[0])
	require.Equal(t, StatusError, it.Status)

	var seen []Status
	require.NoError(t, b.CompressAll(ctx(), DefaultSettings(), func(it Item) { seen = append(seen, it.Status) }))
	it, _ = b.Get(ids[0])
	assert.Equal(t, StatusDone, it.Status)
	assert.NoError(t, it.Err)
	assert.Equal(t, StatusCompressing, seen[0])
}

func TestBatchSettingsApplyToEveryItem(t *testing.T) {
	enc := &fakeEncoder{natural: image.Pt(2000, 1000), bytesPerPixel: 0.01}
	b := newFakeBatch(enc)
	b.Add(fakeSource("a.jpg"), fakeSource("b.jpg"))

	s := DefaultSettings()
	s.Quality = 42
	s.MaxWidth = 640
	s.Format = WebP
	require.NoError(t, b.CompressAll(ctx(), s, nil))

	for _, p := range enc.Calls() {
		assert.Equal(t, 42, p.Quality)
		assert.Equal(t, 640, p.MaxDimension)
		assert.Equal(t, WebP, p.Format)
	}
}

func TestBatchCancelledBetweenItems(t *testing.T) {
	enc := &fakeEncoder{natural: image.Pt(100, 100), bytesPerPixel: 1}
	b := newFakeBatch(enc)
	ids := b.Add(fakeSource("a.jpg"), fakeSource("b.jpg"))

	cctx, cancel := context.WithCancel(ctx())
	err := b.CompressAll(cctx, DefaultSettings(), func(it Item) {
		if it.Status == StatusDone {
			cancel()
		}
	})
	require.ErrorIs(t, err, context.Canceled)

	first, _ := b.Get(ids[0])
	second, _ := b.Get(ids[1])
	assert.Equal(t, StatusDone, first.Status)
	assert.Equal(t, StatusPending, second.Status)
	assert.Len(t, enc.Calls(), 1)
}

func TestBatchEntries(t *testing.T) {
	enc := &fakeEncoder{natural: image.Pt(10, 10), bytesPerPixel: 1, failAt: 2}
	b := newFakeBatch(enc)
	b.Add(fakeSource("one.png"), fakeSource("two.png"), fakeSource("three.jpeg"))

	s := DefaultSettings()
	s.Format = WebP
	require.NoError(t, b.CompressAll(ctx(), s, nil))

	entries := b.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "one-compressed.webp", entries[0].Name)
	assert.Equal(t, "three-compressed.webp", entries[1].Name)
	assert.Len(t, entries[0].Data, 100)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "pending", StatusPending.String())
	assert.Equal(t, "compressing", StatusCompressing.String())
	assert.Equal(t, "done", StatusDone.String())
	assert.Equal(t, "error", StatusError.String())
}

func TestBatchDoesNotRetainPixels(t *testing.T) {
	b := NewBatch(New(Options{}))
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		b.Add(pngSource(t, name, makeTestImage(300, 200)))
	}

	require.NoError(t, b.CompressAll(ctx(), DefaultSettings(), nil))
	for _, it := range b.Items() {
		require.Equal(t, StatusDone, it.Status, it.Name)
		assert.Nil(t, it.Source.img, it.Name)
	}
}
