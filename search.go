package pika

import (
	"image"
	"math/bits"
)

// searchQuality finds the highest quality in [1, ceiling] whose encoding of
// img fits within maxBytes, assuming size never grows as quality drops.
// When nothing fits, the smallest encoding seen is returned instead so the
// caller can still decide what to do with a best effort.
//
// step is called after every probe encode with the probe count so far and
// an upper bound on the total.
func searchQuality(img image.Image, f Format, ceiling int, maxBytes int64, step func(i, n int)) ([]byte, int, error) {
	ceiling = clampQuality(ceiling)
	steps := 1 + bits.Len(uint(ceiling))

	// Most images already fit at the ceiling; that costs a single encode.
	data, err := encodeAt(img, f, ceiling)
	if err != nil {
		return nil, 0, err
	}
	step(1, steps)
	if int64(len(data)) <= maxBytes {
		return data, ceiling, nil
	}

	var (
		best      []byte
		bestQ     int
		smallest  = data
		smallestQ = ceiling
	)
	lo, hi := 1, ceiling-1
	for i := 2; lo <= hi; i++ {
		mid := (lo + hi) / 2
		buf, err := encodeAt(img, f, mid)
		if err != nil {
			return nil, 0, err
		}
		step(min(i, steps), steps)

		if int64(len(buf)) <= maxBytes {
			best, bestQ = buf, mid
			lo = mid + 1
			continue
		}
		if len(buf) < len(smallest) {
			smallest, smallestQ = buf, mid
		}
		hi = mid - 1
	}

	if best != nil {
		return best, bestQ, nil
	}
	return smallest, smallestQ, nil
}
