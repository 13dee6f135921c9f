// Package seqlock implements a single-writer, multi-reader sequence lock.
//
// The writer never blocks. Readers copy the protected words and retry when a
// write overlapped the copy, so a reader never observes a torn value. Every
// access is atomic, which keeps the primitive clean under the race detector.
package seqlock

import (
	"runtime"
	"sync/atomic"

	"framemeter/internal/core"
)

// MaxWords is the number of 64-bit words a Cell can protect.
const MaxWords = 8

// Cell holds up to MaxWords words behind a sequence counter. The zero value is
// ready to use. Only one goroutine may call Write.
type Cell struct {
	seq   atomic.Uint64
	words [MaxWords]atomic.Uint64
}

// Write stores vals. Extra values beyond MaxWords are dropped.
func (c *Cell) Write(vals []uint64) {
	c.seq.Add(1) // odd: write in progress
	for i, v := range vals {
		if i == MaxWords {
			break
		}
		c.words[i].Store(v)
	}
	c.seq.Add(1)
}

// Read copies len(dst) words into dst and returns how many times it retried.
func (c *Cell) Read(dst []uint64) int {
	if len(dst) > MaxWords {
		dst = dst[:MaxWords]
	}
	for retries := 0; ; retries++ {
		before := c.seq.Load()
		if before&1 == 1 {
			runtime.Gosched()
			continue
		}
		for i := range dst {
			dst[i] = c.words[i].Load()
		}
		if c.seq.Load() == before {
			return retries
		}
	}
}

// Version returns the number of completed writes.
func (c *Cell) Version() uint64 {
	return c.seq.Load() / 2
}

// Codec maps a value to and from a fixed number of words.
type Codec[T any] interface {
	Words() int
	Encode(v T, dst []uint64)
	Decode(src []uint64) T
}

// Published is a Cell carrying a typed value.
type Published[T any] struct {
	cell  Cell
	codec Codec[T]
	n     int
}

// New returns a Published value using codec. A codec wider than MaxWords
// violates a contract; when violations are tolerated, the words past
// MaxWords read back as zero.
func New[T any](codec Codec[T]) *Published[T] {
	n := codec.Words()
	core.Checkf(n >= 0 && n <= MaxWords, "codec needs %d words, a cell holds %d", n, MaxWords)
	if n < 0 {
		n = 0
	}
	return &Published[T]{codec: codec, n: n}
}

func (p *Published[T]) buffer(small *[MaxWords]uint64) []uint64 {
	if p.n <= MaxWords {
		return small[:p.n]
	}
	return make([]uint64, p.n)
}

// Publish stores v. Single writer only.
func (p *Published[T]) Publish(v T) {
	var small [MaxWords]uint64
	buf := p.buffer(&small)
	p.codec.Encode(v, buf)
	p.cell.Write(buf)
}

// Snapshot returns the latest fully written value.
func (p *Published[T]) Snapshot() T {
	var small [MaxWords]uint64
	buf := p.buffer(&small)
	p.cell.Read(buf)
	return p.codec.Decode(buf)
}

// Version returns the number of values published so far.
func (p *Published[T]) Version() uint64 {
	return p.cell.Version()
}
