package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"

	"framemeter/internal/seqtype"
)

// DefaultSampleEvery is the default 1-in-N summary sampling rate.
const DefaultSampleEvery = 100

// SummarySampler lets roughly one in every N summary reports through, per
// sequence type. The first Universal sample is dropped because it covers
// page load.
type SummarySampler struct {
	every int

	mu               sync.Mutex
	perType          map[seqtype.Type]*rate.Sometimes
	skippedUniversal bool
}

func NewSummarySampler(every int) *SummarySampler {
	if every <= 0 {
		every = DefaultSampleEvery
	}
	return &SummarySampler{
		every:   every,
		perType: make(map[seqtype.Type]*rate.Sometimes),
	}
}

// ShouldSample reports whether this report of t emits a summary event.
func (s *SummarySampler) ShouldSample(t seqtype.Type) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.perType[t]
	if !ok {
		st = &rate.Sometimes{Every: s.every}
		s.perType[t] = st
	}
	sampled := false
	st.Do(func() { sampled = true })

	if sampled && t == seqtype.Universal && !s.skippedUniversal {
		s.skippedUniversal = true
		return false
	}
	return sampled
}

func (s *SummarySampler) Every() int { return s.every }
