// Package drr implements the weighted Deficit Round Robin selector of spec
// §4.2: lazy credit top-up, one full rotation before giving up, one reseed
// attempt, then none. A Scheduler value holds state for exactly one queue;
// per-queue isolation (spec §8 Validation C) falls out of never sharing a
// Scheduler between two queues.
package drr

import "sort"

// Scheduler holds the rotation index and per-bucket deficit counters for
// one queue. The zero value is ready to use.
type Scheduler struct {
	keyOrder []string
	deficits map[string]int
	index    int
}

// NewScheduler returns a ready-to-use Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{deficits: map[string]int{}}
}

// keyOrderFor builds the deterministic rotation order: every non-"default"
// key in weights, then "default" appended last. Go's map iteration order
// is randomized and JSON decoding does not preserve source field order, so
// unlike the original implementation's dict-insertion-order rotation, keys
// are sorted for a stable, reproducible order; this does not change the
// fairness guarantee, which holds for any fixed rotation order.
func keyOrderFor(weights map[string]int) []string {
	keys := make([]string, 0, len(weights))
	for k := range weights {
		if k == "default" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return append(keys, "default")
}

func (s *Scheduler) sync(weights map[string]int) {
	s.keyOrder = keyOrderFor(weights)
	if s.deficits == nil {
		s.deficits = map[string]int{}
	}
	for _, k := range s.keyOrder {
		if _, ok := s.deficits[k]; !ok {
			s.deficits[k] = 0
		}
	}
}

// Next selects one bucket key to serve, given the current contents
// (bucket key -> number of waiting jobs, only the count matters) and the
// fleet-wide weights. It advances the rotation index and deficit counters
// as a side effect. The bucket under the rotation index keeps being served
// while it has waiting jobs and at least one credit left, so per visit a
// bucket is served up to its weight; an empty bucket's deficit is reset to
// zero when the rotation passes it. ok is false when no bucket with waiting
// jobs has a positive weight (in particular, when every bucket is empty).
func (s *Scheduler) Next(counts map[string]int, weights map[string]int) (bucket string, ok bool) {
	s.sync(weights)
	n := len(s.keyOrder)
	if n == 0 {
		return "", false
	}

	if s.index < n {
		if key := s.keyOrder[s.index]; counts[key] > 0 && s.deficits[key] >= 1 {
			s.deficits[key]--
			return key, true
		}
	}

	rotate := func() (string, bool) {
		for i := 0; i < n; i++ {
			s.index = (s.index + 1) % n
			key := s.keyOrder[s.index]
			if counts[key] <= 0 {
				s.deficits[key] = 0
				continue
			}
			w := weights[key]
			if w < 0 {
				w = 0
			}
			s.deficits[key] += w
			if counts[key] > 0 && s.deficits[key] >= 1 {
				s.deficits[key]--
				return key, true
			}
		}
		return "", false
	}

	if key, ok := rotate(); ok {
		return key, true
	}

	for _, k := range s.keyOrder {
		s.deficits[k] = weights[k]
	}
	return rotate()
}
