package engine

import "time"

type Sample struct {
	Value     float64
	Timestamp time.Time
}

// Window holds one key's samples in arrival order with a running sum.
// Arrival order tracks timestamp order only loosely: a late reading carrying
// an old timestamp is still appended at the tail.
type Window struct {
	samples []Sample
	sum     float64
}

func NewWindow() *Window {
	return &Window{samples: make([]Sample, 0, 64)}
}

func (w *Window) Add(s Sample) {
	w.samples = append(w.samples, s)
	w.sum += s.Value
}

// Evict removes every sample with a timestamp before cutoff. Because arrival
// order is not timestamp order, an expired sample can sit behind a valid one,
// so the scan covers the whole slice instead of stopping at the first keeper.
func (w *Window) Evict(cutoff time.Time) {
	kept := w.samples[:0]
	for _, s := range w.samples {
		if s.Timestamp.Before(cutoff) {
			w.sum -= s.Value
			continue
		}
		kept = append(kept, s)
	}
	w.samples = kept
	if len(w.samples) == 0 {
		w.sum = 0
	}
}

func (w *Window) Sum() float64 {
	return w.sum
}

func (w *Window) Count() int {
	return len(w.samples)
}
