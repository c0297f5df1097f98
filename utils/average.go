package utils

import "sync"

// RollingAverage keeps the mean of the last numSamples values. It is safe for concurrent use.
type RollingAverage struct {
	mu     sync.Mutex
	data   []float64
	pos    int
	filled int
}

// NewRollingAverage returns a RollingAverage over numSamples values.
func NewRollingAverage(numSamples int) *RollingAverage {
	if numSamples < 1 {
		numSamples = 1
	}
	return &RollingAverage{data: make([]float64, numSamples)}
}

// NumSamples returns the window size.
func (ra *RollingAverage) NumSamples() int {
	return len(ra.data)
}

// Add records a value, evicting the oldest one once the window is full.
func (ra *RollingAverage) Add(x float64) {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	ra.data[ra.pos] = x
	ra.pos++
	if ra.pos >= len(ra.data) {
		ra.pos = 0
	}
	if ra.filled < len(ra.data) {
		ra.filled++
	}
}

// Average returns the mean of the recorded values, or 0 before anything is added.
func (ra *RollingAverage) Average() float64 {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	if ra.filled == 0 {
		return 0
	}

	sum := 0.0
	for _, d := range ra.data[:ra.filled] {
		sum += d
	}
	return sum / float64(ra.filled)
}
