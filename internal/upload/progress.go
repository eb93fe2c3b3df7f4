package upload

import "sync"

// Progress aggregates per-file upload progress into one percentage: the
// mean of the per-file percentages, rounded down. Emitted values never
// decrease and reach 100 only when every file is complete.
type Progress struct {
	mu   sync.Mutex
	per  []int
	last int
	emit func(percent int)
}

// NewProgress tracks n files and emits the starting 0. emit may be nil.
func NewProgress(n int, emit func(percent int)) *Progress {
	p := &Progress{per: make([]int, n), emit: emit}
	if emit != nil {
		emit(0)
	}
	return p
}

// Update records that file i has written done of total bytes.
func (p *Progress) Update(i int, done, total int64) {
	pct := 100
	if total > 0 {
		pct = int(min(done, total) * 100 / total)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if i < 0 || i >= len(p.per) || pct <= p.per[i] {
		return
	}
	p.per[i] = pct

	sum := 0
	for _, v := range p.per {
		sum += v
	}
	overall := sum / len(p.per)
	if overall <= p.last {
		return
	}
	p.last = overall
	if p.emit != nil {
		p.emit(overall)
	}
}

// Percent returns the last emitted value.
func (p *Progress) Percent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
