package discovery

import (
	"sync"

	"labprov/internal/domain"
)

// Report summarizes one discovery pass
type Report struct {
	Discovered int
	Reconciled int
	Incomplete int
	Failed     int
	Failures   []domain.DeviceError

	mu sync.Mutex
}

func (r *Report) reconciled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reconciled++
}

func (r *Report) incomplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Incomplete++
}

func (r *Report) fail(err domain.DeviceError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed++
	r.Failures = append(r.Failures, err)
}
