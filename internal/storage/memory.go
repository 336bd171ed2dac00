package storage

import (
	"sync"
	"time"

	"requestbin/internal/bin"
)

// Memory keeps live bins in a map. Contents are lost on exit.
type Memory struct {
	opts Options

	mu        sync.Mutex
	bins      map[string]*bin.Bin
	requests  uint64
	totalSize uint64
}

func NewMemory(opts Options) *Memory {
	return &Memory{opts: opts, bins: make(map[string]*bin.Bin)}
}

func (m *Memory) CreateBin(private bool, customName string) (*bin.Bin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for attempt := 0; attempt < createAttempts; attempt++ {
		b, err := bin.New(m.opts.Policy, private, customName)
		if err != nil {
			return nil, err
		}
		if _, err := m.live(b.Name); err == nil {
			if customName != "" {
				return nil, ErrBinExists
			}
			continue
		}
		m.bins[b.Name] = b
		return b.Clone(), nil
	}
	return nil, ErrBinExists
}

func (m *Memory) LookupBin(name string) (*bin.Bin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.live(name)
	if err != nil {
		return nil, err
	}
	return b.Clone(), nil
}

func (m *Memory) live(name string) (*bin.Bin, error) {
	b, ok := m.bins[name]
	if !ok || expired(b, m.opts.BinTTL, time.Now()) {
		return nil, ErrBinNotFound
	}
	return b, nil
}

func (m *Memory) CreateRequest(name string, in bin.Input) (*bin.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.live(name)
	if err != nil {
		return nil, err
	}
	r := b.Add(in)
	m.requests++
	m.totalSize += uint64(r.ContentLength)
	return r, nil
}

func (m *Memory) CountBins() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	n := 0
	for _, b := range m.bins {
		if !expired(b, m.opts.BinTTL, now) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) CountRequests() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int(m.requests), nil
}

func (m *Memory) AvgRequestSize() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return average(m.totalSize, m.requests), nil
}

func (m *Memory) Expire(now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for name, b := range m.bins {
		if expired(b, m.opts.BinTTL, now) {
			delete(m.bins, name)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Close() error { return nil }
