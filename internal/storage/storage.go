// Package storage keeps bins between requests. Every backend serializes
// CreateRequest per bin so that Bin.Add never runs concurrently on the
// same bin.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"requestbin/internal/bin"
)

var (
	ErrBinNotFound = errors.New("bin not found")
	ErrBinExists   = errors.New("bin already exists")
)

// createAttempts bounds retries when a generated name collides.
const createAttempts = 5

type Storage interface {
	CreateBin(private bool, customName string) (*bin.Bin, error)
	LookupBin(name string) (*bin.Bin, error)
	CreateRequest(name string, in bin.Input) (*bin.Request, error)
	CountBins() (int, error)
	CountRequests() (int, error)
	// AvgRequestSize is the mean ContentLength of captured requests.
	AvgRequestSize() (int, error)
	// Expire drops bins created more than the TTL before now.
	Expire(now time.Time) (int, error)
	Close() error
}

type Options struct {
	Policy bin.Policy
	// BinTTL of zero keeps bins forever.
	BinTTL time.Duration
}

const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
)

// Open returns the backend named by backend. path is ignored for memory.
func Open(backend, path string, opts Options) (Storage, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemory(opts), nil
	case BackendBolt:
		s, err := NewBolt(path, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendSQLite:
		s, err := NewSQLite(path, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", backend)
}

func expired(b *bin.Bin, ttl time.Duration, now time.Time) bool {
	return expiredAt(b.Created, ttl, now)
}

func expiredAt(created float64, ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return false
	}
	return created < unixSeconds(now.Add(-ttl))
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func average(total, count uint64) int {
	if count == 0 {
		return 0
	}
	return int(total / count)
}

// RunJanitor expires bins every interval until ctx is done.
func RunJanitor(ctx context.Context, s Storage, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := s.Expire(now)
			if err != nil {
				logger.Error("expire bins", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("expired bins", "count", n)
			}
		}
	}
}
