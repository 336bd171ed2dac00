package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	bolt "go.etcd.io/bbolt"

	"requestbin/internal/bin"
)

var (
	bucketBins    = []byte("bins")
	bucketCreated = []byte("created")
	bucketStats   = []byte("stats")

	keyRequests  = []byte("requests")
	keyTotalSize = []byte("total_size")
)

// Bolt stores each bin as one Bin.Dump value keyed by name. Each capture
// runs in a single write transaction, which bbolt serializes.
type Bolt struct {
	db   *bolt.DB
	opts Options
}

func NewBolt(path string, opts Options) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketBins, bucketCreated, bucketStats} {
			if _, e := tx.CreateBucketIfNotExists(name); e != nil {
				return e
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Bolt{db: db, opts: opts}, nil
}

func (s *Bolt) Close() error { return s.db.Close() }

func (s *Bolt) CreateBin(private bool, customName string) (*bin.Bin, error) {
	var created *bin.Bin
	err := s.db.Update(func(tx *bolt.Tx) error {
		for attempt := 0; attempt < createAttempts; attempt++ {
			b, err := bin.New(s.opts.Policy, private, customName)
			if err != nil {
				return err
			}
			if s.live(tx, b.Name, time.Now()) {
				if customName != "" {
					return ErrBinExists
				}
				continue
			}
			if err := s.put(tx, b); err != nil {
				return err
			}
			created = b
			return nil
		}
		return ErrBinExists
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Bolt) LookupBin(name string) (*bin.Bin, error) {
	var b *bin.Bin
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		b, err = s.get(tx, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Bolt) CreateRequest(name string, in bin.Input) (*bin.Request, error) {
	var r *bin.Request
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := s.get(tx, name)
		if err != nil {
			return err
		}
		r = b.Add(in)
		if err := s.put(tx, b); err != nil {
			return err
		}
		stats := tx.Bucket(bucketStats)
		if err := incr(stats, keyRequests, 1); err != nil {
			return err
		}
		return incr(stats, keyTotalSize, uint64(r.ContentLength))
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Bolt) CountBins() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		now := time.Now()
		return tx.Bucket(bucketCreated).ForEach(func(k, v []byte) error {
			if !expiredAt(decodeFloat(v), s.opts.BinTTL, now) {
				n++
			}
			return nil
		})
	})
	return n, err
}

func (s *Bolt) CountRequests() (int, error) {
	var n uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		n = counter(tx.Bucket(bucketStats), keyRequests)
		return nil
	})
	return int(n), err
}

func (s *Bolt) AvgRequestSize() (int, error) {
	var avg int
	err := s.db.View(func(tx *bolt.Tx) error {
		stats := tx.Bucket(bucketStats)
		avg = average(counter(stats, keyTotalSize), counter(stats, keyRequests))
		return nil
	})
	return avg, err
}

func (s *Bolt) Expire(now time.Time) (int, error) {
	n := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		var stale [][]byte
		c := tx.Bucket(bucketCreated).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if expiredAt(decodeFloat(v), s.opts.BinTTL, now) {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := tx.Bucket(bucketBins).Delete(k); err != nil {
				return fmt.Errorf("delete bin %s: %w", k, err)
			}
			if err := tx.Bucket(bucketCreated).Delete(k); err != nil {
				return fmt.Errorf("delete bin %s: %w", k, err)
			}
		}
		n = len(stale)
		return nil
	})
	return n, err
}

func (s *Bolt) get(tx *bolt.Tx, name string) (*bin.Bin, error) {
	v := tx.Bucket(bucketBins).Get([]byte(name))
	if v == nil {
		return nil, ErrBinNotFound
	}
	b, err := bin.Load(v, s.opts.Policy)
	if err != nil {
		return nil, fmt.Errorf("load bin %s: %w", name, err)
	}
	if expired(b, s.opts.BinTTL, time.Now()) {
		return nil, ErrBinNotFound
	}
	return b, nil
}

// live reports whether name holds a bin that has not expired. Expired bins
// waiting for the janitor count as absent.
func (s *Bolt) live(tx *bolt.Tx, name string, now time.Time) bool {
	if tx.Bucket(bucketBins).Get([]byte(name)) == nil {
		return false
	}
	return !expiredAt(decodeFloat(tx.Bucket(bucketCreated).Get([]byte(name))), s.opts.BinTTL, now)
}

func (s *Bolt) put(tx *bolt.Tx, b *bin.Bin) error {
	data, err := b.Dump()
	if err != nil {
		return fmt.Errorf("dump bin %s: %w", b.Name, err)
	}
	if err := tx.Bucket(bucketBins).Put([]byte(b.Name), data); err != nil {
		return err
	}
	return tx.Bucket(bucketCreated).Put([]byte(b.Name), encodeFloat(b.Created))
}

func counter(b *bolt.Bucket, key []byte) uint64 {
	v := b.Get(key)
	if len(v) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

func incr(b *bolt.Bucket, key []byte, delta uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, counter(b, key)+delta)
	return b.Put(key, buf)
}

func encodeFloat(f float64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(f))
	return buf
}

func decodeFloat(v []byte) float64 {
	if len(v) != 8 {
		return 0
	}
	return math.Float64frombits(binary.BigEndian.Uint64(v))
}
