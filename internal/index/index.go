// Package index stores embedding vectors in badger and answers
// nearest-neighbour queries by brute-force cosine similarity.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"
)

// ErrUnavailable is returned when the index cannot be read or written
var ErrUnavailable = errors.New("vector index unavailable")

// Collection separates vectors of different kinds in one database
type Collection string

const (
	// Sources holds evidence source embeddings
	Sources Collection = "src"
	// Claims holds embeddings of analyzed claims
	Claims Collection = "clm"
)

// Hit is one nearest-neighbour result
type Hit struct {
	ID      string
	Score   float64 // cosine similarity clamped to [0,1]
	Payload map[string]string
}

// VectorIndex is the index the retriever queries
type VectorIndex interface {
	QueryNearest(ctx context.Context, vector []float32, k int, threshold float64) ([]Hit, error)
	Upsert(ctx context.Context, id string, vector []float32, payload map[string]string) error
}

type record struct {
	Vector    []float32         `json:"v"`
	Payload   map[string]string `json:"p,omitempty"`
	UpdatedAt time.Time         `json:"t"`
}

// Store is a badger-backed vector store holding every collection
type Store struct {
	db     *badger.DB
	logger *zap.Logger
}

// Open opens the index in dir, or an in-memory index when inMemory is set
func Open(dir string, inMemory bool, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &badgerLogger{logger: logger.Sugar()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Collection returns a VectorIndex scoped to c
func (s *Store) Collection(c Collection) *CollectionIndex {
	return &CollectionIndex{store: s, prefix: []byte(string(c) + ":")}
}

// CollectionIndex is the VectorIndex of one collection
type CollectionIndex struct {
	store  *Store
	prefix []byte
}

func (c *CollectionIndex) key(id string) []byte {
	k := make([]byte, 0, len(c.prefix)+len(id))
	k = append(k, c.prefix...)
	return append(k, id...)
}

// Upsert stores or replaces the vector for id
func (c *CollectionIndex) Upsert(ctx context.Context, id string, vector []float32, payload map[string]string) error {
	if id == "" {
		return fmt.Errorf("upsert: empty id")
	}
	if len(vector) == 0 {
		return fmt.Errorf("upsert %s: empty vector", id)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	data, err := json.Marshal(record{Vector: vector, Payload: payload, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	err = c.store.db.Update(func(txn *badger.Txn) error {
		return txn.Set(c.key(id), data)
	})
	if err != nil {
		return fmt.Errorf("%w: upsert %s: %v", ErrUnavailable, id, err)
	}
	return nil
}

// Delete removes the vector for id
func (c *CollectionIndex) Delete(ctx context.Context, id string) error {
	err := c.store.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(c.key(id))
	})
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrUnavailable, id, err)
	}
	return nil
}

// Count returns the number of vectors in the collection
func (c *CollectionIndex) Count(ctx context.Context) (int, error) {
	n := 0
	err := c.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = c.prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrUnavailable, err)
	}
	return n, nil
}

// QueryNearest returns up to k hits with similarity >= threshold,
// best first. Equal scores keep key order.
func (c *CollectionIndex) QueryNearest(ctx context.Context, vector []float32, k int, threshold float64) ([]Hit, error) {
	if k <= 0 || len(vector) == 0 {
		return []Hit{}, nil
	}

	var hits []Hit
	err := c.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = c.prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			var rec record
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				c.store.logger.Warn("skipping unreadable index record",
					zap.ByteString("key", item.Key()),
					zap.Error(err))
				continue
			}
			if len(rec.Vector) != len(vector) {
				continue
			}

			score := Cosine(vector, rec.Vector)
			if score < threshold {
				continue
			}
			hits = append(hits, Hit{
				ID:      string(item.Key()[len(c.prefix):]),
				Score:   score,
				Payload: rec.Payload,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrUnavailable, err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	if hits == nil {
		hits = []Hit{}
	}

	return hits, nil
}

// Cosine returns the cosine similarity of a and b clamped to [0,1].
// Zero vectors have similarity 0.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

type badgerLogger struct {
	logger *zap.SugaredLogger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, args ...any)   { l.logger.Errorf(msg, args...) }
func (l *badgerLogger) Warningf(msg string, args ...any) { l.logger.Warnf(msg, args...) }
func (l *badgerLogger) Infof(msg string, args ...any)    { l.logger.Debugf(msg, args...) }
func (l *badgerLogger) Debugf(msg string, args ...any)   { l.logger.Debugf(msg, args...) }
