// Package store keeps encoded schemes and compilation summaries in BadgerDB.
//
// Schemes are content addressed: the key of an encoded .ss container is the
// identity of the scheme it holds, so storing the same scheme twice is a
// no-op. Key layout:
//
//	scheme/<identity hex>             .ss bytes
//	summary/<identity hex>/<profile>  YAML compiler.Summary
//	tag/<name>                        identity hex
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"gopkg.in/yaml.v3"

	"github.com/sbl8/ssccs/compiler"
	"github.com/sbl8/ssccs/core"
	"github.com/sbl8/ssccs/scheme"
	"github.com/sbl8/ssccs/ssfile"
)

var (
	// ErrNotFound is returned when no value is stored under the requested key.
	ErrNotFound = errors.New("store: not found")
	// ErrCorrupt is returned when a stored container decodes to a scheme
	// with a different identity than its key.
	ErrCorrupt = errors.New("store: stored scheme does not match its key")
)

const (
	prefixScheme  = "scheme/"
	prefixSummary = "summary/"
	prefixTag     = "tag/"
)

// Config holds configuration for a store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps everything in RAM.
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
	// Logger receives badger's own log lines; nil silences them.
	Logger *slog.Logger
	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration
	// GCDiscardRatio is the garbage ratio that triggers a value log rewrite.
	GCDiscardRatio float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Store is a content addressed scheme store. It is safe for concurrent use.
type Store struct {
	db   *badger.DB
	gc   *gcRunner
	path string
}

// Open opens or creates the store described by cfg. The caller must Close it.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("store: path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}
	s := &Store{db: db, path: cfg.Path}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gc = newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		s.gc.start()
	}
	return s, nil
}

// Close stops garbage collection and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

// Path returns the database directory, empty for in-memory stores.
func (s *Store) Path() string { return s.path }

func schemeKey(id core.Identity) []byte { return []byte(prefixScheme + id.String()) }

func summaryKey(id core.Identity, profile string) []byte {
	return []byte(prefixSummary + id.String() + "/" + profile)
}

func tagKey(name string) []byte { return []byte(prefixTag + name) }

func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(fn)
}

func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

// get copies the value under key; a missing key maps to ErrNotFound.
func get(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// PutScheme encodes sc and stores it under its identity.
func (s *Store) PutScheme(ctx context.Context, sc *scheme.Basic) (core.Identity, error) {
	data, err := ssfile.Marshal(sc)
	if err != nil {
		return core.Identity{}, err
	}
	id := sc.ID()
	err = s.update(ctx, func(txn *badger.Txn) error {
		return txn.Set(schemeKey(id), data)
	})
	if err != nil {
		return core.Identity{}, fmt.Errorf("store: put scheme %s: %w", id.Short(), err)
	}
	return id, nil
}

// RawScheme returns the encoded container stored under id.
func (s *Store) RawScheme(ctx context.Context, id core.Identity) ([]byte, error) {
	var data []byte
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		data, err = get(txn, schemeKey(id))
		return err
	})
	return data, err
}

// GetScheme decodes the scheme stored under id.
func (s *Store) GetScheme(ctx context.Context, id core.Identity) (*scheme.Basic, error) {
	data, err := s.RawScheme(ctx, id)
	if err != nil {
		return nil, err
	}
	sc, err := ssfile.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", id.Short(), err)
	}
	if sc.ID() != id {
		return nil, fmt.Errorf("%w: key %s, scheme %s", ErrCorrupt, id.Short(), sc.ID().Short())
	}
	return sc, nil
}

// HasScheme reports whether a scheme is stored under id.
func (s *Store) HasScheme(ctx context.Context, id core.Identity) (bool, error) {
	found := false
	err := s.view(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(schemeKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		found = err == nil
		return err
	})
	return found, err
}

// DeleteScheme removes the scheme and its summaries. Tags pointing at it
// are left dangling and resolve to ErrNotFound on GetScheme.
func (s *Store) DeleteScheme(ctx context.Context, id core.Identity) error {
	summaries, err := s.keys(ctx, []byte(prefixSummary+id.String()+"/"))
	if err != nil {
		return err
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		if err := txn.Delete(schemeKey(id)); err != nil {
			return err
		}
		for _, k := range summaries {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Schemes lists the identities of all stored schemes in key order.
func (s *Store) Schemes(ctx context.Context) ([]core.Identity, error) {
	keys, err := s.keys(ctx, []byte(prefixScheme))
	if err != nil {
		return nil, err
	}
	out := make([]core.Identity, 0, len(keys))
	for _, k := range keys {
		id, err := core.ParseIdentity(strings.TrimPrefix(string(k), prefixScheme))
		if err != nil {
			return nil, fmt.Errorf("store: bad key %q: %w", k, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *Store) keys(ctx context.Context, prefix []byte) ([][]byte, error) {
	var out [][]byte
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			out = append(out, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return out, err
}

// PutSummary records a compilation summary. One summary is kept per scheme
// and profile; a newer one replaces the older.
func (s *Store) PutSummary(ctx context.Context, sum compiler.Summary) error {
	id, err := core.ParseIdentity(sum.Scheme)
	if err != nil {
		return fmt.Errorf("store: summary: %w", err)
	}
	data, err := yaml.Marshal(sum)
	if err != nil {
		return fmt.Errorf("store: summary: %w", err)
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		return txn.Set(summaryKey(id, sum.Profile), data)
	})
}

// Summaries returns the stored summaries of a scheme ordered by profile.
func (s *Store) Summaries(ctx context.Context, id core.Identity) ([]compiler.Summary, error) {
	var out []compiler.Summary
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixSummary + id.String() + "/")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var sum compiler.Summary
			err := it.Item().Value(func(val []byte) error {
				return yaml.NewDecoder(bytes.NewReader(val)).Decode(&sum)
			})
			if err != nil {
				return fmt.Errorf("store: summary %s: %w", it.Item().Key(), err)
			}
			out = append(out, sum)
		}
		return nil
	})
	return out, err
}

// Tag names a stored scheme. Tagging an identity that is not stored fails
// with ErrNotFound.
func (s *Store) Tag(ctx context.Context, name string, id core.Identity) error {
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("store: invalid tag %q", name)
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(schemeKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: scheme %s", ErrNotFound, id.Short())
			}
			return err
		}
		return txn.Set(tagKey(name), []byte(id.String()))
	})
}

// Resolve returns the identity named by a tag, or parses ref as an
// identity when no tag of that name exists.
func (s *Store) Resolve(ctx context.Context, ref string) (core.Identity, error) {
	var data []byte
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		data, err = get(txn, tagKey(ref))
		return err
	})
	switch {
	case err == nil:
		return core.ParseIdentity(string(data))
	case errors.Is(err, ErrNotFound):
		if id, perr := core.ParseIdentity(ref); perr == nil {
			return id, nil
		}
		return core.Identity{}, err
	default:
		return core.Identity{}, err
	}
}
