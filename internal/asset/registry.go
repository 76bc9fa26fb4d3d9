// Package asset owns every loaded asset, keyed by its canonical path under
// the asset root.
package asset

import (
	"errors"
	"io/fs"
	"reflect"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/plate/engine/internal/core/errs"
	"github.com/plate/engine/internal/sandbox"
)

// Flags control how gc treats an entry.
type Flags uint8

const (
	// FlagPersistent entries survive Gc.
	FlagPersistent Flags = 1 << iota
)

// Releaser is implemented by payloads that hold resources beyond memory.
type Releaser interface {
	Release()
}

type entry struct {
	path  string
	value any
	kind  reflect.Type
	flags Flags
}

// Registry maps canonical paths to typed payloads. Loaders may store from
// several goroutines while preloading; everything else runs on the master.
type Registry struct {
	log  *zap.Logger
	fsys fs.FS
	root sandbox.Root

	mu      sync.Mutex
	buckets map[uint64][]entry
	count   int
	hooks   map[reflect.Type]func(any)
}

// NewRegistry reads files from fsys, which is rooted at the working
// directory; root names the asset directory inside it.
func NewRegistry(log *zap.Logger, fsys fs.FS, root string) *Registry {
	return &Registry{
		log:     log,
		fsys:    fsys,
		root:    sandbox.NewRoot(root),
		buckets: make(map[uint64][]entry, 64),
		hooks:   make(map[reflect.Type]func(any)),
	}
}

// SetRoot changes the asset directory, stripping leading and trailing
// slashes.
func (r *Registry) SetRoot(dir string) {
	r.root = sandbox.NewRoot(dir)
}

func (r *Registry) Root() sandbox.Root { return r.root }

// OnRelease installs a release hook for payloads of type T. Hooks take
// precedence over Releaser.
func OnRelease[T any](r *Registry, fn func(T)) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	r.mu.Lock()
	r.hooks[t] = func(v any) { fn(v.(T)) }
	r.mu.Unlock()
}

// Store takes ownership of value under path. A previous payload at the same
// path is released.
func (r *Registry) Store(path string, value any, flags Flags) {
	key := xxhash.Sum64String(path)
	e := entry{path: path, value: value, kind: reflect.TypeOf(value), flags: flags}

	r.mu.Lock()
	defer r.mu.Unlock()
	bucket := r.buckets[key]
	for i := range bucket {
		if bucket[i].path == path {
			r.release(bucket[i])
			bucket[i] = e
			return
		}
	}
	r.buckets[key] = append(bucket, e)
	r.count++
}

func (r *Registry) lookup(path string) (entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.buckets[xxhash.Sum64String(path)] {
		if e.path == path {
			return e, true
		}
	}
	return entry{}, false
}

// Retrieve returns the payload at path if it exists and has type T.
func Retrieve[T any](r *Registry, path string) (T, bool) {
	var zero T
	e, ok := r.lookup(path)
	if !ok {
		return zero, false
	}
	v, ok := e.value.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// Gc releases every entry not flagged persistent. Intended for load-screen
// boundaries only.
func (r *Registry) Gc() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	released := 0
	for key, bucket := range r.buckets {
		kept := bucket[:0]
		for _, e := range bucket {
			if e.flags&FlagPersistent != 0 {
				kept = append(kept, e)
				continue
			}
			r.release(e)
			released++
		}
		if len(kept) == 0 {
			delete(r.buckets, key)
		} else {
			r.buckets[key] = kept
		}
	}
	r.count -= released
	r.log.Debug("asset gc", zap.Int("released", released), zap.Int("kept", r.count))
	return released
}

func (r *Registry) release(e entry) {
	if hook, ok := r.hooks[e.kind]; ok {
		hook(e.value)
		return
	}
	if rel, ok := e.value.(Releaser); ok {
		rel.Release()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// ReadFile resolves path from ctx and reads it. The returned key is the
// canonical path used for Store and Retrieve.
func (r *Registry) ReadFile(ctx sandbox.DirContext, path string) (data []byte, key string, err error) {
	key, err = r.root.Resolve(ctx, path)
	if err != nil {
		return nil, "", err
	}
	data, err = fs.ReadFile(r.fsys, key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrInvalid) {
			return nil, key, errs.Detailed(errs.CannotOpenFile, "%s", key)
		}
		return nil, key, errs.Detailed(errs.IncompleteFileRead, "%s: %v", key, err)
	}
	return data, key, nil
}

// Exists reports whether a file is present at the resolved path.
func (r *Registry) Exists(ctx sandbox.DirContext, path string) bool {
	key, err := r.root.Resolve(ctx, path)
	if err != nil {
		return false
	}
	_, err = fs.Stat(r.fsys, key)
	return err == nil
}
