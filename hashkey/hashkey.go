// Package hashkey implements the optional, late-bound primary-key hasher:
// a content-derived hash of a map key's ordinal that overrides the
// stager's bucket hint, bound per cycle via field paths resolved against
// the live type state.
package hashkey

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Fn computes a hash of a key ordinal, used to place entries into a
// bucket range via Fn(keyOrdinal) & (B-1).
type Fn func(keyOrdinal uint64) uint32

// Kind tags the outcome of a bind attempt.
type Kind int

const (
	// Bound means hasher is populated and must be used.
	Bound Kind = iota
	// Skipped means the hash key could not be bound (NOT_BINDABLE); the
	// caller should fall back to stager-chosen bucket hints for this
	// cycle and log a warning once.
	Skipped
	// Err means a non-recoverable binding error occurred; the caller
	// must propagate it and abort the cycle.
	Err
)

// BindResult is the tagged outcome of a bind attempt: a hasher, a
// recoverable skip, or a fatal error.
type BindResult struct {
	Kind   Kind
	Hasher Fn
	Reason error
}

// StateView resolves a dotted field path (e.g. "Account.PublicKey") against
// whatever live type state the embedding state engine holds: a small
// reflect-based resolver over a value the caller supplies.
type StateView struct {
	// Root is the struct (or pointer to struct) each field path is
	// resolved against.
	Root any
}

// ErrNotBindable is returned (wrapped) when a field path does not resolve
// against the given state. This is the recoverable case: callers fall
// back to stager-chosen bucket hints rather than aborting the cycle.
var ErrNotBindable = fmt.Errorf("hashkey: field path not bindable")

// Factory constructs a primary-key Fn from a schema's hash-key field paths.
// It is safe to call Bind repeatedly; nothing is cached across cycles, so
// each encode call re-attempts the bind fresh.
type Factory struct{}

// Bind resolves hashKey (one or more dotted field paths) against state and
// returns a BindResult. An empty hashKey list is itself NOT_BINDABLE,
// since there is nothing to hash.
func (Factory) Bind(hashKey []string, state StateView) BindResult {
	if len(hashKey) == 0 {
		return BindResult{Kind: Skipped, Reason: fmt.Errorf("%w: empty hash key", ErrNotBindable)}
	}
	if state.Root == nil {
		return BindResult{Kind: Skipped, Reason: fmt.Errorf("%w: nil state", ErrNotBindable)}
	}

	resolvers := make([]func(reflect.Value) (reflect.Value, error), 0, len(hashKey))
	root := reflect.ValueOf(state.Root)
	for _, path := range hashKey {
		segs := strings.Split(path, ".")
		if _, err := resolveFieldPath(root, segs); err != nil {
			if isTypeMismatch(err) {
				return BindResult{Kind: Err, Reason: fmt.Errorf("hashkey: fatal binding error for %q: %w", path, err)}
			}
			return BindResult{Kind: Skipped, Reason: fmt.Errorf("%w: field path %q: %v", ErrNotBindable, path, err)}
		}
		segsCopy := append([]string(nil), segs...)
		resolvers = append(resolvers, func(v reflect.Value) (reflect.Value, error) {
			return resolveFieldPath(v, segsCopy)
		})
	}

	fn := func(keyOrdinal uint64) uint32 {
		var ordBuf [8]byte
		binary.LittleEndian.PutUint64(ordBuf[:], keyOrdinal)
		d := xxhash.New()
		d.Write(ordBuf[:])
		for _, resolve := range resolvers {
			fv, err := resolve(root)
			if err != nil {
				// Field paths were validated above; a runtime
				// failure here means the bound state changed
				// shape mid-cycle, which callers must not do.
				panic(fmt.Sprintf("hashkey: field path became unresolvable mid-cycle: %v", err))
			}
			writeValue(d, fv)
		}
		return uint32(d.Sum64())
	}
	return BindResult{Kind: Bound, Hasher: fn}
}

// Default returns an Fn that hashes the key ordinal alone via xxHash,
// ignoring any field paths. Useful when a type has no declared primary
// key but the caller still wants a content-derived (rather than
// stager-assigned) placement.
func Default() Fn {
	return func(keyOrdinal uint64) uint32 {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], keyOrdinal)
		return uint32(xxhash.Sum64(buf[:]))
	}
}

func resolveFieldPath(v reflect.Value, segs []string) (reflect.Value, error) {
	for _, seg := range segs {
		for v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return reflect.Value{}, fmt.Errorf("nil pointer at %q", seg)
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, typeMismatchError{field: seg, kind: v.Kind()}
		}
		v = v.FieldByName(seg)
		if !v.IsValid() {
			return reflect.Value{}, fmt.Errorf("no such field %q", seg)
		}
	}
	return v, nil
}

type typeMismatchError struct {
	field string
	kind  reflect.Kind
}

func (e typeMismatchError) Error() string {
	return fmt.Sprintf("field %q: expected struct, got %s", e.field, e.kind)
}

func isTypeMismatch(err error) bool {
	_, ok := err.(typeMismatchError)
	return ok
}

func writeValue(d *xxhash.Digest, v reflect.Value) {
	switch v.Kind() {
	case reflect.String:
		d.Write([]byte(v.String()))
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			if v.Kind() == reflect.Array {
				tmp := make([]byte, v.Len())
				reflect.Copy(reflect.ValueOf(tmp), v)
				d.Write(tmp)
				return
			}
			d.Write(v.Bytes())
			return
		}
		for i := 0; i < v.Len(); i++ {
			writeValue(d, v.Index(i))
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(v.Int()))
		d.Write(buf[:])
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], v.Uint())
		d.Write(buf[:])
	default:
		d.Write([]byte(fmt.Sprintf("%v", v.Interface())))
	}
}
