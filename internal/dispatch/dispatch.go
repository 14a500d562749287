package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// PanicError wraps a value recovered from a panicking worker.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("worker panic: %v", e.Value) }

// Run applies fn to every distinct item using at most maxWorkers goroutines
// and returns the results keyed by item. The pool lives only for this call.
//
// Items are isolated from each other: when fn returns an error or panics, the
// item's result is onErr(item, err) and its siblings are unaffected. Run never
// cancels ctx on behalf of an item; fn is expected to observe ctx itself.
func Run[K comparable, R any](ctx context.Context, items []K, maxWorkers int, fn func(context.Context, K) (R, error), onErr func(K, error) R) map[K]R {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	results := make(map[K]R, len(items))
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(maxWorkers)

	seen := make(map[K]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		item := item
		g.Go(func() error {
			r := call(ctx, item, fn, onErr)
			mu.Lock()
			results[item] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func call[K comparable, R any](ctx context.Context, item K, fn func(context.Context, K) (R, error), onErr func(K, error) R) (out R) {
	defer func() {
		if v := recover(); v != nil {
			pe := &PanicError{Value: v, Stack: debug.Stack()}
			log.Error().Interface("item", item).Str("stack", string(pe.Stack)).Msg("worker panicked")
			out = onErr(item, pe)
		}
	}()
	r, err := fn(ctx, item)
	if err != nil {
		log.Debug().Err(err).Interface("item", item).Msg("worker failed")
		return onErr(item, err)
	}
	return r
}
