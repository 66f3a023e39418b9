// Package groutine starts goroutines labelled for pprof and debugging.
package groutine

import (
	"context"
	"fmt"
	"runtime/pprof"
	"sync"
)

type ctxKey string

const nameKey ctxKey = "goroutine_name"

// Go starts fn in a goroutine labelled name. A nil parent means
// context.Background().
//
//	groutine.Go(ctx, "scan-window", func(ctx context.Context) {
//	    // work
//	})
func Go(parent context.Context, name string, fn func(ctx context.Context)) {
	if parent == nil {
		parent = context.Background()
	}

	go pprof.Do(parent, pprof.Labels("goroutine_name", name), func(ctx context.Context) {
		fn(context.WithValue(ctx, nameKey, name))
	})
}

// Pool starts n labelled workers running fn and returns a channel closed
// once all of them have returned. Workers are named "<name>-<i>".
func Pool(parent context.Context, name string, n int, fn func(ctx context.Context, worker int)) <-chan struct{} {
	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		Go(parent, fmt.Sprintf("%s-%d", name, i), func(ctx context.Context) {
			defer wg.Done()
			fn(ctx, i)
		})
	}
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// Name returns the goroutine name stored in ctx, or "".
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(nameKey).(string)
	return s
}
