package groutine

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGo_Name(t *testing.T) {
	got := make(chan string, 1)
	Go(nil, "worker", func(ctx context.Context) {
		got <- Name(ctx)
	})
	assert.Equal(t, "worker", <-got)
	assert.Empty(t, Name(context.Background()))
}

func TestPool(t *testing.T) {
	var mu sync.Mutex
	var names []string
	done := Pool(context.Background(), "eval", 3, func(ctx context.Context, _ int) {
		mu.Lock()
		defer mu.Unlock()
		names = append(names, Name(ctx))
	})
	<-done

	sort.Strings(names)
	assert.Equal(t, []string{"eval-0", "eval-1", "eval-2"}, names)
}

func TestPool_Empty(t *testing.T) {
	<-Pool(context.Background(), "none", 0, func(context.Context, int) {
		t.Fatal("no workers expected")
	})
}
