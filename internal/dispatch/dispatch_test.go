package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	val string
	err string
}

func toErr(item string, err error) result { return result{err: err.Error()} }

func TestRun_OneFailureDoesNotAffectSiblings(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	out := Run(context.Background(), items, 3, func(_ context.Context, s string) (result, error) {
		if s == "c" {
			return result{}, errors.New("navigation failed")
		}
		return result{val: s + "!"}, nil
	}, toErr)

	require.Len(t, out, 5)
	ok := 0
	for _, it := range items {
		r := out[it]
		if it == "c" {
			assert.Equal(t, "navigation failed", r.err)
			continue
		}
		assert.Empty(t, r.err)
		assert.Equal(t, it+"!", r.val)
		ok++
	}
	assert.Equal(t, 4, ok)
}

func TestRun_PanicIsContained(t *testing.T) {
	out := Run(context.Background(), []int{1, 2, 3}, 2, func(_ context.Context, n int) (string, error) {
		if n == 2 {
			panic("kaboom")
		}
		return fmt.Sprint(n), nil
	}, func(n int, err error) string {
		var pe *PanicError
		if errors.As(err, &pe) {
			return "panic:" + fmt.Sprint(pe.Value)
		}
		return "err"
	})
	assert.Equal(t, map[int]string{1: "1", 2: "panic:kaboom", 3: "3"}, out)
}

func TestRun_BoundsConcurrency(t *testing.T) {
	var inFlight, maxSeen int32
	items := make([]int, 12)
	for i := range items {
		items[i] = i
	}
	Run(context.Background(), items, 3, func(_ context.Context, _ int) (int, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			prev := atomic.LoadInt32(&maxSeen)
			if cur <= prev || atomic.CompareAndSwapInt32(&maxSeen, prev, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return 0, nil
	}, func(int, error) int { return -1 })
	assert.LessOrEqual(t, atomic.LoadInt32(&maxSeen), int32(3))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&maxSeen), int32(1))
}

func TestRun_ZeroWorkersMeansOne(t *testing.T) {
	var calls int32
	out := Run(context.Background(), []string{"x", "y"}, 0, func(_ context.Context, s string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return s, nil
	}, func(string, error) string { return "" })
	assert.Len(t, out, 2)
	assert.Equal(t, int32(2), calls)
}

func TestRun_DuplicatesRunOnce(t *testing.T) {
	var calls int32
	out := Run(context.Background(), []string{"x", "x", "y"}, 4, func(_ context.Context, s string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return s, nil
	}, func(string, error) string { return "" })
	assert.Len(t, out, 2)
	assert.Equal(t, int32(2), calls)
}

func TestRun_Empty(t *testing.T) {
	out := Run(context.Background(), nil, 2, func(context.Context, string) (string, error) {
		t.Fatal("fn must not be called")
		return "", nil
	}, func(string, error) string { return "" })
	assert.Empty(t, out)
}
