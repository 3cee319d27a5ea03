package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

type result struct{ n int }

func TestMemoize_HitReturnsSameReference(t *testing.T) {
	c := New(true)
	calls := 0
	compute := func() (*result, error) {
		calls++
		return &result{n: calls}, nil
	}

	first, err := Get(c, "k", compute)
	assert.NoError(t, err)
	second, err := Get(c, "k", compute)
	assert.NoError(t, err)

	check.True(t, first == second)
	check.Equal(t, 1, calls)
	stats := c.Stats()
	check.Equal(t, uint64(1), stats.Hits)
	check.Equal(t, uint64(1), stats.Misses)
	check.Equal(t, 1, stats.Entries)
}

func TestInvalidateAll_Recomputes(t *testing.T) {
	c := New(true)
	calls := 0
	compute := func() (*result, error) {
		calls++
		return &result{n: calls}, nil
	}

	before, _ := Get(c, "k", compute)
	c.InvalidateAll()
	check.Equal(t, 0, c.Stats().Entries)
	after, _ := Get(c, "k", compute)

	check.False(t, before == after)
	check.Equal(t, 2, calls)
	check.Equal(t, uint64(1), c.Stats().Generation)
}

func TestMemoize_StaleComputeNotStored(t *testing.T) {
	c := New(true)

	v, err := Get(c, "k", func() (*result, error) {
		c.InvalidateAll()
		return &result{n: 1}, nil
	})
	assert.NoError(t, err)
	check.Equal(t, 1, v.n)
	check.Equal(t, 0, c.Stats().Entries)
}

func TestMemoize_ErrorsNotCached(t *testing.T) {
	c := New(true)
	boom := errors.New("boom")

	_, err := Get(c, "k", func() (*result, error) { return nil, boom })
	check.True(t, errors.Is(err, boom))
	check.Equal(t, 0, c.Stats().Entries)

	v, err := Get(c, "k", func() (*result, error) { return &result{n: 2}, nil })
	assert.NoError(t, err)
	check.Equal(t, 2, v.n)
}

func TestMemoize_Disabled(t *testing.T) {
	c := New(false)
	calls := 0
	compute := func() (*result, error) {
		calls++
		return &result{}, nil
	}
	_, _ = Get(c, "k", compute)
	_, _ = Get(c, "k", compute)

	check.Equal(t, 2, calls)
	check.Equal(t, 0, c.Stats().Entries)
	check.False(t, c.Stats().Enabled)
}

func TestMemoize_ConcurrentCallersAgree(t *testing.T) {
	c := New(true)
	var calls atomic.Int32
	compute := func() (*result, error) {
		calls.Add(1)
		return &result{n: 7}, nil
	}

	var wg sync.WaitGroup
	results := make([]*result, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = Get(c, "k", compute)
		}(i)
	}
	wg.Wait()

	cached, _ := Get(c, "k", compute)
	for _, r := range results {
		check.Equal(t, 7, r.n)
	}
	check.True(t, calls.Load() >= 1)
	check.Equal(t, 1, c.Stats().Entries)
	check.Equal(t, 7, cached.n)
}

func TestKey_OrderIndependent(t *testing.T) {
	a, err := Key("kpis", map[string]any{"statuses": []string{"a"}, "institutionCode": "1"})
	assert.NoError(t, err)
	b, err := Key("kpis", map[string]any{"institutionCode": "1", "statuses": []string{"a"}})
	assert.NoError(t, err)
	other, err := Key("dashboard", map[string]any{"institutionCode": "1", "statuses": []string{"a"}})
	assert.NoError(t, err)

	check.Equal(t, a, b)
	check.NotEqual(t, a, other)
}
