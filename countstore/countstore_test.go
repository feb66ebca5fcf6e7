package countstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemCountStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	c, err := cs.GetCount(ctx, "posts", "acct1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)
	assert.NoError(cs.Increment(ctx, "posts", "acct1"))
	assert.NoError(cs.Increment(ctx, "posts", "acct1"))

	for _, period := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		c, err = cs.GetCount(ctx, "posts", "acct1", period)
		assert.NoError(err)
		assert.Equal(2, c)
	}

	// a different value in the same counter family is independent
	c, err = cs.GetCount(ctx, "posts", "acct2", PeriodHour)
	assert.NoError(err)
	assert.Equal(0, c)

	c, err = cs.GetCountDistinct(ctx, "signup-ip", "10.0.0.1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)
	assert.NoError(cs.IncrementDistinct(ctx, "signup-ip", "10.0.0.1", "acct1"))
	assert.NoError(cs.IncrementDistinct(ctx, "signup-ip", "10.0.0.1", "acct1"))
	assert.NoError(cs.IncrementDistinct(ctx, "signup-ip", "10.0.0.1", "acct1"))
	c, err = cs.GetCountDistinct(ctx, "signup-ip", "10.0.0.1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(1, c)

	assert.NoError(cs.IncrementDistinct(ctx, "signup-ip", "10.0.0.1", "acct2"))
	assert.NoError(cs.IncrementDistinct(ctx, "signup-ip", "10.0.0.1", "acct3"))

	for _, period := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		c, err = cs.GetCountDistinct(ctx, "signup-ip", "10.0.0.1", period)
		assert.NoError(err)
		assert.Equal(3, c)
	}
}

func TestMemCountStoreConcurrent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	// Increment two different values from four goroutines while two more
	// read. The final values are exact; the interleaved reads only assert no
	// error (run with `-race`). A short sleep yields to the scheduler so
	// reads interleave with writes.
	var wg sync.WaitGroup
	fnInc := func(name, val string, times int) {
		for i := 0; i < times; i++ {
			assert.NoError(cs.Increment(ctx, name, val))
			assert.NoError(cs.IncrementDistinct(ctx, name, name, val))
			time.Sleep(time.Nanosecond)
		}
		wg.Done()
	}
	fnRead := func(name, val string, times int) {
		for i := 0; i < times; i++ {
			_, err := cs.GetCount(ctx, name, val, PeriodTotal)
			assert.NoError(err)
			time.Sleep(time.Nanosecond)
		}
		wg.Done()
	}
	wg.Add(6)
	go fnInc("posts", "acct1", 10)
	go fnInc("posts", "acct1", 10)
	go fnRead("posts", "acct1", 10)
	go fnInc("posts", "acct2", 6)
	go fnInc("posts", "acct2", 6)
	go fnRead("posts", "acct2", 6)
	wg.Wait()

	c, err := cs.GetCount(ctx, "posts", "acct1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(20, c)
	c, err = cs.GetCount(ctx, "posts", "acct2", PeriodTotal)
	assert.NoError(err)
	assert.Equal(12, c)

	// distinct counts saw a single value each
	c, err = cs.GetCountDistinct(ctx, "posts", "posts", PeriodTotal)
	assert.NoError(err)
	assert.Equal(1, c)
}
