package recovery

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker("test", 2, 50*time.Millisecond, nil, zap.NewNop())

	fail := func() (any, error) { return nil, errors.New("boom") }

	ok, _ := b.Call(fail)
	assert.False(t, ok)
	ok, _ = b.Call(fail)
	assert.False(t, ok)

	// Third call should be rejected immediately by the now-open breaker.
	called := false
	ok, _ = b.Call(func() (any, error) {
		called = true
		return nil, nil
	})
	assert.False(t, ok)
	assert.False(t, called)
	assert.Equal(t, "open", b.State())
}

func TestBreaker_HalfOpenRecoversOnSuccess(t *testing.T) {
	b := NewBreaker("test", 1, 10*time.Millisecond, nil, zap.NewNop())

	ok, _ := b.Call(func() (any, error) { return nil, errors.New("boom") })
	assert.False(t, ok)
	assert.Equal(t, "open", b.State())

	time.Sleep(20 * time.Millisecond)

	ok, result := b.Call(func() (any, error) { return "recovered", nil })
	assert.True(t, ok)
	assert.Equal(t, "recovered", result)
	assert.Equal(t, "closed", b.State())
}
