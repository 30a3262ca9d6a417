package pool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scratch struct {
	buf []byte
}

func TestPool(t *testing.T) {
	created := 0
	p := New(
		func() *scratch { created++; return &scratch{buf: make([]byte, 0, 16)} },
		func(s *scratch) { s.buf = s.buf[:0] },
	)

	s := p.Get()
	require.NotNil(t, s)
	s.buf = append(s.buf, "hello"...)
	p.Put(s)

	// sync.Pool may drop values so only the reset contract is asserted.
	again := p.Get()
	assert.Empty(t, again.buf)
	assert.GreaterOrEqual(t, created, 1)
	p.Put(nil)
}

func TestWith(t *testing.T) {
	reset := 0
	p := New(func() *scratch { return &scratch{} }, func(*scratch) { reset++ })

	boom := errors.New("boom")
	err := p.With(func(s *scratch) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, reset)

	assert.Panics(t, func() {
		_ = p.With(func(*scratch) error { panic("bad") })
	})
	assert.Equal(t, 2, reset)
}
