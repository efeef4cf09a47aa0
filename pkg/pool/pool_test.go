package pool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

type item struct {
	n int
}

func TestPool_ResetAndStats(t *testing.T) {
	p := New(func() *item { return &item{} }, func(i *item) { i.n = 0 })

	a := p.Get()
	a.n = 42
	_, inUse, gets, _ := p.Stats()
	assert.Equal(t, int64(1), inUse)
	assert.Equal(t, int64(1), gets)

	p.Put(a)
	assert.Equal(t, 0, a.n, "reset runs on put")

	allocated, inUse, _, dropped := p.Stats()
	assert.GreaterOrEqual(t, allocated, int64(1))
	assert.Equal(t, int64(0), inUse)
	assert.Equal(t, int64(0), dropped)
}

func TestPool_Keep(t *testing.T) {
	p := New(func() *item { return &item{} }, nil).WithKeep(func(i *item) bool { return i.n < 10 })

	big := p.Get()
	big.n = 11
	p.Put(big)

	_, _, _, dropped := p.Stats()
	assert.Equal(t, int64(1), dropped)
}

func TestBuffers(t *testing.T) {
	buf := GetBuffer()
	assert.Equal(t, 0, buf.Len())
	buf.WriteString("rows")
	PutBuffer(buf)
	PutBuffer(nil)

	huge := bytes.NewBuffer(make([]byte, 0, MaxBufferSize+1))
	_, _, _, before := Buffers.Stats()
	PutBuffer(huge)
	_, _, _, after := Buffers.Stats()
	assert.Equal(t, before+1, after)

	again := GetBuffer()
	assert.Equal(t, 0, again.Len(), "pooled buffers come back empty")
	PutBuffer(again)
}
