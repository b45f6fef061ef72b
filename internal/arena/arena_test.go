package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Arena_CloseRunsReleasesInReverseOrder(t *testing.T) {
	assert := assert.New(t)

	var order []int
	a := New()
	a.Register(func() { order = append(order, 1) })
	a.Register(func() { order = append(order, 2) })
	a.Register(func() { order = append(order, 3) })

	err := a.Close()

	assert.NoError(err)
	assert.Equal([]int{3, 2, 1}, order)
}

func Test_Arena_CloseIsIdempotent(t *testing.T) {
	assert := assert.New(t)

	calls := 0
	a := New()
	a.Register(func() { calls++ })

	assert.NoError(a.Close())
	assert.NoError(a.Close())
	assert.Equal(1, calls)
}

func Test_Arena_RegisterAfterCloseRunsImmediately(t *testing.T) {
	assert := assert.New(t)

	a := New()
	assert.NoError(a.Close())

	ran := false
	a.Register(func() { ran = true })

	assert.True(ran)
}

func Test_Arena_ResetRunsReleasesButStaysOpen(t *testing.T) {
	assert := assert.New(t)

	calls := 0
	a := New()
	a.Register(func() { calls++ })

	a.Reset()
	assert.Equal(1, calls)

	// further registrations after Reset still work since the arena is not closed
	a.Register(func() { calls++ })
	assert.NoError(a.Close())
	assert.Equal(2, calls)
}

func Test_Arena_RegisterNilIsNoOp(t *testing.T) {
	a := New()
	a.Register(nil)
	assert.NoError(t, a.Close())
}
