package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionLocksAreReclaimed(t *testing.T) {
	r := NewRelay(nil, nil, nil, nil)

	unlockA := r.lockSession("a")
	unlockB := r.lockSession("b")
	assert.Len(t, r.locks, 2)

	unlockA()
	unlockB()
	assert.Empty(t, r.locks, "released locks must not linger")
}

func TestSessionLockSerializesSameID(t *testing.T) {
	r := NewRelay(nil, nil, nil, nil)

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := r.lockSession("s")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, counter)
	assert.Empty(t, r.locks)
}
