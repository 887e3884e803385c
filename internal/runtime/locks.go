package runtime

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/rpggio/focusstake/internal/address"
)

// Locks serializes instructions that share an account. Addresses are
// acquired in sorted order so two instructions never wait on each other.
type Locks struct {
	mu    sync.Mutex
	slots map[address.Address]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocks creates an empty lock table.
func NewLocks() *Locks {
	return &Locks{slots: map[address.Address]*slot{}}
}

// Acquire locks every address, waiting until all are free or ctx is done.
// The returned release func unlocks them.
func (l *Locks) Acquire(ctx context.Context, addrs []address.Address) (func(), error) {
	sorted := dedupe(addrs)
	held := make([]address.Address, 0, len(sorted))

	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.unlock(held[i])
		}
	}

	for _, addr := range sorted {
		s := l.ref(addr)
		select {
		case s.ch <- struct{}{}:
			held = append(held, addr)
		case <-ctx.Done():
			l.unref(addr)
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}

func (l *Locks) ref(addr address.Address) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[addr]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[addr] = s
	}
	s.refs++
	return s
}

func (l *Locks) unref(addr address.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.slots[addr]
	s.refs--
	if s.refs == 0 {
		delete(l.slots, addr)
	}
}

func (l *Locks) unlock(addr address.Address) {
	l.mu.Lock()
	s := l.slots[addr]
	l.mu.Unlock()
	<-s.ch
	l.unref(addr)
}

// held reports how many addresses have waiters or holders.
func (l *Locks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func dedupe(addrs []address.Address) []address.Address {
	out := append([]address.Address(nil), addrs...)
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	n := 0
	for i, a := range out {
		if i == 0 || a != out[n-1] {
			out[n] = a
			n++
		}
	}
	return out[:n]
}
