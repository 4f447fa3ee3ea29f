package session

import "sync"

// State is one point in the Session's lifecycle.
type State string

const (
	StateInit       State = "init"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateDraining   State = "draining"
	StateTerminated State = "terminated"
)

type stateBox struct {
	mu sync.Mutex
	s  State
}

func newStateBox() *stateBox {
	return &stateBox{s: StateInit}
}

func (b *stateBox) set(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.s = s
}

func (b *stateBox) get() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.s
}
