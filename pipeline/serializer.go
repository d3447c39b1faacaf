package pipeline

import (
	"log/slog"
	"sync"
)

// Serializer runs tasks in FIFO order per user while letting distinct users
// proceed fully in parallel. A user's next message only starts after the
// previous one finishes its whole pipeline, chunk delays included.
type Serializer struct {
	mu    sync.Mutex
	users map[string]*userChain
	wg    sync.WaitGroup
}

type userChain struct {
	pending []func()
	running bool
}

// NewSerializer returns an empty serializer.
func NewSerializer() *Serializer {
	return &Serializer{users: make(map[string]*userChain)}
}

// Enqueue appends task to the user's chain, starting a worker goroutine if
// the chain is idle.
func (s *Serializer) Enqueue(userID string, task func()) {
	s.mu.Lock()
	chain, ok := s.users[userID]
	if !ok {
		chain = &userChain{}
		s.users[userID] = chain
	}
	chain.pending = append(chain.pending, task)
	start := !chain.running
	if start {
		chain.running = true
		s.wg.Add(1)
	}
	s.mu.Unlock()

	if start {
		go s.run(userID, chain)
	}
}

func (s *Serializer) run(userID string, chain *userChain) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		if len(chain.pending) == 0 {
			chain.running = false
			s.mu.Unlock()
			return
		}
		task := chain.pending[0]
		chain.pending = chain.pending[1:]
		s.mu.Unlock()

		func() {
			defer func() {
				if r := recover(); r != nil {
					// One message must never take down the listener.
					slog.Error("panic in user task", slog.String("user", userID), slog.Any("panic", r))
				}
			}()
			task()
		}()
	}
}

// Sweep removes idle chains so departed users don't pin map entries.
func (s *Serializer) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, chain := range s.users {
		if !chain.running && len(chain.pending) == 0 {
			delete(s.users, userID)
		}
	}
}

// Active reports users with a running or pending chain.
func (s *Serializer) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, chain := range s.users {
		if chain.running || len(chain.pending) > 0 {
			n++
		}
	}
	return n
}

// Wait blocks until all currently running chains drain. Shutdown path.
func (s *Serializer) Wait() {
	s.wg.Wait()
}
