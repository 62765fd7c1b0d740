// Package util holds small hashing and concurrency helpers shared by the
// other packages.
package util

import "sync"

// A Gate limits concurrency. Every gate has a maximum number of goroutines
// to allow through at a time. Work is started with Go(), which blocks the
// caller until there is room, and Wait() blocks until everything started
// has finished.
type Gate struct {
	c  chan struct{}
	wg sync.WaitGroup
}

// NewGate returns a Gate which runs at most n functions at a time. A value
// of n less than 1 is treated as 1.
func NewGate(n int) *Gate {
	if n < 1 {
		n = 1
	}
	return &Gate{c: make(chan struct{}, n)}
}

// Enter is called at the beginning of the section to be protected by
// the gate, and will block the calling goroutine until there are less than
// n goroutines inside.
// It is safe to call this from multiple goroutines.
func (g *Gate) Enter() {
	g.c <- struct{}{}
}

// Leave marks a goroutine outside the critical section. It is important to
// balance each call to Enter with a call to Leave.
func (g *Gate) Leave() {
	<-g.c
}

// Go waits for room in the gate and then runs f in a new goroutine.
func (g *Gate) Go(f func()) {
	g.Enter()
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.Leave()
		f()
	}()
}

// Wait blocks until every function started by Go has returned.
func (g *Gate) Wait() {
	g.wg.Wait()
}
