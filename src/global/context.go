package global

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seventv/PipelineNotifier/src/configure"
)

type Context interface {
	context.Context
	Instances() *Instances
	Config() *configure.Config
	AddTask(n int)
	DoneTask()
	InFlight() int64
	Wait()
	WaitTimeout(d time.Duration) bool
}

type GlobalContext struct {
	context.Context
	insts *Instances
	cfg   *configure.Config

	wg       *sync.WaitGroup
	inFlight int64
}

func New(ctx context.Context, config *configure.Config) Context {
	return &GlobalContext{
		Context: ctx,
		insts:   &Instances{},
		cfg:     config,
		wg:      &sync.WaitGroup{},
	}
}

func (g *GlobalContext) Instances() *Instances {
	return g.insts
}

func (g *GlobalContext) Config() *configure.Config {
	return g.cfg
}

func (g *GlobalContext) AddTask(n int) {
	atomic.AddInt64(&g.inFlight, int64(n))
	g.wg.Add(n)
}

func (g *GlobalContext) DoneTask() {
	atomic.AddInt64(&g.inFlight, -1)
	g.wg.Done()
}

// InFlight is the number of notifications still being processed.
func (g *GlobalContext) InFlight() int64 {
	return atomic.LoadInt64(&g.inFlight)
}

func (g *GlobalContext) Wait() {
	g.wg.Wait()
}

// WaitTimeout reports whether every task finished within d.
func (g *GlobalContext) WaitTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
