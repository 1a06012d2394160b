package port

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-longpoll"
)

// signalKind distinguishes the two events HostPort multiplexes onto one
// channel: a tick firing, or a task requesting YieldNow.
type signalKind int

const (
	sigTick signalKind = iota
	sigYield
)

// HostPort is the one concrete Port implementation this module ships.
// It runs on goroutines and channels: the kernel critical section is a
// plain mutex, "interrupts" are a channel of pending signals drained by a
// dispatcher goroutine, and BuildInitialFrame/StartFirstTask start a task's
// Go closure on its own goroutine rather than restoring CPU registers.
// DispatchConfig tunes how many pending signals the dispatcher drains per
// pass; it is forwarded directly to longpoll.Channel, which is what actually
// coalesces a run of pending ticks/yields accumulated while the kernel
// critical section was held, rather than waking the dispatcher loop once per
// signal.
type HostPort struct {
	DispatchConfig *longpoll.ChannelConfig

	gate sync.Mutex
	// nesting is bookkeeping only: this port's calling convention never
	// actually re-enters EnterCritical from the same goroutine (the
	// kernel's own Lock/Unlock wrap every public entry point exactly
	// once), so gate is a plain non-reentrant mutex. nesting only counts
	// current holders for diagnostics and tests; a goroutine that calls
	// EnterCritical again while already holding gate deadlocks on it.
	nesting int32

	mu      sync.Mutex
	sig     chan signalKind
	onTick  func()
	onYield func()
}

// NewHostPort constructs a HostPort with default dispatch batching.
func NewHostPort() *HostPort {
	return &HostPort{sig: make(chan signalKind, 256)}
}

func (p *HostPort) Init(onYield func()) {
	p.mu.Lock()
	p.onYield = onYield
	p.mu.Unlock()
	atomic.StoreInt32(&p.nesting, 0)
}

// StartTick launches the ticker goroutine and the signal dispatcher.
// Both exit when ctx is cancelled.
func (p *HostPort) StartTick(ctx context.Context, tickHz int, onTick func()) {
	p.mu.Lock()
	p.onTick = onTick
	p.mu.Unlock()

	if tickHz <= 0 {
		tickHz = 1
	}
	go p.tickLoop(ctx, time.Second/time.Duration(tickHz))
	go p.dispatchLoop(ctx)
}

func (p *HostPort) tickLoop(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.post(sigTick)
		}
	}
}

// post enqueues a signal, dropping it if the dispatcher has fallen
// further behind than the channel's buffer — a real tick timer would
// likewise lose ticks it fired faster than the kernel could service.
func (p *HostPort) post(kind signalKind) {
	select {
	case p.sig <- kind:
	default:
	}
}

// dispatchLoop drains pending signals in batches via longpoll.Channel,
// invoking the matching registered handler for each. A batch pass
// returns once it has drained at least DispatchConfig.MinSize (or hit its
// PartialTimeout) and at most MaxSize, so a burst of ticks/yields queued
// while a task held the critical section is serviced efficiently in one
// wake rather than one goroutine-scheduler trip per signal.
func (p *HostPort) dispatchLoop(ctx context.Context) {
	for {
		err := longpoll.Channel(ctx, p.DispatchConfig, p.sig, func(kind signalKind) error {
			switch kind {
			case sigTick:
				if onTick := p.loadOnTick(); onTick != nil {
					onTick()
				}
			case sigYield:
				if onYield := p.loadOnYield(); onYield != nil {
					onYield()
				}
			}
			return nil
		})
		if err != nil {
			return
		}
	}
}

func (p *HostPort) loadOnTick() func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onTick
}

func (p *HostPort) loadOnYield() func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onYield
}

// hostFrame is a task's entry point bundled with its parameter; HostPort
// has no register file to lay out, so BuildInitialFrame just closes over
// the two.
type hostFrame struct {
	fn    func(param any)
	param any
}

func (p *HostPort) BuildInitialFrame(_ uintptr, fn func(param any), param any) Frame {
	return hostFrame{fn: fn, param: param}
}

// StartFirstTask launches frame's entry function on its own goroutine and
// returns immediately; it never blocks. The kernel hands the task its
// Resume token after this call returns, so the goroutine's first receive
// waits until then.
func (p *HostPort) StartFirstTask(frame Frame) {
	f := frame.(hostFrame)
	go f.fn(f.param)
}

func (p *HostPort) EnterCritical() {
	p.gate.Lock()
	atomic.AddInt32(&p.nesting, 1)
}

func (p *HostPort) ExitCritical() {
	atomic.AddInt32(&p.nesting, -1)
	p.gate.Unlock()
}

// YieldNow posts a yield signal for the dispatcher to service. Each call
// that finds room in the signal buffer leads to one handler invocation;
// a call made while the buffer is full is dropped by post.
func (p *HostPort) YieldNow() {
	p.post(sigYield)
}
