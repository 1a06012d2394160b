// Package kernel is the preemptive real-time kernel core: task creation,
// the tick/delay engine, the context-switch protocol, and the glue that
// binds the scheduler, sync-primitive, timer, and port layers into one
// runnable system. Hosted-Go note on preemption: a real Cortex-M port
// preempts a running task mid-instruction via a hardware exception. Go gives
// no equivalent hook to interrupt an arbitrary running goroutine from
// outside, so this kernel's HostPort approximates preemption with a
// goroutine-per-task baton: exactly one task goroutine ever holds the "run
// token" (its Resume channel), and a pending preemption is only acted on the
// next time that goroutine calls back into the kernel (YieldNow, a delay, or
// a blocking primitive). A CPU-bound task that never calls back in will run
// to completion before anything else gets a turn. Tasks intended to be
// fairly time-sliced under RoundRobin should call YieldNow periodically.
package kernel

import (
	"context"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-vrtos/kernel/logging"
	"github.com/joeycumines/go-vrtos/kernel/port"
	"github.com/joeycumines/go-vrtos/kernel/primitives"
	"github.com/joeycumines/go-vrtos/kernel/scheduler"
	"github.com/joeycumines/go-vrtos/kernel/status"
	"github.com/joeycumines/go-vrtos/kernel/task"
	"github.com/joeycumines/go-vrtos/kernel/timer"
)

// State is the kernel's own lifecycle state, distinct from any individual
// task's State.
type State int

const (
	StateInactive State = iota
	StateReady
	StateRunning
	StateSuspended
)

// Kernel is the process-wide singleton kernel core. Construct with New;
// every exported method is itself safe to call from any task's goroutine or
// from test/setup code, acquiring the critical section as needed.
type Kernel struct {
	cfg    Config
	port   port.Port
	sched  scheduler.Scheduler
	arena  *arena
	timers *timer.Service
	logger logging.Logger
	faults *catrate.Limiter

	tasks      map[task.Handle]*task.Task
	frames     map[task.Handle]port.Frame
	nextHandle task.Handle
	started    bool

	idle    *task.Task
	current *task.Task
	tick    uint32
	state   State

	cancel context.CancelFunc
}

// New constructs a Kernel from DefaultConfig adjusted by opts, and
// creates the idle task.
func New(opts ...Option) (*Kernel, error) {
	cfg, err := resolve(opts)
	if err != nil {
		return nil, err
	}

	k := &Kernel{
		cfg:    cfg,
		arena:  newArena(cfg.TotalHeap),
		port:   port.NewHostPort(),
		timers: &timer.Service{},
		logger: cfg.Logger,
		faults: newFaultLimiter(cfg.FaultRateLimit),
		tasks:  make(map[task.Handle]*task.Task),
		frames: make(map[task.Handle]port.Frame),
	}
	k.nextHandle = 1

	switch cfg.SchedulerType {
	case SchedulerCooperative:
		k.sched = scheduler.NewCooperative()
	case SchedulerRoundRobin:
		k.sched = scheduler.NewRoundRobin(cfg.TimeSliceTicks)
	default:
		k.sched = scheduler.NewFixedPriority(cfg.MaxPriorities)
	}

	idleHandle, st := k.taskCreateLocked("idle", k.idleLoop, nil, cfg.IdlePriority, cfg.MinStack)
	if st != status.Success {
		return nil, status.New(st, "failed to create idle task", nil)
	}
	k.idle = k.tasks[idleHandle]

	return k, nil
}

// idleLoop is the idle task's entry: a wait-for-interrupt stand-in that
// simply yields forever.
func (k *Kernel) idleLoop(any) {
	for {
		k.YieldNow()
	}
}

// Start transitions the kernel to Running, launches the port's tick
// source, and dispatches the first task. It does not block: task
// execution proceeds on its own goroutines, and Start returns once the
// first task has been handed the run token.
func (k *Kernel) Start(ctx context.Context) status.Status {
	k.Lock()
	if k.state != StateInactive {
		k.Unlock()
		return status.InvalidState
	}

	runCtx, cancel := context.WithCancel(ctx)
	k.cancel = cancel
	k.state = StateRunning

	first := k.sched.PickNext()
	if first == nil {
		first = k.idle
	}
	k.sched.ReadyRemove(first)
	first.State = task.Running
	k.current = first

	// Exactly one task — whichever the scheduler picked to run first —
	// is dispatched through the port's dedicated start-first-task call;
	// every other already-created task's goroutine is launched directly,
	// since the port contract has no generic "launch a frame" operation
	// for anything but the very first one (on real hardware every later
	// task is entered via the ordinary context-switch restore path
	// instead).
	for handle, t := range k.tasks {
		frame, ok := k.frames[handle]
		delete(k.frames, handle)
		if t == first {
			if ok {
				k.port.StartFirstTask(frame)
			}
			continue
		}
		go k.runTrampoline(t)
	}
	k.started = true

	k.port.Init(k.onYieldSignal)
	k.port.StartTick(runCtx, k.cfg.TickHz, k.tickHandler)

	k.Unlock()

	first.Resume <- struct{}{}

	return status.Success
}

// Stop halts the tick source. Tasks already started continue to exist as
// goroutines parked on their Resume channel; there is no teardown of
// task state.
func (k *Kernel) Stop() {
	k.Lock()
	defer k.Unlock()
	if k.cancel != nil {
		k.cancel()
	}
	k.state = StateSuspended
}

// runTrampoline is every task's goroutine body except the very first
// one dispatched: park until handed the run token, run the task's entry
// function once, then retire quietly. The first task instead runs this
// same sequence wrapped inside the closure the port's BuildInitialFrame
// captured, entered via StartFirstTask.
func (k *Kernel) runTrampoline(t *task.Task) {
	<-t.Resume
	t.Fn(t.Param)
	k.taskExit(t)
}

func (k *Kernel) taskExit(t *task.Task) {
	k.Lock()
	t.State = task.Deleted
	close(t.Done)
	k.switchAway(t)
	k.Unlock()
}

// onYieldSignal is registered with the port as the context-switch
// exception handler. It exists for contract fidelity; in this hosted model
// the actual switch already happens synchronously inside
// YieldNow/DelayTicks/Block on the calling task's own goroutine, so there is
// nothing further to do here beyond the documented limitation in the package
// doc comment.
func (k *Kernel) onYieldSignal() {}

// Lock acquires the kernel's critical section.
func (k *Kernel) Lock() { k.port.EnterCritical() }

// Unlock releases the kernel's critical section.
func (k *Kernel) Unlock() { k.port.ExitCritical() }

// Now returns the current tick count. Safe to call without holding the
// lock; GetTick is the public wrapper.
func (k *Kernel) Now() uint32 {
	k.Lock()
	defer k.Unlock()
	return k.tick
}

// Current returns the calling task's TCB, i.e. the kernel's current
// task. Must be called with the lock held.
func (k *Kernel) Current() *task.Task { return k.current }

// Block implements primitives.Blocker. Called with the lock held; returns
// with it held again.
func (k *Kernel) Block(t *task.Task, timeoutTicks uint32) status.Status {
	t.State = task.Blocked
	t.WakeStatus = status.Success
	if timeoutTicks != MaxWait {
		k.sched.DelayedPush(t, k.tick, timeoutTicks)
	}
	k.doSwitch()
	return t.WakeStatus
}

// Wake implements primitives.Blocker: moves t from Blocked to Ready,
// removing it from the delayed list if present.
func (k *Kernel) Wake(t *task.Task) {
	if t.State != task.Blocked {
		return
	}
	k.sched.DelayedRemove(t)
	k.readyTask(t)
}

// SetEffPriority implements primitives.Blocker: changes t's effective
// priority, re-filing it within the scheduler's ready structure first if
// it is presently Ready (removing it from its old priority bucket before
// the change, then re-pushing it into the new one).
func (k *Kernel) SetEffPriority(t *task.Task, p int) {
	if t.State == task.Ready {
		k.sched.ReadyRemove(t)
		t.EffPriority = p
		k.sched.ReadyPush(t)
		return
	}
	t.EffPriority = p
}

// Fault implements primitives.Blocker: routes a Fatal-category condition
// through the kernel's logger and rate limiter.
func (k *Kernel) Fault(category, msg string) {
	// catrate.Limiter.Allow tolerates a nil receiver (returns "always
	// allowed"), matching FaultRateLimit being optional.
	if _, allowed := k.faults.Allow(category); allowed {
		k.logger.Fault(msg, logging.Str("category", category), logging.Uint64("tick", uint64(k.tick)))
	}
}

// readyTask transitions t to Ready, pushes it to the scheduler, and
// immediately switches away if the scheduler says t should preempt
// whatever is currently Running. Safe to call only from the currently
// Running task's own goroutine (TaskCreate, TaskResume, Wake), never
// from the tick/dispatch goroutine — see readyTaskFromTick.
func (k *Kernel) readyTask(t *task.Task) {
	t.State = task.Ready
	k.sched.ReadyPush(t)
	if k.sched.ShouldPreempt(k.current, t) {
		k.doSwitch()
	}
}

// readyTaskFromTick transitions t to Ready without attempting an
// immediate switch: called from the port's tick goroutine, which is not
// any task's own execution context and so cannot safely park on a
// Resume channel (see the package doc comment's preemption note).
func (k *Kernel) readyTaskFromTick(t *task.Task) {
	t.State = task.Ready
	k.sched.ReadyPush(t)
}

// switchContext pushes the outgoing task back to Ready if it's still
// runnable, asks the scheduler for the next task, and installs it as
// current. Must be called with the lock held.
func (k *Kernel) switchContext() {
	out := k.current
	if out != nil {
		stillReady := out.State != task.Blocked && out.State != task.Suspended && out.State != task.Deleted
		if stillReady {
			out.State = task.Ready
			k.sched.ReadyPush(out)
		}
		k.sched.OnYield(out, stillReady)
	}

	next := k.sched.PickNext()
	if next == nil {
		k.Fault("scheduler", "pick_next returned no task while at least one should be ready")
		return
	}
	k.sched.ReadyRemove(next)
	next.State = task.Running
	k.current = next
}

// doSwitch runs switchContext and, if the Running task actually changed,
// hands the run token to the new current task and parks the outgoing
// task's own goroutine on its Resume channel until it is scheduled
// again. Must be called with the lock held, from the outgoing task's own
// goroutine (i.e. every public suspension point); returns with the lock
// held again.
func (k *Kernel) doSwitch() {
	out := k.current
	k.switchContext()
	next := k.current
	if next == out {
		return
	}
	k.Unlock()
	next.Resume <- struct{}{}
	if out != nil && out.State != task.Deleted {
		<-out.Resume
	}
	k.Lock()
}

// switchAway is doSwitch's variant for a task whose goroutine is about
// to return for good (runTrampoline, after Fn returns): it hands off the
// run token but never waits to be resumed itself, since there is nothing
// left to resume.
func (k *Kernel) switchAway(out *task.Task) {
	k.switchContext()
	next := k.current
	if next != out {
		next.Resume <- struct{}{}
	}
}

// tickHandler is the kernel's tick-path entry: advances the tick counter,
// services software timers, advances the delayed list, and calls
// should_preempt once. Its result is discarded: this runs on the port's own
// goroutine, not any task's, so no switch is requested here, and the
// running task is switched out only when it next calls back into the kernel
// (see the package doc comment).
func (k *Kernel) tickHandler() {
	k.Lock()
	defer k.Unlock()

	k.tick++

	k.timers.Tick(k.tick, k.Unlock, k.Lock)

	for _, t := range k.sched.AdvanceDelayed(k.tick) {
		t.WakeStatus = status.Timeout
		k.readyTaskFromTick(t)
	}

	// ShouldPreempt must still be called once per tick even though its
	// result can't be acted on from this goroutine (see the package doc
	// comment) — for RoundRobin this call is what decrements the
	// time-slice counter.
	k.sched.ShouldPreempt(k.current, nil)
}

// GetTick returns the current tick count.
func (k *Kernel) GetTick() uint32 { return k.Now() }

// YieldNow voluntarily gives up the CPU, letting the scheduler pick
// whichever task should run next — possibly the caller itself again.
// This is the cooperative checkpoint CPU-bound tasks must call
// periodically to be preempted fairly; see the package doc comment.
func (k *Kernel) YieldNow() {
	k.Lock()
	defer k.Unlock()
	k.doSwitch()
}

// DelayTicks blocks the calling task for n ticks; delaying for 0 ticks
// is a no-op.
func (k *Kernel) DelayTicks(n uint32) status.Status {
	if n == 0 {
		return status.Success
	}
	k.Lock()
	defer k.Unlock()
	t := k.current
	if t == nil {
		return status.InvalidState
	}
	return k.Block(t, n)
}

// DelayMs blocks the calling task for at least ms milliseconds, rounding
// up to whole ticks with a floor of 1 tick.
func (k *Kernel) DelayMs(ms uint32) status.Status {
	if ms == 0 {
		return status.Success
	}
	n := (uint64(ms)*uint64(k.cfg.TickHz) + 999) / 1000
	if n < 1 {
		n = 1
	}
	return k.DelayTicks(uint32(n))
}

// TaskCreate allocates a TCB and stack from the arena, builds its
// initial frame, and adds it to the scheduler's ready list.
func (k *Kernel) TaskCreate(fn task.Func, name string, stackSize int, param any, priority int) (task.Handle, status.Status) {
	k.Lock()
	defer k.Unlock()
	return k.taskCreateLocked(name, fn, param, priority, stackSize)
}

func (k *Kernel) taskCreateLocked(name string, fn task.Func, param any, priority, stackSize int) (task.Handle, status.Status) {
	if fn == nil {
		return 0, status.InvalidParam
	}
	if priority < 0 || priority >= k.cfg.MaxPriorities {
		return 0, status.InvalidParam
	}
	if len(k.tasks) >= k.cfg.MaxTasks {
		return 0, status.TooManyTasks
	}

	if stackSize == 0 {
		stackSize = k.cfg.DefaultStack
	}
	if stackSize < k.cfg.MinStack {
		stackSize = k.cfg.MinStack
	}
	stackSize = alignUp8(stackSize)

	stack := k.arena.alloc(stackSize)
	if stack == nil {
		return 0, status.NoMemory
	}

	handle := k.nextHandle
	k.nextHandle++

	t := task.New(handle, name, fn, param, stack, priority)
	k.tasks[handle] = t

	if k.started {
		// The port's frame machinery exists only to dispatch the single
		// first task out of Start; every task created afterward launches
		// the same way Start launches all-but-the-first: directly.
		go k.runTrampoline(t)
	} else {
		k.frames[handle] = k.port.BuildInitialFrame(0, func(any) { k.runTrampoline(t) }, param)
	}

	if k.current != nil {
		k.readyTask(t)
	} else {
		t.State = task.Ready
		k.sched.ReadyPush(t)
	}

	return handle, status.Success
}

// TaskCurrent returns the calling task's handle, or 0 if called outside
// any task context.
func (k *Kernel) TaskCurrent() task.Handle {
	k.Lock()
	defer k.Unlock()
	if k.current == nil {
		return 0
	}
	return k.current.ID
}

// TaskState reports h's execution state.
func (k *Kernel) TaskState(h task.Handle) (task.State, status.Status) {
	k.Lock()
	defer k.Unlock()
	t, ok := k.tasks[h]
	if !ok {
		return 0, status.TaskNotFound
	}
	return t.State, status.Success
}

// TaskPriority reports h's effective priority.
func (k *Kernel) TaskPriority(h task.Handle) (int, status.Status) {
	k.Lock()
	defer k.Unlock()
	t, ok := k.tasks[h]
	if !ok {
		return 0, status.TaskNotFound
	}
	return t.EffPriority, status.Success
}

// TaskSuspend explicitly suspends h; it will not be scheduled until
// TaskResume is called.
func (k *Kernel) TaskSuspend(h task.Handle) status.Status {
	k.Lock()
	defer k.Unlock()
	t, ok := k.tasks[h]
	if !ok {
		return status.TaskNotFound
	}
	switch t.State {
	case task.Ready:
		k.sched.ReadyRemove(t)
		t.State = task.Suspended
	case task.Running:
		t.State = task.Suspended
		k.doSwitch()
	case task.Blocked:
		// A blocked task may be waiting on the delayed list (a timed
		// DelayTicks/DelayMs, or a bounded-timeout primitive wait);
		// suspend forfeits that wait rather than leaving it to fire
		// later and resurrect a task TaskResume hasn't been called on.
		k.sched.DelayedRemove(t)
		t.State = task.Suspended
	default:
		k.logger.Warning("rejected state transition", logging.Str("to", "suspended"), logging.Str("from", t.State.String()))
		if k.cfg.OnAssert != nil {
			k.cfg.OnAssert(status.InvalidState, "suspend from "+t.State.String())
		}
		return status.InvalidState
	}
	return status.Success
}

// TaskResume makes a Suspended task Ready again.
func (k *Kernel) TaskResume(h task.Handle) status.Status {
	k.Lock()
	defer k.Unlock()
	t, ok := k.tasks[h]
	if !ok {
		return status.TaskNotFound
	}
	if t.State != task.Suspended {
		k.logger.Warning("rejected state transition", logging.Str("to", "ready"), logging.Str("from", t.State.String()))
		if k.cfg.OnAssert != nil {
			k.cfg.OnAssert(status.InvalidState, "resume from "+t.State.String())
		}
		return status.InvalidState
	}
	k.readyTask(t)
	return status.Success
}

// TaskCheckStack reports whether h's stack canary is still intact.
func (k *Kernel) TaskCheckStack(h task.Handle) (bool, status.Status) {
	k.Lock()
	defer k.Unlock()
	t, ok := k.tasks[h]
	if !ok {
		return false, status.TaskNotFound
	}
	ok2 := t.CheckCanary()
	if !ok2 {
		k.Fault("stack_overflow", "canary clobbered on task "+t.Name)
	}
	return ok2, status.Success
}

// NewMutex constructs a Mutex bound to this kernel.
func (k *Kernel) NewMutex() *primitives.Mutex {
	return primitives.NewMutex(k, k.cfg.MaxInheritDepth)
}

// NewSemaphore constructs a Semaphore bound to this kernel.
func (k *Kernel) NewSemaphore(initial, max uint32) *primitives.Semaphore {
	return primitives.NewSemaphore(k, initial, max)
}

// NewQueue constructs a Queue of the given item capacity bound to this
// kernel.
func NewQueue[E any](k *Kernel, capacity int) *primitives.Queue[E] {
	return primitives.NewQueue[E](k, capacity)
}

// NewTimer constructs a software timer bound to this kernel.
func (k *Kernel) NewTimer(name string, period uint32, mode timer.Mode, cb timer.Callback, param any) *timer.Timer {
	k.Lock()
	defer k.Unlock()
	h := k.nextHandle
	k.nextHandle++
	return timer.New(h, name, cb, param, period, mode)
}

// TimerStart arms t.
func (k *Kernel) TimerStart(t *timer.Timer) {
	k.Lock()
	defer k.Unlock()
	k.timers.Start(t, k.tick)
}

// TimerStop disarms t.
func (k *Kernel) TimerStop(t *timer.Timer) {
	k.Lock()
	defer k.Unlock()
	k.timers.Stop(t)
}

// TimerChangePeriod updates t's period, rearming it if active.
func (k *Kernel) TimerChangePeriod(t *timer.Timer, period uint32) {
	k.Lock()
	defer k.Unlock()
	k.timers.ChangePeriod(t, period, k.tick)
}

// TimerDelete stops t.
func (k *Kernel) TimerDelete(t *timer.Timer) {
	k.Lock()
	defer k.Unlock()
	k.timers.Delete(t)
}

