// Package port defines the contract between the kernel core and the
// underlying hardware: tick generation, critical-section masking, and
// initial task dispatch. Real MCU trampolines (opcode-level context-switch
// frames) are out of scope — this package specifies the contract and
// provides one concrete, portable implementation (HostPort) built on
// goroutines and channels rather than assembly.
package port

import "context"

// Frame is the opaque saved-context handle a Port hands back from
// BuildInitialFrame and later restores when dispatching a task.
// HostPort's frame is just the task's entry closure; a real MCU
// port's frame would be a stack pointer into a hand-laid exception frame.
type Frame any

// Port is the contract every backend must satisfy. The kernel core depends
// only on this interface, never on a concrete backend, so swapping HostPort
// for a real MCU trampoline requires no change to kernel/*.
type Port interface {
	// Init sets up context-switch and tick interrupt priorities and
	// zeroes critical-nesting state. Called once, before StartTick.
	// onYield is the kernel's registered handler for the context-switch
	// exception; real hardware wires the exception vector once at link
	// time, which this registration call stands in for.
	Init(onYield func())

	// StartTick programs the periodic timer to fire at tickHz. onTick is
	// called once per tick from the port's own goroutine/interrupt
	// context; the kernel registers its tick handler here.
	StartTick(ctx context.Context, tickHz int, onTick func())

	// BuildInitialFrame lays out the state needed to enter fn(param) in
	// thread mode. stackTop is advisory for backends that care about stack
	// geometry; HostPort ignores it.
	BuildInitialFrame(stackTop uintptr, fn func(param any), param any) Frame

	// StartFirstTask transfers control to frame and never returns on a
	// real MCU; HostPort's version starts the task's goroutine and
	// returns immediately, so the calling goroutine (the caller of
	// Kernel.Start) can return to its own caller instead of blocking
	// forever on a simulated core.
	StartFirstTask(frame Frame)

	// EnterCritical/ExitCritical mask/unmask interrupts at or below the
	// kernel priority threshold. HostPort backs these with its own
	// non-reentrant mutex, standing in for BASEPRI manipulation; its
	// critical section does not nest, and a second EnterCritical from the
	// goroutine already holding it deadlocks.
	EnterCritical()
	ExitCritical()

	// YieldNow pends the context-switch exception. HostPort posts a signal the
	// kernel's scheduling loop observes.
	YieldNow()
}
