package kernel

import (
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-vrtos/kernel/status"
	"github.com/joeycumines/go-vrtos/kernel/logging"
)

// SchedulerType selects one of the three scheduling policies.
type SchedulerType int

const (
	// SchedulerFixedPriority is the default: strict fixed-priority
	// preemptive scheduling with FIFO tie-break.
	SchedulerFixedPriority SchedulerType = iota
	// SchedulerCooperative runs one FIFO ready list with no preemption.
	SchedulerCooperative
	// SchedulerRoundRobin time-slices equal-priority tasks.
	SchedulerRoundRobin
)

// Defaults mirror the tunables documented on Config.
const (
	DefaultTickHz          = 1000
	DefaultMaxTasks        = 8
	DefaultMaxPriorities   = 8
	DefaultIdlePriority    = 0
	DefaultStackSize       = 1024
	MinStackSize           = 128
	DefaultTotalHeap       = 16384
	DefaultTimeSliceTicks  = 20
	DefaultStackCanary     = 0xC0DEC0DE
	DefaultMaxInheritDepth = 16
)

// Timeout sentinels for blocking calls.
const (
	NoWait   = 0
	MaxWait  = ^uint32(0)
	infinity = MaxWait
)

// Config holds every compile-time-style tunable the kernel needs.
type Config struct {
	TickHz          int
	MaxTasks        int
	MaxPriorities   int
	IdlePriority    int
	DefaultStack    int
	MinStack        int
	TotalHeap       int
	TimeSliceTicks  uint32
	SchedulerType   SchedulerType
	StackCanary     uint32
	MaxInheritDepth int

	Logger logging.Logger

	// FaultRateLimit bounds how often a recurring fault of the same
	// category is logged. DefaultConfig allows at most one log line per
	// category per second; a nil or empty map disables rate limiting.
	FaultRateLimit map[time.Duration]int

	// OnAssert, if non-nil, is invoked for every rejected state transition
	// or other programming-error-class condition, in addition to the normal
	// Logger.Warning call. Production embedders typically wire this to a hard
	// fault/reset path; the default is nil (no-op).
	OnAssert func(st status.Status, detail string)
}

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		TickHz:          DefaultTickHz,
		MaxTasks:        DefaultMaxTasks,
		MaxPriorities:   DefaultMaxPriorities,
		IdlePriority:    DefaultIdlePriority,
		DefaultStack:    DefaultStackSize,
		MinStack:        MinStackSize,
		TotalHeap:       DefaultTotalHeap,
		TimeSliceTicks:  DefaultTimeSliceTicks,
		SchedulerType:   SchedulerFixedPriority,
		StackCanary:     DefaultStackCanary,
		MaxInheritDepth: DefaultMaxInheritDepth,
		Logger:          logging.NewStumpy(nil),
		FaultRateLimit:  map[time.Duration]int{time.Second: 1},
	}
}

// Option configures a Config, applied in order over DefaultConfig's values:
// a function wrapped behind a named type so construction sites read as
// options, and validation happens once, in New, rather than scattered
// across the zero-value struct.
type Option func(*Config) error

// WithTickHz overrides TickHz.
func WithTickHz(hz int) Option {
	return func(c *Config) error {
		if hz <= 0 {
			return status.New(status.InvalidParam, "TickHz must be positive", nil)
		}
		c.TickHz = hz
		return nil
	}
}

// WithMaxTasks overrides MaxTasks (the TCB pool size).
func WithMaxTasks(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return status.New(status.InvalidParam, "MaxTasks must be positive", nil)
		}
		c.MaxTasks = n
		return nil
	}
}

// WithMaxPriorities overrides MaxPriorities.
func WithMaxPriorities(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return status.New(status.InvalidParam, "MaxPriorities must be positive", nil)
		}
		c.MaxPriorities = n
		return nil
	}
}

// WithStackSizes overrides DefaultStack and MinStack.
func WithStackSizes(def, min int) Option {
	return func(c *Config) error {
		if min <= 0 || def < min {
			return status.New(status.InvalidParam, "invalid stack size bounds", nil)
		}
		c.DefaultStack = def
		c.MinStack = min
		return nil
	}
}

// WithTotalHeap overrides the arena size.
func WithTotalHeap(bytes int) Option {
	return func(c *Config) error {
		if bytes <= 0 {
			return status.New(status.InvalidParam, "TotalHeap must be positive", nil)
		}
		c.TotalHeap = bytes
		return nil
	}
}

// WithTimeSliceTicks overrides the round-robin slice length.
func WithTimeSliceTicks(n uint32) Option {
	return func(c *Config) error {
		if n == 0 {
			return status.New(status.InvalidParam, "TimeSliceTicks must be positive", nil)
		}
		c.TimeSliceTicks = n
		return nil
	}
}

// WithScheduler selects the scheduling policy.
func WithScheduler(t SchedulerType) Option {
	return func(c *Config) error {
		switch t {
		case SchedulerFixedPriority, SchedulerCooperative, SchedulerRoundRobin:
			c.SchedulerType = t
			return nil
		default:
			return status.New(status.InvalidParam, "unknown scheduler type", nil)
		}
	}
}

// WithLogger overrides the logging.Logger used for lifecycle/fault events.
// Passing logging.Nop silences kernel logging entirely.
func WithLogger(l logging.Logger) Option {
	return func(c *Config) error {
		if l == nil {
			return status.New(status.InvalidParam, "logger must not be nil", nil)
		}
		c.Logger = l
		return nil
	}
}

// WithMaxInheritDepth overrides the priority-inheritance walk bound.
func WithMaxInheritDepth(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return status.New(status.InvalidParam, "MaxInheritDepth must be positive", nil)
		}
		c.MaxInheritDepth = n
		return nil
	}
}

// resolve applies options over DefaultConfig, returning the first error
// encountered, if any.
func resolve(opts []Option) (Config, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// newFaultLimiter builds the catrate.Limiter backing Config.FaultRateLimit,
// or nil if rate limiting is disabled (an empty map).
func newFaultLimiter(rates map[time.Duration]int) *catrate.Limiter {
	if len(rates) == 0 {
		return nil
	}
	return catrate.NewLimiter(rates)
}
