// Package gadefaults holds the process-lifetime default GA control
// parameters, mirroring the source library's global gaControl object
// (spec design note: "Mutable global defaults"). Drivers snapshot these
// values once at construction so that concurrent runs started at
// different times never see a default changed by another run mid-flight.
package gadefaults

import "sync"

// Control is the set of tunables a run falls back to when the caller
// does not supply an explicit value.
type Control struct {
	PopSize         int
	Pcrossover      float64
	Pmutation       float64
	ElitismFraction float64
	MaxIter         int
	NumIslands      int
	MigrationRate   float64
	MigrationInterval int
	Poptim          float64
	Pressel         float64
	ParallelWorkers int
}

func builtin() Control {
	return Control{
		PopSize:           50,
		Pcrossover:        0.8,
		Pmutation:         0.1,
		ElitismFraction:   0.05,
		MaxIter:           100,
		NumIslands:        4,
		MigrationRate:     0.10,
		MigrationInterval: 10,
		Poptim:            0.05,
		Pressel:           0.5,
		ParallelWorkers:   0,
	}
}

var (
	mu      sync.RWMutex
	current = builtin()
)

// Get returns a copy of the current process-lifetime defaults.
func Get() Control {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Set replaces the process-lifetime defaults. Existing runs that already
// snapshotted a Control are unaffected.
func Set(c Control) {
	mu.Lock()
	defer mu.Unlock()
	current = c
}

// Reset restores the built-in defaults, mainly useful between tests.
func Reset() {
	Set(builtin())
}
