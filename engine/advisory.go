package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/teranos/quire/logger"
)

// memoryPressurePct is the used-memory percentage above which dispatch logs
// a pressure warning. Executors routinely hold whole artifacts in memory, so
// sustained pressure here usually precedes an OOM kill mid-run.
const memoryPressurePct = 90.0

// advisoryInterval throttles the sampling; dispatch can be hot
const advisoryInterval = 30 * time.Second

// memoryAdvisory samples system memory at dispatch time and warns once per
// interval under pressure. Advisory only: it never blocks a dispatch.
type memoryAdvisory struct {
	mu      sync.Mutex
	lastRun time.Time
}

func newMemoryAdvisory() *memoryAdvisory {
	return &memoryAdvisory{}
}

func (a *memoryAdvisory) check() {
	a.mu.Lock()
	if time.Since(a.lastRun) < advisoryInterval {
		a.mu.Unlock()
		return
	}
	a.lastRun = time.Now()
	a.mu.Unlock()

	vm, err := mem.VirtualMemory()
	if err != nil {
		return
	}
	if vm.UsedPercent > memoryPressurePct {
		logger.Logger.Warnw(fmt.Sprintf("memory pressure: %.1f%% used, executors may be killed", vm.UsedPercent),
			logger.FieldComponent, "engine",
		)
	}
}
