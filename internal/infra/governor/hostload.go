package governor

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// LoadSample is one observation of host utilization, in percent.
type LoadSample struct {
	CPUPercent    float64
	MemoryPercent float64
}

// Sampler yields the current host load. Injected so tests can simulate load.
type Sampler func(ctx context.Context) (LoadSample, error)

// HostSampler reads live CPU and memory utilization.
func HostSampler(ctx context.Context) (LoadSample, error) {
	percents, err := cpu.PercentWithContext(ctx, 100*time.Millisecond, false)
	if err != nil {
		return LoadSample{}, err
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return LoadSample{}, err
	}
	var cpuPct float64
	if len(percents) > 0 {
		cpuPct = percents[0]
	}
	return LoadSample{CPUPercent: cpuPct, MemoryPercent: vm.UsedPercent}, nil
}

// baseCapacity sizes the total permit budget from host resources: each CPU
// core carries 4 workflows, each GB of memory 2, whichever is tighter,
// clamped to [10, 100]. Falls back to 20 when the host cannot be probed.
func baseCapacity() int64 {
	cpus, err := cpu.Counts(true)
	if err != nil || cpus <= 0 {
		return 20
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 20
	}
	cpuBased := int64(cpus) * 4
	memBased := int64(vm.Total>>30) * 2

	base := cpuBased
	if memBased < base {
		base = memBased
	}
	if base < 10 {
		base = 10
	}
	if base > 100 {
		base = 100
	}
	return base
}
