package opmon

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
	"github.com/xiaonanln/gwscope/engine/gwlog"
	"github.com/xiaonanln/gwscope/engine/gwutils"
)

// CollectProcessStats samples cpu & memory of current process into gauges until ctx is done
func CollectProcessStats(ctx context.Context, collectInterval time.Duration) {
	pid := os.Getpid()
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		gwlog.Errorf("opmon: can not find server process: pid = %v: %s", pid, err)
		return
	}
	gwlog.Infof("opmon: found server process: %s", p)

	go gwutils.RepeatUntilPanicless(func() {
		ticker := time.NewTicker(collectInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			sampleProcess(ctx, p)
		}
	})
}

func sampleProcess(ctx context.Context, p *process.Process) {
	pcnt, err := p.CPUPercentWithContext(ctx)
	if err != nil {
		gwlog.Warnf("opmon: get process cpu percent failed: %s", err)
	} else {
		processCPUPercent.Set(pcnt)
	}

	mem, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		gwlog.Warnf("opmon: get process memory failed: %s", err)
	} else {
		processRSS.Set(float64(mem.RSS))
	}
}
