// Package hardware 读取宿主机的 CPU 与内存信息。
package hardware

import (
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/lk2023060901/pson-go/pkg/log"
)

var (
	cpuOnce sync.Once
	cpuNum  int
)

// GetCPUNum 返回可用的逻辑 CPU 数，结果只计算一次。
// 受 GOMAXPROCS 限制时（例如容器内经 automaxprocs 调整）取两者的较小值。
func GetCPUNum() int {
	cpuOnce.Do(func() {
		n, err := cpu.Counts(true)
		if err != nil || n <= 0 {
			log.Warn("failed to get cpu counts, fallback to runtime.NumCPU", zap.Error(err))
			n = runtime.NumCPU()
		}
		if procs := runtime.GOMAXPROCS(0); procs > 0 && procs < n {
			n = procs
		}
		cpuNum = n
	})
	return cpuNum
}

// GetMemoryCount 返回物理内存总量（字节），获取失败时返回 0。
func GetMemoryCount() uint64 {
	stats, err := mem.VirtualMemory()
	if err != nil {
		log.Warn("failed to get memory count", zap.Error(err))
		return 0
	}
	return stats.Total
}

// GetFreeMemoryCount 返回当前可用内存（字节），获取失败时返回 0。
func GetFreeMemoryCount() uint64 {
	stats, err := mem.VirtualMemory()
	if err != nil {
		log.Warn("failed to get free memory count", zap.Error(err))
		return 0
	}
	return stats.Available
}
