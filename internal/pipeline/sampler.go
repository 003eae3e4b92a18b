// Package pipeline 实现采集/评估管线的状态与节拍逻辑
//
// 状态转移函数是纯函数：输入 (采样, 时钟)，输出 (新状态, 可选读数)。
// 读时钟、读传感器、写信箱这些副作用全部留在 service 层的循环里，
// 便于用假时钟测试。
package pipeline

import (
	"wisefido-pulse/internal/config"
	"wisefido-pulse/internal/detector"
	"wisefido-pulse/internal/models"
)

// RunState 采集状态
type RunState int

const (
	BootWarmup RunState = iota // 冷启动静默，忽略采样
	Settling                   // 瞬变后静默，退出时重置检测器
	Running                    // 正常检测
)

// String 返回状态名称
func (s RunState) String() string {
	switch s {
	case BootWarmup:
		return "boot_warmup"
	case Settling:
		return "settling"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Sampler 采集状态机：接触/静默状态、瞬变检测、心跳检测调度
type Sampler struct {
	cfg config.PipelineConfig
	det *detector.PulseDetector

	state         RunState
	warmupUntil   int64
	settlingUntil int64
	lastRaw       int
}

// NewSampler 创建采集状态机
//
// initialRaw 用于检测器初始锚点，nowMs 决定冷启动静默截止时间。
func NewSampler(cfg config.PipelineConfig, det *detector.PulseDetector, initialRaw int, nowMs int64) *Sampler {
	det.Reset(initialRaw)
	return &Sampler{
		cfg:         cfg,
		det:         det,
		state:       BootWarmup,
		warmupUntil: nowMs + cfg.WarmupMs,
		lastRaw:     initialRaw,
	}
}

// State 当前采集状态
func (s *Sampler) State() RunState {
	return s.state
}

// Step 处理一个（已做中位数滤波的）原始采样
//
// 返回被接受的心跳读数；静默期、无心跳或心跳被拒绝时返回 false。
// 原始值接近零或相邻跳变过大视为接触瞬变，立即重新进入 Settling，
// 静默期满后用当前原始值完整重置检测器。
func (s *Sampler) Step(raw int, tMs int64) (models.BpmReading, bool) {
	step := raw - s.lastRaw
	if step < 0 {
		step = -step
	}
	s.lastRaw = raw

	contactTransient := raw < s.cfg.RawNearZero || step > s.cfg.StepTransient

	if s.state == BootWarmup {
		if tMs >= s.warmupUntil {
			s.state = Settling
			s.settlingUntil = tMs + s.cfg.SettlingMs
		}
		return models.BpmReading{}, false
	}

	if contactTransient {
		s.state = Settling
		s.settlingUntil = tMs + s.cfg.SettlingMs
	}

	if s.state == Settling {
		if tMs >= s.settlingUntil {
			s.det.Reset(raw)
			s.state = Running
		}
		return models.BpmReading{}, false
	}

	res, bpm, quality := s.det.Update(raw, tMs)
	if res == detector.NoBeat {
		return models.BpmReading{}, false
	}

	return models.BpmReading{
		Bpm:     bpm,
		Quality: quality,
		Stable:  res == detector.Stable,
		TMs:     tMs,
	}, true
}
