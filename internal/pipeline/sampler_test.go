package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisefido-pulse/internal/config"
	"wisefido-pulse/internal/detector"
	"wisefido-pulse/internal/models"
)

// pulseAt 生成 t 时刻的稳定脉搏采样（60 BPM 正弦）
func pulseAt(tMs int64) int {
	return 2000 + int(300*math.Sin(2*math.Pi*float64(tMs)/1000.0))
}

func newTestSampler() *Sampler {
	cfg := config.DefaultPipelineConfig()
	det := detector.New(config.DefaultDetectorConfig())
	return NewSampler(cfg, det, pulseAt(0), 0)
}

// run 以 10ms 周期驱动采集状态机，收集发布的读数
func run(s *Sampler, fromMs, toMs int64, rawFn func(int64) int) []models.BpmReading {
	var readings []models.BpmReading
	for t := fromMs; t <= toMs; t += 10 {
		if r, ok := s.Step(rawFn(t), t); ok {
			readings = append(readings, r)
		}
	}
	return readings
}

func TestWarmupIgnoresSamples(t *testing.T) {
	s := newTestSampler()
	assert.Equal(t, BootWarmup, s.State())

	// 冷启动静默期内不发布任何读数
	readings := run(s, 0, 1490, pulseAt)
	assert.Empty(t, readings)
	assert.Equal(t, BootWarmup, s.State())

	// 静默期满转入 Settling
	_, ok := s.Step(pulseAt(1500), 1500)
	assert.False(t, ok)
	assert.Equal(t, Settling, s.State())
}

func TestSettlingThenRunningProducesReadings(t *testing.T) {
	s := newTestSampler()

	// warmup(1500) + settling(1500) + 检测锁定时间
	readings := run(s, 0, 20000, pulseAt)

	require.NotEmpty(t, readings)
	last := readings[len(readings)-1]
	assert.InDelta(t, 60, last.Bpm, 3)
	assert.True(t, last.Stable)

	// 读数时间戳单调递增
	for i := 1; i < len(readings); i++ {
		assert.Greater(t, readings[i].TMs, readings[i-1].TMs)
	}
}

func TestContactTransientReentersSettling(t *testing.T) {
	s := newTestSampler()

	readings := run(s, 0, 20000, pulseAt)
	require.NotEmpty(t, readings)
	require.Equal(t, Running, s.State())

	// 原始值接近零 → 立即回到 Settling
	_, ok := s.Step(10, 20010)
	assert.False(t, ok)
	assert.Equal(t, Settling, s.State())

	// 静默期内即使波形恢复也不发布
	readings = run(s, 20020, 21500, pulseAt)
	assert.Empty(t, readings)

	// 静默期满恢复 Running，检测器已重置，需要重新锁定
	readings = run(s, 21510, 23000, pulseAt)
	assert.Equal(t, Running, s.State())
}

func TestStepTransientReentersSettling(t *testing.T) {
	s := newTestSampler()

	run(s, 0, 20000, pulseAt)
	require.Equal(t, Running, s.State())

	// 相邻采样跳变超过阈值（600）→ 瞬变
	prev := pulseAt(20000)
	_, ok := s.Step(prev+700, 20010)
	assert.False(t, ok)
	assert.Equal(t, Settling, s.State())
}

func TestTransientDuringSettlingExtendsQuietPeriod(t *testing.T) {
	s := newTestSampler()

	run(s, 0, 20000, pulseAt)
	require.Equal(t, Running, s.State())

	// 瞬变进入 Settling
	s.Step(10, 20010)
	require.Equal(t, Settling, s.State())

	// 静默期又遇到瞬变：静默截止时间顺延
	s.Step(2000, 21400) // 相对上个值（10）跳变 1990
	_, ok := s.Step(pulseAt(21510), 21510)
	assert.False(t, ok)
	assert.Equal(t, Settling, s.State()) // 21400+1500 还没到
}
