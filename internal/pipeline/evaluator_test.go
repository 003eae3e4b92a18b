package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisefido-pulse/internal/anomaly"
	"wisefido-pulse/internal/config"
	"wisefido-pulse/internal/models"
)

func newTestEvaluator() *Evaluator {
	return NewEvaluator(config.DefaultPipelineConfig(), anomaly.New(config.DefaultAnomalyConfig()))
}

func TestStaleReadingSynthesizesNoSignal(t *testing.T) {
	e := newTestEvaluator()

	reading := models.BpmReading{Bpm: 70, Quality: 0.9, Stable: true, TMs: 1000}

	// 信箱里一直是同一条读数（心跳停止更新），评估节拍照常推进。
	// 读数在 4000ms 后过期，再过 3000ms 无信号判定成立。
	var events []models.AlarmEvent
	for now := int64(1000); now <= 7200; now += 100 {
		if ev, ok := e.Tick(reading, true, now); ok {
			events = append(events, ev)
		}
	}

	require.Len(t, events, 1)
	assert.Equal(t, models.AlarmNoSignal, events[0].Type)
	// 过期自 4100 起，无信号自 4100 持续 3000ms → 7100
	assert.Equal(t, int64(7100), events[0].TMs)
}

func TestFreshReadingsKeepTimersAdvancing(t *testing.T) {
	e := newTestEvaluator()

	// 低心率读数每 500ms 更新一次（时间戳变化），评估节拍 100ms。
	// 迟滞计时器跟随节拍时间而不是读数时间推进。
	var events []models.AlarmEvent
	for now := int64(1000); now <= 6000; now += 100 {
		readingT := now - now%500 // 最近一次心跳时刻
		reading := models.BpmReading{Bpm: 40, Quality: 0.9, Stable: true, TMs: readingT}
		if ev, ok := e.Tick(reading, true, now); ok {
			events = append(events, ev)
		}
	}

	require.Len(t, events, 1)
	assert.Equal(t, models.AlarmBradycardia, events[0].Type)
	assert.Equal(t, int64(6000), events[0].TMs)
}

func TestEmptyMailboxFeedsZeroReading(t *testing.T) {
	e := newTestEvaluator()

	// 启动后信箱为空：合成 bpm=0/quality=0 输入，最终判定无信号
	var events []models.AlarmEvent
	for now := int64(100); now <= 3200; now += 100 {
		if ev, ok := e.Tick(models.BpmReading{}, false, now); ok {
			events = append(events, ev)
		}
	}

	require.Len(t, events, 1)
	assert.Equal(t, models.AlarmNoSignal, events[0].Type)
	assert.Equal(t, models.AlarmNoSignal, e.ActiveAlarm())
}
