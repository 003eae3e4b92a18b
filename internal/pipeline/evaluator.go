package pipeline

import (
	"wisefido-pulse/internal/anomaly"
	"wisefido-pulse/internal/config"
	"wisefido-pulse/internal/models"
)

// Evaluator 报警评估节拍逻辑
//
// 把"最新读数信箱 + 当前时刻"折算成送入状态机的读数：读数过期时
// 合成无信号输入，否则替换时间戳为当前时刻，保证迟滞计时器在没有
// 新心跳时也会推进。
type Evaluator struct {
	cfg config.PipelineConfig
	det *anomaly.Detector

	last     models.BpmReading
	haveLast bool
}

// NewEvaluator 创建评估节拍逻辑
func NewEvaluator(cfg config.PipelineConfig, det *anomaly.Detector) *Evaluator {
	return &Evaluator{cfg: cfg, det: det}
}

// ActiveAlarm 当前生效的报警类型
func (e *Evaluator) ActiveAlarm() models.AlarmKind {
	return e.det.ActiveAlarm()
}

// Tick 执行一个评估节拍
//
// latest 为信箱的非破坏性读取结果（可能与上个节拍相同）。
// 返回状态机在本节拍产生的边沿事件。
func (e *Evaluator) Tick(latest models.BpmReading, haveNew bool, nowMs int64) (models.AlarmEvent, bool) {
	if haveNew {
		e.last = latest
		e.haveLast = true
	}

	var in models.BpmReading
	if !e.haveLast {
		in = models.BpmReading{TMs: nowMs}
	} else {
		in = e.last
		in.TMs = nowMs // 没有新心跳也要推进时间

		// 读数过期 → 合成无信号输入
		if nowMs-e.last.TMs > e.cfg.ReadingStaleMs {
			in.Bpm = 0
			in.Quality = 0
			in.Stable = false
		}
	}

	return e.det.Update(in)
}
