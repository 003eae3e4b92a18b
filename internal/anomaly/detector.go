// Package anomaly 实现心率异常报警状态机
//
// 按固定节拍消费 BpmReading（调用方必须持续驱动，即使没有新数据），
// 在报警状态发生变化时输出边沿触发的 AlarmEvent。所有 onset/clear
// 判定都带迟滞，抑制抖动。这不是医疗诊断，只是 BPM 层面的异常标记。
package anomaly

import (
	"wisefido-pulse/internal/config"
	"wisefido-pulse/internal/models"
)

// 历史环形缓冲容量（固定内存；快速跳变扫描只看这 8 条）
const histSize = 8

type histEntry struct {
	bpm int
	tMs int64
}

// Detector 异常报警状态机
//
// 服务启动时创建一次，初始状态 None；每个评估节拍调用一次 Update，
// 进程生命周期内不销毁。时钟由调用方通过读数时间戳注入，状态机本身
// 不读系统时间。
type Detector struct {
	cfg config.AnomalyConfig

	activeAlarm models.AlarmKind

	noSignalSinceMs int64 // 0 = 未在追踪

	abnormalSinceMs int64
	abnormalKind    models.AlarmKind

	clearSinceMs int64

	hist      [histSize]histEntry
	histWrite int
	histCount int
}

// New 创建状态机
func New(cfg config.AnomalyConfig) *Detector {
	return &Detector{cfg: cfg}
}

// ActiveAlarm 当前生效的报警类型
func (d *Detector) ActiveAlarm() models.AlarmKind {
	return d.activeAlarm
}

// Update 评估一个读数
//
// 评估顺序：信号丢失追踪（优先级最高）→ 历史入环 → 可用读数驱动
// 持续性低/高心率与快速跳变分类 → 解除迟滞 → 边沿触发。
// 仅当报警状态发生变化时返回事件快照，状态持续期间不重复输出。
func (d *Detector) Update(r models.BpmReading) (models.AlarmEvent, bool) {
	// 基于质量追踪"无信号"
	if r.Quality < d.cfg.MinQuality || r.Bpm <= 0 {
		if d.noSignalSinceMs == 0 {
			d.noSignalSinceMs = r.TMs
		}
	} else {
		d.noSignalSinceMs = 0
	}

	d.pushHist(r)

	candidate := models.AlarmNone

	// 1) NO_SIGNAL 优先于其他一切
	if d.noSignalSinceMs != 0 && r.TMs-d.noSignalSinceMs >= d.cfg.NoSignalMs {
		candidate = models.AlarmNoSignal
	} else {
		usable := r.Quality >= d.cfg.MinQuality && r.Stable

		if usable {
			// 2) 持续性低/高心率
			if r.Bpm > 0 && r.Bpm < d.cfg.BradyBpm {
				if d.abnormalSinceMs == 0 || d.abnormalKind != models.AlarmBradycardia {
					d.abnormalSinceMs = r.TMs
					d.abnormalKind = models.AlarmBradycardia
				}
				if r.TMs-d.abnormalSinceMs >= d.cfg.SustainMs {
					candidate = models.AlarmBradycardia
				}
			} else if r.Bpm > d.cfg.TachyBpm {
				if d.abnormalSinceMs == 0 || d.abnormalKind != models.AlarmTachycardia {
					d.abnormalSinceMs = r.TMs
					d.abnormalKind = models.AlarmTachycardia
				}
				if r.TMs-d.abnormalSinceMs >= d.cfg.SustainMs {
					candidate = models.AlarmTachycardia
				}
			} else {
				d.abnormalSinceMs = 0
				d.abnormalKind = models.AlarmNone
			}

			// 3) 快速跳变（低/高心率未触发时）
			if candidate == models.AlarmNone && d.detectRapidChange() {
				candidate = models.AlarmRapidChange
			}
		} else {
			// 不可用但也不是无信号：清空异常追踪，不产生候选
			d.abnormalSinceMs = 0
			d.abnormalKind = models.AlarmNone
		}
	}

	// 解除迟滞：正常状态需持续 ClearMs 才允许解除当前报警
	if d.activeAlarm != models.AlarmNone && candidate == models.AlarmNone {
		if d.clearSinceMs == 0 {
			d.clearSinceMs = r.TMs
		}
		if r.TMs-d.clearSinceMs < d.cfg.ClearMs {
			candidate = d.activeAlarm // 保持
		} else {
			d.clearSinceMs = 0
		}
	} else {
		d.clearSinceMs = 0
	}

	// 状态变化 → 边沿触发事件
	if candidate != d.activeAlarm {
		d.activeAlarm = candidate
		return models.AlarmEvent{
			Type:    d.activeAlarm,
			Bpm:     r.Bpm,
			Quality: r.Quality,
			TMs:     r.TMs,
		}, true
	}

	return models.AlarmEvent{}, false
}

func (d *Detector) pushHist(r models.BpmReading) {
	d.hist[d.histWrite] = histEntry{bpm: r.Bpm, tMs: r.TMs}
	d.histWrite = (d.histWrite + 1) % histSize
	if d.histCount < histSize {
		d.histCount++
	}
}

// detectRapidChange 从最新记录向旧方向扫描时间窗内的 |Δbpm|
//
// 环内记录按时间递增，一旦越出时间窗即停止扫描。
func (d *Detector) detectRapidChange() bool {
	if d.histCount < 2 {
		return false
	}

	newestIdx := (d.histWrite + histSize - 1) % histSize
	newest := d.hist[newestIdx]

	for i := 1; i < d.histCount; i++ {
		idx := (d.histWrite + histSize - 1 - i + histSize) % histSize
		old := d.hist[idx]

		dt := newest.tMs - old.tMs
		if dt <= 0 {
			continue
		}
		if dt > d.cfg.RapidChangeWindowMs {
			break
		}

		dbpm := newest.bpm - old.bpm
		if dbpm < 0 {
			dbpm = -dbpm
		}
		if dbpm >= d.cfg.RapidChangeDeltaBpm {
			return true
		}
	}
	return false
}
