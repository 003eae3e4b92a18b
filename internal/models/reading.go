package models

// AlarmKind 报警类型（数值编码用于遥测上行）
type AlarmKind int

const (
	AlarmNone        AlarmKind = 0
	AlarmNoSignal    AlarmKind = 1 // 信号丢失 / 质量过低（状态提示，非临床报警）
	AlarmBradycardia AlarmKind = 2 // 持续低心率
	AlarmTachycardia AlarmKind = 3 // 持续高心率
	AlarmRapidChange AlarmKind = 4 // 心率快速跳变 / 不稳定
)

// String 返回报警类型名称
func (k AlarmKind) String() string {
	switch k {
	case AlarmNone:
		return "NONE"
	case AlarmNoSignal:
		return "NO_SIGNAL"
	case AlarmBradycardia:
		return "BRADYCARDIA"
	case AlarmTachycardia:
		return "TACHYCARDIA"
	case AlarmRapidChange:
		return "RAPID_CHANGE"
	default:
		return "UNKNOWN"
	}
}

// IsCritical 是否为临床级报警（NO_SIGNAL 只是状态提示）
func (k AlarmKind) IsCritical() bool {
	return k != AlarmNone && k != AlarmNoSignal
}

// BpmReading 心率读数（检测管线每接受一次心跳发布一次）
type BpmReading struct {
	Bpm     int     `json:"bpm"`
	Quality float64 `json:"quality"` // 信号质量 0..1
	Stable  bool    `json:"stable"`  // false = 临时估计（接受的 IBI 少于 3 个）
	TMs     int64   `json:"t_ms"`    // 单调毫秒时间戳
}

// AlarmEvent 报警事件快照（仅在报警状态发生变化的瞬间生成）
type AlarmEvent struct {
	Type    AlarmKind `json:"type"`
	Bpm     int       `json:"bpm"`
	Quality float64   `json:"quality"`
	TMs     int64     `json:"t_ms"`
}

// CorrectedBpm 外部校正后的心率（仅用于展示，不参与报警评估）
type CorrectedBpm struct {
	Bpm    int   `json:"bpm"`
	RxTMs  int64 `json:"rx_t_ms"` // 本地接收时间（用于过期判断）
	SrcTMs int64 `json:"src_t_ms"`
}
