package telemetry

import (
	"strings"

	"go.uber.org/zap"

	"wisefido-pulse/internal/models"
)

// Publisher 上行发布接口（Client 实现；测试中用假实现）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Uplink 心跳遥测上行
//
// 只在读数时间戳变化时发送，不重发旧读数。按时间戳而不是
// 数值去重：两次相同 BPM 的心跳都会发送。
type Uplink struct {
	pub    Publisher
	topic  string
	logger *zap.Logger

	lastSentTMs int64
}

// NewUplink 创建上行。topic 中的 "+" 替换为设备ID。
func NewUplink(pub Publisher, topicPattern, deviceID string, logger *zap.Logger) *Uplink {
	return &Uplink{
		pub:         pub,
		topic:       strings.Replace(topicPattern, "+", deviceID, 1),
		logger:      logger,
		lastSentTMs: -1,
	}
}

// Send 发送一条心跳遥测（重复读数静默跳过）
//
// 返回是否真正发送。alarm 为发送瞬间的报警类型快照。
func (u *Uplink) Send(r models.BpmReading, alarm models.AlarmKind) bool {
	if r.TMs == u.lastSentTMs {
		return false
	}
	u.lastSentTMs = r.TMs

	line := EncodeBeatLine(r, alarm)
	if err := u.pub.Publish(u.topic, 0, false, []byte(line)); err != nil {
		u.logger.Warn("Failed to publish beat telemetry",
			zap.Error(err),
		)
		// 发送失败不致命，下个心跳继续尝试
	}
	return true
}
