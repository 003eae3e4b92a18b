package telemetry

import (
	"strings"

	"go.uber.org/zap"

	"wisefido-pulse/internal/mailbox"
	"wisefido-pulse/internal/models"
)

// Subscriber 下行订阅接口（Client 实现；测试中用假实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler MessageHandler) error
}

// Downlink 校正心率下行
//
// 外部聚合端可以回推一个校正后的 BPM，仅用于展示，
// 永远不参与报警评估。接收时间只在数值变化时刷新，
// 过期判断由展示方基于接收时间完成。
type Downlink struct {
	box    *mailbox.Mailbox[models.CorrectedBpm]
	bpmMax int
	nowMs  func() int64
	logger *zap.Logger
}

// NewDownlink 创建下行处理器
func NewDownlink(box *mailbox.Mailbox[models.CorrectedBpm], bpmMax int, nowMs func() int64, logger *zap.Logger) *Downlink {
	return &Downlink{box: box, bpmMax: bpmMax, nowMs: nowMs, logger: logger}
}

// Start 订阅下行主题。topic 中的 "+" 替换为设备ID。
func (d *Downlink) Start(sub Subscriber, topicPattern, deviceID string) error {
	topic := strings.Replace(topicPattern, "+", deviceID, 1)
	return sub.Subscribe(topic, 1, d.Handle)
}

// Handle 处理一条下行消息（范围外的值静默丢弃）
func (d *Downlink) Handle(topic string, payload []byte) error {
	srcTMs, bpm, err := ParseCorrectedLine(string(payload))
	if err != nil {
		return err
	}

	if bpm <= 0 || bpm >= d.bpmMax {
		d.logger.Debug("Dropping out-of-range corrected bpm",
			zap.Int("bpm", bpm),
		)
		return nil
	}

	// 数值不变时不刷新接收时间，过期计时从上次变化算起
	if cur, ok := d.box.Peek(); ok && cur.Bpm == bpm {
		return nil
	}

	d.box.Store(models.CorrectedBpm{
		Bpm:    bpm,
		SrcTMs: srcTMs,
		RxTMs:  d.nowMs(),
	})
	return nil
}
