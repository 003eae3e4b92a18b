package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-pulse/internal/models"
)

// fakePublisher 记录发布的消息
type fakePublisher struct {
	topics   []string
	payloads []string
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, string(payload))
	return nil
}

func TestUplinkSendsOnNewTimestampOnly(t *testing.T) {
	pub := &fakePublisher{}
	u := NewUplink(pub, "pulse/+/beat", "pulse-001", zap.NewNop())

	r := models.BpmReading{Bpm: 72, Quality: 0.8, Stable: true, TMs: 1000}

	assert.True(t, u.Send(r, models.AlarmNone))
	// 同一读数重复轮询：不重发
	assert.False(t, u.Send(r, models.AlarmNone))
	assert.False(t, u.Send(r, models.AlarmNone))

	require.Len(t, pub.payloads, 1)
	assert.Equal(t, "pulse/pulse-001/beat", pub.topics[0])
	assert.Equal(t, "1000,72,0.800,1,0\n", pub.payloads[0])
}

func TestUplinkSameBpmDifferentTimestampStillSends(t *testing.T) {
	pub := &fakePublisher{}
	u := NewUplink(pub, "pulse/+/beat", "pulse-001", zap.NewNop())

	// 按时间戳去重，不按数值：相同 BPM 的两次心跳都要发送
	assert.True(t, u.Send(models.BpmReading{Bpm: 72, Quality: 0.8, Stable: true, TMs: 1000}, models.AlarmNone))
	assert.True(t, u.Send(models.BpmReading{Bpm: 72, Quality: 0.8, Stable: true, TMs: 2000}, models.AlarmNone))

	assert.Len(t, pub.payloads, 2)
}

func TestUplinkSnapshotsAlarmKind(t *testing.T) {
	pub := &fakePublisher{}
	u := NewUplink(pub, "pulse/+/beat", "pulse-001", zap.NewNop())

	u.Send(models.BpmReading{Bpm: 150, Quality: 0.8, Stable: true, TMs: 1000}, models.AlarmTachycardia)

	require.Len(t, pub.payloads, 1)
	assert.Equal(t, "1000,150,0.800,1,3\n", pub.payloads[0])
}
