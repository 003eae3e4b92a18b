package cache

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-pulse/internal/config"
	"wisefido-pulse/internal/models"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cfg := &config.Config{}
	cfg.DeviceID = "pulse-001"
	cfg.Cache.RealtimePrefix = "pulse:device:"
	cfg.Cache.RealtimeSuffix = ":realtime"
	cfg.Cache.AlarmSuffix = ":alarms"
	cfg.Cache.TTLSeconds = 30

	return mr, NewManager(cfg, redisClient, zap.NewNop())
}

func TestUpdateRealtime(t *testing.T) {
	mr, m := setupTestRedis(t)

	reading := models.BpmReading{Bpm: 72, Quality: 0.85, Stable: true, TMs: 12345}
	err := m.UpdateRealtime(context.Background(), reading, nil)
	require.NoError(t, err)

	// 验证数据已写入
	val, err := mr.Get("pulse:device:pulse-001:realtime")
	require.NoError(t, err)

	var cached realtimePayload
	require.NoError(t, json.Unmarshal([]byte(val), &cached))
	assert.Equal(t, 72, cached.Bpm)
	assert.Equal(t, 0.85, cached.Quality)
	assert.True(t, cached.Stable)
	assert.Nil(t, cached.CorrectedBpm)

	// TTL 已设置
	assert.Greater(t, mr.TTL("pulse:device:pulse-001:realtime").Seconds(), 0.0)
}

func TestUpdateRealtimeWithCorrectedBpm(t *testing.T) {
	mr, m := setupTestRedis(t)

	corrected := 75
	reading := models.BpmReading{Bpm: 72, Quality: 0.85, Stable: true, TMs: 12345}
	require.NoError(t, m.UpdateRealtime(context.Background(), reading, &corrected))

	val, err := mr.Get("pulse:device:pulse-001:realtime")
	require.NoError(t, err)

	var cached realtimePayload
	require.NoError(t, json.Unmarshal([]byte(val), &cached))
	require.NotNil(t, cached.CorrectedBpm)
	assert.Equal(t, 75, *cached.CorrectedBpm)
}

func TestUpdateAlarm(t *testing.T) {
	mr, m := setupTestRedis(t)

	event := models.AlarmEvent{
		Type:    models.AlarmTachycardia,
		Bpm:     145,
		Quality: 0.7,
		TMs:     56789,
	}
	require.NoError(t, m.UpdateAlarm(context.Background(), event))

	val, err := mr.Get("pulse:device:pulse-001:alarms")
	require.NoError(t, err)

	var cached alarmPayload
	require.NoError(t, json.Unmarshal([]byte(val), &cached))
	assert.NotEmpty(t, cached.EventID)
	assert.Equal(t, "TACHYCARDIA", cached.EventType)
	assert.True(t, cached.Critical)
	assert.Equal(t, 145, cached.Bpm)
}

func TestUpdateAlarmNoSignalNotCritical(t *testing.T) {
	mr, m := setupTestRedis(t)

	event := models.AlarmEvent{Type: models.AlarmNoSignal, TMs: 100}
	require.NoError(t, m.UpdateAlarm(context.Background(), event))

	val, err := mr.Get("pulse:device:pulse-001:alarms")
	require.NoError(t, err)

	var cached alarmPayload
	require.NoError(t, json.Unmarshal([]byte(val), &cached))
	assert.Equal(t, "NO_SIGNAL", cached.EventType)
	assert.False(t, cached.Critical)
}
