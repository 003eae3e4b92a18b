// Package cache 把最新读数/报警镜像到 Redis，供外部展示端读取
//
// 核心永远不会读回这些键；外部仪表盘按键 TTL 和读数时间戳
// 自行判断新鲜度。
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"wisefido-pulse/internal/config"
	"wisefido-pulse/internal/models"
)

// Manager Redis 镜像管理器
type Manager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewManager 创建镜像管理器
func NewManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// realtimePayload 实时数据镜像结构
type realtimePayload struct {
	models.BpmReading
	CorrectedBpm *int `json:"corrected_bpm,omitempty"`
}

// alarmPayload 报警镜像结构（event_id 便于外部去重）
type alarmPayload struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Critical  bool   `json:"critical"`
	models.AlarmEvent
}

// UpdateRealtime 写入最新读数镜像
//
// corrected 为展示用校正心率（可为 nil），不影响报警语义。
func (m *Manager) UpdateRealtime(ctx context.Context, reading models.BpmReading, corrected *int) error {
	key := m.realtimeKey()

	payload := realtimePayload{BpmReading: reading, CorrectedBpm: corrected}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal realtime data: %w", err)
	}

	err = m.redisClient.Set(ctx, key, jsonData, m.ttl()).Err()
	if err != nil {
		return fmt.Errorf("failed to set realtime cache: %w", err)
	}

	return nil
}

// UpdateAlarm 写入最新报警镜像
func (m *Manager) UpdateAlarm(ctx context.Context, event models.AlarmEvent) error {
	key := m.alarmKey()

	payload := alarmPayload{
		EventID:    uuid.New().String(),
		EventType:  event.Type.String(),
		Critical:   event.Type.IsCritical(),
		AlarmEvent: event,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal alarm data: %w", err)
	}

	err = m.redisClient.Set(ctx, key, jsonData, m.ttl()).Err()
	if err != nil {
		return fmt.Errorf("failed to set alarm cache: %w", err)
	}

	m.logger.Debug("Updated alarm cache",
		zap.String("key", key),
		zap.String("event_type", payload.EventType),
	)

	return nil
}

func (m *Manager) realtimeKey() string {
	return fmt.Sprintf("%s%s%s",
		m.config.Cache.RealtimePrefix,
		m.config.DeviceID,
		m.config.Cache.RealtimeSuffix,
	)
}

func (m *Manager) alarmKey() string {
	return fmt.Sprintf("%s%s%s",
		m.config.Cache.RealtimePrefix,
		m.config.DeviceID,
		m.config.Cache.AlarmSuffix,
	)
}

func (m *Manager) ttl() time.Duration {
	return time.Duration(m.config.Cache.TTLSeconds) * time.Second
}
