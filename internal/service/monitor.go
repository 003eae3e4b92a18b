package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"wisefido-pulse/internal/anomaly"
	"wisefido-pulse/internal/cache"
	"wisefido-pulse/internal/config"
	"wisefido-pulse/internal/detector"
	"wisefido-pulse/internal/mailbox"
	"wisefido-pulse/internal/models"
	"wisefido-pulse/internal/pipeline"
	"wisefido-pulse/internal/sensor"
	"wisefido-pulse/internal/telemetry"
)

// MonitorService 脉搏监测服务（整合各层）
//
// 三个固定周期活动：采集（最快）、报警评估（较慢）、遥测/镜像
// （最慢）。活动间只通过单槽信箱通信，每个信箱一个写入方，
// 读取方只做非破坏性读取。没有取消模型：所有活动运行到进程退出。
type MonitorService struct {
	config *config.Config
	logger *zap.Logger

	src       sensor.Source
	sampler   *pipeline.Sampler
	evaluator *pipeline.Evaluator

	// 单槽信箱
	bpmBox       *mailbox.Mailbox[models.BpmReading]
	alarmBox     *mailbox.Mailbox[models.AlarmEvent]
	correctedBox *mailbox.Mailbox[models.CorrectedBpm]

	// 外部协作方（均可缺席：初始化失败不影响核心管线）
	mqttClient   *telemetry.Client
	uplink       *telemetry.Uplink
	redisClient  *redis.Client
	cacheManager *cache.Manager

	start time.Time
}

// NewMonitorService 创建监测服务
//
// 遥测/Redis 协作方连接失败只降级为本地运行，不阻止启动：
// 核心无论有没有消费方都持续向信箱发布。
func NewMonitorService(cfg *config.Config, logger *zap.Logger, src sensor.Source) (*MonitorService, error) {
	s := &MonitorService{
		config:       cfg,
		logger:       logger,
		src:          src,
		bpmBox:       mailbox.New[models.BpmReading](),
		alarmBox:     mailbox.New[models.AlarmEvent](),
		correctedBox: mailbox.New[models.CorrectedBpm](),
		start:        time.Now(),
	}

	// 1. 核心管线
	det := detector.New(cfg.Detector)
	initialRaw := sensor.ReadMedian5(src)
	s.sampler = pipeline.NewSampler(cfg.Pipeline, det, initialRaw, s.nowMs())
	s.evaluator = pipeline.NewEvaluator(cfg.Pipeline, anomaly.New(cfg.Anomaly))

	// 2. 遥测（MQTT 上行 + 校正心率下行）
	mqttClient, err := telemetry.NewClient(&cfg.MQTT, logger)
	if err != nil {
		logger.Warn("MQTT unavailable, running without telemetry",
			zap.Error(err),
		)
	} else {
		s.mqttClient = mqttClient
		s.uplink = telemetry.NewUplink(mqttClient, cfg.Telemetry.BeatTopic, cfg.DeviceID, logger)

		downlink := telemetry.NewDownlink(s.correctedBox, cfg.Pipeline.CorrectedBpmMax, s.nowMs, logger)
		if err := downlink.Start(mqttClient, cfg.Telemetry.BpmCorrTopic, cfg.DeviceID); err != nil {
			logger.Warn("Failed to subscribe corrected bpm downlink",
				zap.Error(err),
			)
		}
	}

	// 3. Redis 镜像
	if cfg.Cache.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("Redis unavailable, running without presentation cache",
				zap.Error(err),
			)
			_ = redisClient.Close()
		} else {
			s.redisClient = redisClient
			s.cacheManager = cache.NewManager(cfg, redisClient, logger)
		}
	}

	// 报警信箱先放入 None，让展示端从已知状态开始
	s.alarmBox.Store(models.AlarmEvent{Type: models.AlarmNone, TMs: s.nowMs()})

	return s, nil
}

// Start 启动全部周期活动，阻塞到 ctx 取消
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting pulse monitor",
		zap.String("device_id", s.config.DeviceID),
		zap.Int("sample_period_ms", s.config.Pipeline.SamplePeriodMs),
		zap.Int("eval_period_ms", s.config.Pipeline.EvalPeriodMs),
	)

	var wg sync.WaitGroup

	wg.Add(2)
	go s.samplerLoop(ctx, &wg)
	go s.evalLoop(ctx, &wg)

	if s.uplink != nil {
		wg.Add(1)
		go s.telemetryLoop(ctx, &wg)
	}
	if s.cacheManager != nil {
		wg.Add(1)
		go s.cacheLoop(ctx, &wg)
	}

	wg.Wait()
	return nil
}

// Stop 停止服务并释放外部连接
func (s *MonitorService) Stop() error {
	s.logger.Info("Stopping pulse monitor")

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Failed to close redis",
				zap.Error(err),
			)
		}
	}

	return nil
}

// LatestReading 非破坏性读取最新心率读数（展示端接口）
func (s *MonitorService) LatestReading() (models.BpmReading, bool) {
	return s.bpmBox.Peek()
}

// LatestAlarm 非破坏性读取最新报警事件（展示端接口）
func (s *MonitorService) LatestAlarm() (models.AlarmEvent, bool) {
	return s.alarmBox.Peek()
}

// LatestCorrected 非破坏性读取最新校正心率（展示端接口）
func (s *MonitorService) LatestCorrected() (models.CorrectedBpm, bool) {
	return s.correctedBox.Peek()
}

// nowMs 自服务启动起的单调毫秒
func (s *MonitorService) nowMs() int64 {
	return time.Since(s.start).Milliseconds()
}

// samplerLoop 采集活动：固定周期读传感器、驱动采集状态机、发布读数
func (s *MonitorService) samplerLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(time.Duration(s.config.Pipeline.SamplePeriodMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sampler loop stopped")
			return
		case <-ticker.C:
			raw := sensor.ReadMedian5(s.src)
			if reading, ok := s.sampler.Step(raw, s.nowMs()); ok {
				s.bpmBox.Store(reading)
				s.logger.Debug("Beat accepted",
					zap.Int("bpm", reading.Bpm),
					zap.Float64("quality", reading.Quality),
					zap.Bool("stable", reading.Stable),
				)
			}
		}
	}
}

// evalLoop 评估活动：固定周期驱动报警状态机（无新数据也要推进计时器）
func (s *MonitorService) evalLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(time.Duration(s.config.Pipeline.EvalPeriodMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Evaluator loop stopped")
			return
		case <-ticker.C:
			latest, ok := s.bpmBox.Peek()
			if event, changed := s.evaluator.Tick(latest, ok, s.nowMs()); changed {
				s.alarmBox.Store(event)
				s.logAlarmEdge(event)
			}
		}
	}
}

// telemetryLoop 遥测活动：轮询读数信箱，只对新读数发送
func (s *MonitorService) telemetryLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(time.Duration(s.config.Pipeline.TelemetryPollMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Telemetry loop stopped")
			return
		case <-ticker.C:
			reading, ok := s.bpmBox.Peek()
			if !ok {
				continue
			}
			alarm := models.AlarmNone
			if ev, ok := s.alarmBox.Peek(); ok {
				alarm = ev.Type
			}
			s.uplink.Send(reading, alarm)
		}
	}
}

// cacheLoop 镜像活动：周期性把最新读数/报警写入 Redis
func (s *MonitorService) cacheLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(time.Duration(s.config.Pipeline.CachePublishMs) * time.Millisecond)
	defer ticker.Stop()

	var lastReadingTMs int64 = -1
	var lastAlarmTMs int64 = -1

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Cache loop stopped")
			return
		case <-ticker.C:
			now := s.nowMs()

			if reading, ok := s.bpmBox.Peek(); ok && reading.TMs != lastReadingTMs {
				lastReadingTMs = reading.TMs

				// 校正心率过期则不展示
				var corrected *int
				if c, ok := s.correctedBox.Peek(); ok && now-c.RxTMs <= s.config.Pipeline.CorrectedStaleMs {
					corrected = &c.Bpm
				}

				if err := s.cacheManager.UpdateRealtime(ctx, reading, corrected); err != nil {
					s.logger.Error("Failed to update realtime cache",
						zap.Error(err),
					)
				}
			}

			if event, ok := s.alarmBox.Peek(); ok && event.TMs != lastAlarmTMs {
				lastAlarmTMs = event.TMs
				if err := s.cacheManager.UpdateAlarm(ctx, event); err != nil {
					s.logger.Error("Failed to update alarm cache",
						zap.Error(err),
					)
				}
			}
		}
	}
}

// logAlarmEdge 报警边沿日志（NO_SIGNAL 是状态提示，不按报警记）
func (s *MonitorService) logAlarmEdge(event models.AlarmEvent) {
	switch {
	case event.Type == models.AlarmNoSignal:
		s.logger.Info("Signal lost",
			zap.Int64("t_ms", event.TMs),
		)
	case event.Type == models.AlarmNone:
		s.logger.Info("Alarm cleared",
			zap.Int64("t_ms", event.TMs),
		)
	default:
		s.logger.Warn("Alarm raised",
			zap.String("type", event.Type.String()),
			zap.Int("bpm", event.Bpm),
			zap.Int64("t_ms", event.TMs),
		)
	}
}
