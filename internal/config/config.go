package config

import (
	"os"
	"strconv"
)

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// DetectorConfig 信号调理与心跳检测参数
//
// 所有增益/阈值散落在算法中不利于测试，统一提到配置结构
// （与报警状态机的配置方式保持一致）
type DetectorConfig struct {
	// EMA 增益
	BaselineGain float64 // 基线（直流）估计
	LowpassGain  float64 // 低通平滑
	EnvDecay     float64 // 包络衰减速率
	NoiseGain    float64 // 噪声代理（|斜率| EMA）
	AmpGain      float64 // 峰峰值平滑

	// 幅度门限
	MinAmpFloor float64 // 最低幅度下限
	MinAmpCeil  float64 // 最低幅度上限
	NoiseAmpMul float64 // 噪声 → 最低幅度系数

	// 峰值检测
	ThrMin      float64 // 自适应阈值下限
	ThrAmpMul   float64 // 幅度 → 阈值系数
	ThrNoiseMul float64 // 噪声 → 阈值系数
	 PromMul     float64 // 峰值突出度系数

	// IBI 接受范围（等价 BPM 40..180）
	IbiMinMs int64
	IbiMaxMs int64

	// IBI 一致性门限（相对中位数）
	RatioMin float64
	RatioMax float64
}

// AnomalyConfig 报警状态机参数
type AnomalyConfig struct {
	BradyBpm int // 低于此值视为低心率
	TachyBpm int // 高于此值视为高心率

	SustainMs int64 // 异常需持续多久才报警

	MinQuality float64 // 可用读数的最低质量
	NoSignalMs int64   // 低质量持续多久判定信号丢失

	RapidChangeDeltaBpm int   // 快速跳变幅度
	RapidChangeWindowMs int64 // 快速跳变时间窗

	ClearMs int64 // 报警解除迟滞
}

// PipelineConfig 采集/评估管线参数
type PipelineConfig struct {
	SamplePeriodMs int   // 采集周期（100Hz = 10ms）
	WarmupMs       int64 // 冷启动静默期
	SettlingMs     int64 // 接触瞬变后的静默期

	RawNearZero   int // 原始值低于此值视为脱离接触
	StepTransient int // 相邻原始值跳变超过此值视为瞬变

	EvalPeriodMs      int   // 报警评估周期（10Hz = 100ms）
	ReadingStaleMs    int64 // 读数超过此时长视为信号丢失
	TelemetryPollMs   int   // 遥测上行轮询周期
	CorrectedBpmMax   int   // 校正心率上限（开区间）
	CorrectedStaleMs  int64 // 校正心率过期时长
	CachePublishMs    int   // Redis 镜像刷新周期
}

// Config 脉搏监测服务配置
type Config struct {
	DeviceID string

	Redis RedisConfig
	MQTT  MQTTConfig

	Detector DetectorConfig
	Anomaly  AnomalyConfig
	Pipeline PipelineConfig

	// 遥测主题
	Telemetry struct {
		BeatTopic    string // 如 "pulse/+/beat"（+ 替换为设备ID）
		BpmCorrTopic string // 如 "pulse/+/bpm-corr"
	}

	// Redis 缓存配置
	Cache struct {
		Enabled        bool
		RealtimePrefix string // 实时数据键前缀，如 "pulse:device:"
		RealtimeSuffix string // 如 ":realtime"
		AlarmSuffix    string // 如 ":alarms"
		TTLSeconds     int
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DeviceID = getEnv("DEVICE_ID", "pulse-001")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "wisefido-pulse")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")

	cfg.Detector = DefaultDetectorConfig()
	cfg.Anomaly = DefaultAnomalyConfig()
	cfg.Pipeline = DefaultPipelineConfig()

	cfg.Telemetry.BeatTopic = getEnv("TELEMETRY_BEAT_TOPIC", "pulse/+/beat")
	cfg.Telemetry.BpmCorrTopic = getEnv("TELEMETRY_BPMCORR_TOPIC", "pulse/+/bpm-corr")

	cfg.Cache.Enabled = getEnvBool("CACHE_ENABLED", true)
	cfg.Cache.RealtimePrefix = getEnv("CACHE_REALTIME_PREFIX", "pulse:device:")
	cfg.Cache.RealtimeSuffix = ":realtime"
	cfg.Cache.AlarmSuffix = ":alarms"
	cfg.Cache.TTLSeconds = 30

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// DefaultDetectorConfig 检测器默认参数
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		BaselineGain: 0.01,
		LowpassGain:  0.18,
		EnvDecay:     0.01,
		NoiseGain:    0.06,
		AmpGain:      0.04,

		MinAmpFloor: 18.0,
		MinAmpCeil:  80.0,
		NoiseAmpMul: 8.0,

		ThrMin:      22.0,
		ThrAmpMul:   0.26,
		ThrNoiseMul: 6.0,
		PromMul:     0.50,

		IbiMinMs: 60000 / 180, // 333ms
		IbiMaxMs: 60000 / 40,  // 1500ms

		RatioMin: 0.85,
		RatioMax: 1.20,
	}
}

// DefaultAnomalyConfig 报警状态机默认参数
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		BradyBpm:            45,
		TachyBpm:            130,
		SustainMs:           5000,
		MinQuality:          0.25,
		NoSignalMs:          3000,
		RapidChangeDeltaBpm: 35,
		RapidChangeWindowMs: 5000,
		ClearMs:             3000,
	}
}

// DefaultPipelineConfig 管线默认参数
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		SamplePeriodMs: 10,
		WarmupMs:       1500,
		SettlingMs:     1500,

		RawNearZero:   50,
		StepTransient: 600,

		EvalPeriodMs:     100,
		ReadingStaleMs:   3000,
		TelemetryPollMs:  20,
		CorrectedBpmMax:  260,
		CorrectedStaleMs: 3000,
		CachePublishMs:   200,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
