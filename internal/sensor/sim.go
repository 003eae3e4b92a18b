package sensor

import "math"

// PPGSim 生成类 PPG 波形（非临床），用于开发和测试
//
// 刻意简单：直流基线 + 收缩波 + 重搏波 + 廉价的确定性噪声。
// 每次 Read 前进一个采样周期。
type PPGSim struct {
	fs       float64 // 采样率 Hz
	hrBPM    float64
	baseline float64 // 直流分量（ADC counts）
	amp      float64 // 脉搏幅度
	noise    float64 // 噪声幅度（counts）
	phase    float64
	n        int64
}

// NewPPGSim fs=100, hrBPM 典型 60-120, baseline/amp 以 ADC counts 计
func NewPPGSim(fs, hrBPM, baseline, amp, noise float64) *PPGSim {
	return &PPGSim{fs: fs, hrBPM: hrBPM, baseline: baseline, amp: amp, noise: noise}
}

// SetHeartRate 调整模拟心率（立即生效）
func (s *PPGSim) SetHeartRate(hrBPM float64) {
	s.hrBPM = hrBPM
}

// Read 返回下一个采样并前进时间
func (s *PPGSim) Read() int {
	cycleHz := s.hrBPM / 60.0
	s.phase += cycleHz / s.fs
	if s.phase >= 1.0 {
		s.phase -= 1.0
	}
	t := s.phase // 本周期内 0..1

	// 收缩主波 + 较小的重搏波
	systolic := gauss(t, 0.20, 0.055)
	dicrotic := 0.35 * gauss(t, 0.48, 0.08)

	// 确定性噪声，避免测试不可复现
	s.n++
	n := s.noise * (2*fract(math.Sin(float64(s.n)*12.9898)*43758.5453) - 1)

	return int(s.baseline + s.amp*(systolic+dicrotic) + n)
}

func gauss(x, mu, sigma float64) float64 {
	z := (x - mu) / sigma
	return math.Exp(-0.5 * z * z)
}

func fract(x float64) float64 { return x - math.Floor(x) }
