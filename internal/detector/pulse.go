// Package detector 实现信号调理与心跳检测
//
// 输入为原始脉搏传感器采样流，输出为被接受的心跳与平滑后的
// BPM/质量估计。自适应基线去除 + 低通平滑 + 非对称包络跟踪 +
// 斜率符号变化找峰，再经不应期 / 自适应阈值 / 突出度 / IBI 一致性
// 四道门限过滤误触发。
package detector

import (
	"math"
	"sort"

	"wisefido-pulse/internal/config"
)

// Result 单次更新的检测结果
type Result int

const (
	NoBeat      Result = 0 // 本次采样未接受心跳
	Provisional Result = 1 // 接受心跳，但 IBI 历史不足 3 个，估计为临时值
	Stable      Result = 2 // 接受心跳，估计稳定
)

// IBI 环形缓冲容量（固定内存，覆盖最旧值）
const ibiBufSize = 5

// PulseDetector 心跳检测器
//
// 所有自适应状态由检测器独占，只有 Reset/Update 会修改。
// 不变式：包络 min ≤ 滤波值 ≤ 包络 max（非对称衰减保证）；
// 进入 IBI 环的值全部落在 [IbiMinMs, IbiMaxMs] 内。
type PulseDetector struct {
	cfg config.DetectorConfig

	// 基线去除 + 平滑
	baseline float64
	lp       float64

	// 包络
	envInited bool
	envMin    float64
	envMax    float64

	// 峰值检测状态
	lastBeatMs int64
	havePrev   bool
	prevFilt   float64
	prevTMs    int64
	diffPrev   float64

	// IBI 环形缓冲
	ibiBuf   [ibiBufSize]int64
	ibiCount int

	// 自适应统计
	p2pEma   float64 // 平滑峰峰值
	noiseEma float64 // 平滑 |斜率|（噪声代理）
}

// New 创建检测器（使用前必须 Reset）
func New(cfg config.DetectorConfig) *PulseDetector {
	return &PulseDetector{cfg: cfg}
}

// Reset 以单个原始采样为锚点重新初始化全部自适应状态
func (d *PulseDetector) Reset(initialRaw int) {
	d.baseline = float64(initialRaw)
	d.lp = 0

	d.envInited = false
	d.envMin = 0
	d.envMax = 0

	d.lastBeatMs = 0

	d.havePrev = false
	d.prevFilt = 0
	d.prevTMs = 0
	d.diffPrev = 0

	d.ibiCount = 0
	for i := range d.ibiBuf {
		d.ibiBuf[i] = 0
	}

	d.p2pEma = 0
	d.noiseEma = 0
}

// IbiCount 自上次 Reset 以来累计接受的 IBI 数
func (d *PulseDetector) IbiCount() int {
	return d.ibiCount
}

// Update 处理一个原始采样
//
// 返回检测结果、心率（仅在接受心跳时有效）和质量评分。
// 质量评分每次调用都会计算，与是否接受心跳无关。
// Reset 后的第一次调用只用于建立斜率基准，不可能报告心跳。
func (d *PulseDetector) Update(raw int, tMs int64) (Result, int, float64) {
	// 1) 基线（直流）去除
	d.baseline += d.cfg.BaselineGain * (float64(raw) - d.baseline)
	ac := float64(raw) - d.baseline

	// 2) 低通平滑
	d.lp += d.cfg.LowpassGain * (ac - d.lp)
	filt := d.lp

	// 3) 包络跟踪（峰峰值）
	d.updateEnvelope(filt)
	p2p := d.envMax - d.envMin

	// 4) 噪声估计：滤波信号的 |斜率| EMA，需要有上一个采样
	if d.havePrev {
		diff := filt - d.prevFilt
		d.noiseEma += d.cfg.NoiseGain * (math.Abs(diff) - d.noiseEma)
	}

	// 5) 峰峰值平滑（比噪声慢），首个值直接作为种子
	if d.p2pEma <= 0 {
		d.p2pEma = p2p
	} else {
		d.p2pEma += d.cfg.AmpGain * (p2p - d.p2pEma)
	}

	// 6) 自适应最小幅度门限：噪声越大要求越高，避免在噪声上触发
	p2pMinAdapt := math.Max(d.cfg.MinAmpFloor, d.cfg.NoiseAmpMul*d.noiseEma)
	p2pMinAdapt = clamp(p2pMinAdapt, d.cfg.MinAmpFloor, d.cfg.MinAmpCeil)

	// 7) 自适应阈值：幅度分量、噪声分量，外加绝对下限
	thrFromAmp := d.cfg.ThrAmpMul * d.p2pEma
	thrFromNoise := d.cfg.ThrNoiseMul * d.noiseEma
	thr := math.Max(d.cfg.ThrMin, math.Max(thrFromAmp, thrFromNoise))

	// 8) 质量评分 0..1：幅度越高、噪声越低、IBI 历史越满越好
	qAmp := clamp(d.p2pEma/140.0, 0, 1)
	qNoise := clamp(1.0-d.noiseEma/25.0, 0, 1)
	qStb := clamp(float64(min(d.ibiCount, ibiBufSize))/float64(ibiBufSize), 0, 1)
	quality := clamp(0.55*qAmp+0.30*qNoise+0.15*qStb, 0, 1)

	// 幅度不足时丢弃斜率历史，下一个可用采样重新建立基准
	if !d.envInited || d.p2pEma < p2pMinAdapt {
		d.havePrev = false
		return NoBeat, 0, quality
	}

	// 斜率逻辑需要上一个采样
	if !d.havePrev {
		d.prevFilt = filt
		d.prevTMs = tMs
		d.havePrev = true
		d.diffPrev = 0
		return NoBeat, 0, quality
	}

	// 9) 斜率符号由正转非正 → 上一个采样是峰
	diff := filt - d.prevFilt
	slopeWasUp := d.diffPrev > 0
	slopeNowDown := diff <= 0

	// 不应期以峰所在采样时刻计
	sinceLast := int64(math.MaxInt64)
	if d.lastBeatMs != 0 {
		sinceLast = d.prevTMs - d.lastBeatMs
	}
	refractoryOK := sinceLast >= d.cfg.IbiMinMs

	// 突出度：峰值相对包络底部必须占幅度的足够比例
	prominence := d.prevFilt - d.envMin
	promReq := d.cfg.PromMul * d.p2pEma
	prominentEnough := prominence > promReq

	beat := false
	if refractoryOK && slopeWasUp && slopeNowDown {
		if d.prevFilt > thr && prominentEnough {
			beat = true
		}
	}

	d.diffPrev = diff
	d.prevFilt = filt
	d.prevTMs = tMs

	if !beat {
		return NoBeat, 0, quality
	}

	res, bpm := d.registerBeat(d.prevTMs)
	return res, bpm, quality
}

// updateEnvelope 非对称包络：瞬时跟随越界方向，否则缓慢衰减向信号
func (d *PulseDetector) updateEnvelope(x float64) {
	if !d.envInited {
		d.envMin = x
		d.envMax = x
		d.envInited = true
		return
	}

	if x < d.envMin {
		d.envMin = x
	} else {
		d.envMin += d.cfg.EnvDecay * (x - d.envMin)
	}

	if x > d.envMax {
		d.envMax = x
	} else {
		d.envMax += d.cfg.EnvDecay * (x - d.envMax)
	}
}

// registerBeat 记录一次候选心跳
//
// 生理范围外或偏离中位数过多的 IBI 被静默拒绝，但仍推进
// 上次心跳时间戳以重启不应期。首次心跳只建立计时基准。
func (d *PulseDetector) registerBeat(beatMs int64) (Result, int) {
	if d.lastBeatMs != 0 {
		ibi := beatMs - d.lastBeatMs

		if ibi < d.cfg.IbiMinMs || ibi > d.cfg.IbiMaxMs {
			d.lastBeatMs = beatMs
			return NoBeat, 0
		}

		// 一致性门限：拒绝倍频 / 紊乱触发
		if d.ibiCount >= 3 {
			med := d.medianIbi()
			if med > 0 {
				ratio := float64(ibi) / float64(med)
				if ratio < d.cfg.RatioMin || ratio > d.cfg.RatioMax {
					d.lastBeatMs = beatMs
					return NoBeat, 0
				}
			}
		}

		d.pushIbi(ibi)

		avg := d.averageIbi()
		if avg > 0 {
			bpm := int(60000 / avg)
			d.lastBeatMs = beatMs

			if d.ibiCount < 3 {
				return Provisional, bpm
			}
			return Stable, bpm
		}
	}

	// 首次心跳建立计时基准
	d.lastBeatMs = beatMs
	return NoBeat, 0
}

func (d *PulseDetector) pushIbi(ibi int64) {
	d.ibiBuf[d.ibiCount%ibiBufSize] = ibi
	d.ibiCount++
}

func (d *PulseDetector) averageIbi() int64 {
	n := min(d.ibiCount, ibiBufSize)
	if n <= 0 {
		return 0
	}
	var sum int64
	for i := 0; i < n; i++ {
		sum += d.ibiBuf[i]
	}
	return sum / int64(n)
}

func (d *PulseDetector) medianIbi() int64 {
	n := min(d.ibiCount, ibiBufSize)
	if n <= 0 {
		return 0
	}
	tmp := make([]int64, n)
	copy(tmp, d.ibiBuf[:n])
	sort.Slice(tmp, func(i, j int) bool { return tmp[i] < tmp[j] })
	return tmp[n/2]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
