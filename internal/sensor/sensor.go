// Package sensor 定义脉搏传感器采样接口
package sensor

import "sort"

// Source 按需返回一个整数 ADC 采样
//
// 没有时序约束，只要求能跟上固定采集频率。硬件驱动、模拟波形
// 源都实现这个接口。
type Source interface {
	Read() int
}

// SourceFunc 函数适配器
type SourceFunc func() int

func (f SourceFunc) Read() int { return f() }

// ReadMedian5 连续读 5 次取中位数，抑制单次读数尖刺
func ReadMedian5(src Source) int {
	v := [5]int{src.Read(), src.Read(), src.Read(), src.Read(), src.Read()}
	s := v[:]
	sort.Ints(s)
	return s[2]
}
