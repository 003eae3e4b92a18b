// Package telemetry 实现遥测上行与校正心率下行
//
// 上行：每个新接受的心跳发送一行 ASCII，格式
// "t_ms,bpm,quality,stable,alarm_type\n"（quality 固定 3 位小数，
// stable 为 0/1，alarm_type 为数值编码）。
// 下行：接收 "t_ms,bpm_corr" 行，校正值仅用于展示。
package telemetry

import (
	"fmt"
	"strings"

	"wisefido-pulse/internal/models"
)

// EncodeBeatLine 按线上格式编码一条心跳遥测
func EncodeBeatLine(r models.BpmReading, alarm models.AlarmKind) string {
	stable := 0
	if r.Stable {
		stable = 1
	}
	return fmt.Sprintf("%d,%d,%.3f,%d,%d\n", r.TMs, r.Bpm, r.Quality, stable, int(alarm))
}

// ParseCorrectedLine 解析校正心率下行 "t_ms,bpm_corr"
func ParseCorrectedLine(line string) (int64, int, error) {
	var tMs int64
	var bpm int
	if _, err := fmt.Sscanf(strings.TrimSpace(line), "%d,%d", &tMs, &bpm); err != nil {
		return 0, 0, fmt.Errorf("failed to parse corrected bpm line: %w", err)
	}
	return tMs, bpm, nil
}
