// Package expiry は駐車メモの失効状態を算出する。
// 一覧・地図・ダッシュボードのどこから呼ばれても同じ結果になるよう、
// 判定ロジックはこのパッケージに集約する。
package expiry

import (
	"fmt"
	"time"
)

// Status は駐車メモの失効状態を表す。
type Status string

const (
	// StatusActive は失効まで十分な時間がある状態。
	StatusActive Status = "active"
	// StatusExpiringSoon は失効間近（しきい値以内）の状態。
	StatusExpiringSoon Status = "expiring-soon"
	// StatusExpired は失効済みの状態。
	StatusExpired Status = "expired"
)

// DefaultSoonThreshold は「失効間近」とみなす残り時間のデフォルト値。
const DefaultSoonThreshold = 10 * time.Minute

// Policy は失効状態の判定ポリシー。
type Policy struct {
	SoonThreshold time.Duration
}

// DefaultPolicy はデフォルトのしきい値（10分）を持つPolicyを返す。
func DefaultPolicy() Policy {
	return Policy{SoonThreshold: DefaultSoonThreshold}
}

// Classify は失効時刻と現在時刻から失効状態を判定する。
// 残り時間が0以下ならexpired、しきい値以下ならexpiring-soon、それ以外はactive。
func (p Policy) Classify(expiryTime, now time.Time) Status {
	remaining := expiryTime.Sub(now)
	switch {
	case remaining <= 0:
		return StatusExpired
	case remaining <= p.SoonThreshold:
		return StatusExpiringSoon
	default:
		return StatusActive
	}
}

// Remaining は失効までの残り時間を返す。失効済みの場合は0。
func Remaining(expiryTime, now time.Time) time.Duration {
	d := expiryTime.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// FormatRemaining は残り時間を "1h 5m" / "5m" 形式で返す。
// 失効済みの場合は "EXPIRED" を返す。
func FormatRemaining(expiryTime, now time.Time) string {
	d := expiryTime.Sub(now)
	if d <= 0 {
		return "EXPIRED"
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
