package model

import "time"

// Coordinates は緯度経度の組を表す。
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ParkingNote はユーザーが記録した駐車メモを表す。
// 失効状態は保存せず、ExpiryTimeと現在時刻から都度算出する。
type ParkingNote struct {
	ID           string
	UserID       string
	Address      string
	Coordinates  *Coordinates
	ExpiryTime   time.Time
	Notes        string
	ReminderSent bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SameContent は更新可能なフィールドがすべて一致するかを返す。
// 同一内容の更新を検出し、UpdatedAtを変更しないために使用する。
func (n *ParkingNote) SameContent(other *ParkingNote) bool {
	if n.Address != other.Address || n.Notes != other.Notes {
		return false
	}
	if !n.ExpiryTime.Equal(other.ExpiryTime) {
		return false
	}
	switch {
	case n.Coordinates == nil && other.Coordinates == nil:
		return true
	case n.Coordinates == nil || other.Coordinates == nil:
		return false
	default:
		return *n.Coordinates == *other.Coordinates
	}
}
