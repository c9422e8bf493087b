// Package domain defines the core data types of the nickname bot. These types
// are shared by the storage layer, the services, and the transport adapters.
package domain

import "time"

// NicknameRecord is the nickname a participant registered in one group.
//
// Fields:
//   - UserID: platform identifier of the participant, unique within a group.
//   - Username: the participant's platform handle at the time of writing.
//   - Nickname: the chosen label (1..max runes, no edge or double spaces).
//   - AddedAt: creation time; never changed by a nickname update.
type NicknameRecord struct {
	UserID   int64     `json:"user_id"   yaml:"user_id"`
	Username string    `json:"username"  yaml:"username"`
	Nickname string    `json:"nickname"  yaml:"nickname"`
	AddedAt  time.Time `json:"added_at"  yaml:"added_at"`
}

// GroupSummary describes one group that currently holds nicknames.
type GroupSummary struct {
	GroupID int64 `json:"group_id" yaml:"group_id"`
	Count   int   `json:"count"    yaml:"count"`
}
