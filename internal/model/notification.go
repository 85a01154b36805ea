package model

import "time"

// 通知種別
const (
	NotificationNewEvent = "new_event"
	NotificationReminder = "reminder"
	NotificationMessage  = "message"
)

// Notification はユーザー宛の通知。作成後に変化するのは IsRead のみ。
type Notification struct {
	ID        string
	UserEmail string
	Type      string
	Title     string
	Message   string
	EventID   string
	IsRead    bool
	CreatedAt time.Time
}

// NotificationPage は通知一覧の1ページ分。
// UnreadCount は取得したページ内の未読件数であり、全体の未読件数ではない。
type NotificationPage struct {
	Notifications []Notification
	UnreadCount   int
}

// NotificationPreference は通知設定。
type NotificationPreference struct {
	ID                  string
	UserEmail           string
	EmailNewEvents      bool
	EmailReminders      bool
	ReminderHoursBefore int
	UpdatedAt           time.Time
}

// ReminderHourOptions はリマインダー時間として選択可能な値。
var ReminderHourOptions = []int{1, 3, 12, 24, 48}

// DefaultNotificationPreference は設定が未保存のユーザーに適用する既定値を返す。
func DefaultNotificationPreference(userEmail string) NotificationPreference {
	return NotificationPreference{
		UserEmail:           userEmail,
		EmailNewEvents:      true,
		EmailReminders:      true,
		ReminderHoursBefore: 24,
	}
}
