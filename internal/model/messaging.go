package model

import (
	"strings"
	"time"
)

// Conversation は2人のユーザー間の会話。
// 参加者の組（順不同）ごとに1件のみ存在する。
type Conversation struct {
	ID                string
	ParticipantEmails []string
	ParticipantNames  []string
	PairKey           string
	EventID           string
	LastMessage       string
	LastMessageDate   *time.Time
	CreatedAt         time.Time
}

// HasParticipant は指定ユーザーが参加者かどうかを返す。
func (c *Conversation) HasParticipant(email string) bool {
	for _, p := range c.ParticipantEmails {
		if strings.EqualFold(p, email) {
			return true
		}
	}
	return false
}

// ConversationSummary は会話一覧の要素。UnreadCount は閲覧者宛の未読件数。
type ConversationSummary struct {
	Conversation
	UnreadCount int
}

// Message は会話内のメッセージ。会話内では作成日時の昇順に並ぶ。
type Message struct {
	ID             string
	ConversationID string
	SenderEmail    string
	SenderName     string
	Content        string
	IsRead         bool
	CreatedAt      time.Time
}

// PairKey は参加者の組を順不同で一意に表すキーを返す。
func PairKey(a, b string) string {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}
