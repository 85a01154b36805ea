package model

import "time"

// ContentType は通報・非表示の対象となるコンテンツ種別。
type ContentType string

const (
	ContentLocation ContentType = "location"
	ContentEvent    ContentType = "event"
	ContentReview   ContentType = "review"
	ContentActivity ContentType = "activity"
	ContentDeal     ContentType = "deal"
	ContentUser     ContentType = "user"
)

// Valid は既知のコンテンツ種別かどうかを返す。
func (c ContentType) Valid() bool {
	switch c {
	case ContentLocation, ContentEvent, ContentReview, ContentActivity, ContentDeal, ContentUser:
		return true
	}
	return false
}

// ReportStatus は通報の処理状態。
type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportReviewed  ReportStatus = "reviewed"
	ReportDismissed ReportStatus = "dismissed"
)

// Report はユーザーからのコンテンツ通報。
// 同一ユーザーによる同一コンテンツへの重複通報は許容される。
type Report struct {
	ID            string
	ReporterEmail string
	ContentType   ContentType
	ContentID     string
	ContentTitle  string
	Reason        string
	Status        ReportStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HiddenContent はユーザーが自分の表示から除外したコンテンツ。
// (user_email, content_type, content_id) ごとに1件のみ存在する。
type HiddenContent struct {
	ID          string
	UserEmail   string
	ContentType ContentType
	ContentID   string
	CreatedAt   time.Time
}

// ContentKey は非表示判定に使うコンテンツ参照。
type ContentKey struct {
	Type ContentType
	ID   string
}

// Moderatable は非表示フィルタの対象となる一覧要素。
type Moderatable interface {
	ContentRef() ContentKey
}
