package model

import "time"

// Favorite はユーザーがお気に入り登録した店舗。
type Favorite struct {
	ID         string
	UserEmail  string
	LocationID string
	CreatedAt  time.Time
}

// SavedEvent はユーザーが保存したイベント。リマインダーの対象になる。
type SavedEvent struct {
	ID        string
	UserEmail string
	EventID   string
	CreatedAt time.Time
}

// OrganizerFollow は主催者のフォロー関係。
// FollowerEmail と OrganizerEmail は常に異なる。
type OrganizerFollow struct {
	ID             string
	FollowerEmail  string
	OrganizerEmail string
	CreatedAt      time.Time
}

// SubscriptionType はイベント購読の種別。
type SubscriptionType string

const (
	SubscriptionOrganizer SubscriptionType = "organizer"
	SubscriptionCategory  SubscriptionType = "category"
)

// EventSubscription はイベント通知の購読。
// organizer 種別はフォローと同時に作成・削除される。
type EventSubscription struct {
	ID               string
	UserEmail        string
	SubscriptionType SubscriptionType
	OrganizerEmail   string
	Category         string
	CreatedAt        time.Time
}

// イベントカテゴリ
const (
	CategoryGarageSale   = "garage_sale"
	CategoryEstateSale   = "estate_sale"
	CategoryYardSale     = "yard_sale"
	CategoryPopUp        = "pop_up"
	CategorySpecialEvent = "special_event"
)

// IsEventCategory は既知のイベントカテゴリかどうかを返す。
func IsEventCategory(c string) bool {
	switch c {
	case CategoryGarageSale, CategoryEstateSale, CategoryYardSale, CategoryPopUp, CategorySpecialEvent:
		return true
	}
	return false
}

// FollowResult はフォロートグル後の状態。
type FollowResult struct {
	Following      bool
	Follow         *OrganizerFollow
	Subscription   *EventSubscription
	OrganizerEmail string
}
