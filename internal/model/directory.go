package model

import "time"

// 店舗カテゴリ
const (
	LocationVintageStore   = "vintage_store"
	LocationAntiqueStore   = "antique_store"
	LocationThriftStore    = "thrift_store"
	LocationCoffeeShop     = "coffee_shop"
	LocationBakery         = "bakery"
	LocationBreakfastPlace = "breakfast_place"
)

// IsLocationCategory は既知の店舗カテゴリかどうかを返す。
func IsLocationCategory(c string) bool {
	switch c {
	case LocationVintageStore, LocationAntiqueStore, LocationThriftStore,
		LocationCoffeeShop, LocationBakery, LocationBreakfastPlace:
		return true
	}
	return false
}

// Address は住所情報。
type Address struct {
	Street string
	City   string
	State  string
	Zip    string
}

// Location はディレクトリに掲載される店舗。
// 評価集計は RatingSum と TotalReviews から増分で維持される。
type Location struct {
	ID            string
	Name          string
	Category      string
	Bio           string
	Address       Address
	Phone         string
	Email         string
	Website       string
	Hours         map[string]string
	MainImage     string
	IsApproved    bool
	IsFeatured    bool
	RatingSum     int
	TotalReviews  int
	AverageRating float64
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ContentRef は非表示判定用のコンテンツ参照を返す。
func (l Location) ContentRef() ContentKey { return ContentKey{Type: ContentLocation, ID: l.ID} }

// Event は主催者が登録するイベント。CreatedBy が主催者のメールアドレス。
type Event struct {
	ID          string
	Title       string
	EventType   string
	Description string
	Address     Address
	StartDate   time.Time
	EndDate     time.Time
	Image       string
	IsApproved  bool
	IsFeatured  bool
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ContentRef は非表示判定用のコンテンツ参照を返す。
func (e Event) ContentRef() ContentKey { return ContentKey{Type: ContentEvent, ID: e.ID} }

// Review は店舗へのレビュー。
type Review struct {
	ID         string
	LocationID string
	Rating     int
	Comment    string
	Photos     []string
	UserName   string
	UserEmail  string
	CreatedAt  time.Time
}

// ContentRef は非表示判定用のコンテンツ参照を返す。
func (r Review) ContentRef() ContentKey { return ContentKey{Type: ContentReview, ID: r.ID} }

// フィードアクティビティ種別
const (
	ActivityNewLocation = "new_location"
	ActivityNewEvent    = "new_event"
	ActivityNewReview   = "new_review"
	ActivityDealPosted  = "deal_posted"
)

// FeedActivity はホームフィードに表示される出来事の記録。
// 主となる書き込みと同じトランザクションで作成される。
type FeedActivity struct {
	ID           string
	ActivityType string
	Title        string
	Description  string
	LocationID   string
	EventID      string
	UserName     string
	UserEmail    string
	CreatedAt    time.Time
}

// ContentRef は非表示判定用のコンテンツ参照を返す。
func (a FeedActivity) ContentRef() ContentKey { return ContentKey{Type: ContentActivity, ID: a.ID} }

// Deal は店舗オーナーが掲載する特典。
// ValidUntil がnilの場合は期限なし。
type Deal struct {
	ID          string
	LocationID  string
	Title       string
	Description string
	ValidUntil  *time.Time
	IsActive    bool
	CreatedBy   string
	CreatedAt   time.Time
}

// ContentRef は非表示判定用のコンテンツ参照を返す。
func (d Deal) ContentRef() ContentKey { return ContentKey{Type: ContentDeal, ID: d.ID} }

// Available は時刻tの時点で表示できる特典かどうかを返す。
func (d Deal) Available(t time.Time) bool {
	return d.IsActive && (d.ValidUntil == nil || !d.ValidUntil.Before(t))
}

// LocationClaim は店舗とそのオーナーとして認められたユーザーの対応。
// 1ユーザーが保有できる店舗は1件のみ。
type LocationClaim struct {
	LocationID string
	UserEmail  string
	CreatedAt  time.Time
}

// Comment はフィードアクティビティへのコメント。
type Comment struct {
	ID         string
	ActivityID string
	Content    string
	UserName   string
	UserEmail  string
	CreatedAt  time.Time
}

// Submissions は閲覧者自身が登録した店舗とイベント。承認待ちのものも含む。
type Submissions struct {
	Locations []Location
	Events    []Event
}

// OrganizerProfile は主催者プロフィール画面の表示内容。
type OrganizerProfile struct {
	Organizer     User
	Events        []Event
	FollowerCount int
	IsFollowing   bool
}
