// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
// 各コレクションはレコード作成時にIDを採番し、自然キーの一意性をインデックスで保証する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/sundays/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateProfile はプロフィールを部分更新する。見つからない場合はnilを返す。
	UpdateProfile(ctx context.Context, id string, update model.UserProfileUpdate) (*model.User, error)

	// UpdateRole はロールを更新する。見つからない場合はnilを返す。
	UpdateRole(ctx context.Context, id, role string) (*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、sessionsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// PersonalDataRepository は退会時の個人データ削除インターフェース。
type PersonalDataRepository interface {
	// DeleteByUserEmail はユーザーが所有するお気に入り・保存・フォロー・購読・非表示・通知・通知設定を削除する。
	DeleteByUserEmail(ctx context.Context, email string) (int64, error)
}

// ReportRepository は通報の永続化インターフェース。
type ReportRepository interface {
	// Create は通報を作成する。
	Create(ctx context.Context, report *model.Report) error

	// CreateWithHide は通報と非表示レコードを同一トランザクションで作成する。
	// 非表示レコードが既に存在する場合は既存レコードを返す。
	CreateWithHide(ctx context.Context, report *model.Report, hidden *model.HiddenContent) (*model.HiddenContent, error)

	// List は通報一覧を返す。statusが空の場合は全件を対象とする。
	List(ctx context.Context, status model.ReportStatus, opts ListOptions) ([]model.Report, error)

	// ListByReporter は指定ユーザーが行った通報を返す。
	ListByReporter(ctx context.Context, reporterEmail string, opts ListOptions) ([]model.Report, error)

	// UpdateStatus は通報の処理状態を更新する。見つからない場合はnilを返す。
	UpdateStatus(ctx context.Context, id string, status model.ReportStatus) (*model.Report, error)
}

// HiddenContentRepository は非表示コンテンツの永続化インターフェース。
type HiddenContentRepository interface {
	// Create は非表示レコードを作成する。既に存在する場合は既存レコードを返す。
	Create(ctx context.Context, hidden *model.HiddenContent) (*model.HiddenContent, error)
	// FindByID は指定IDの非表示レコードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.HiddenContent, error)
	// DeleteByID は指定IDの非表示レコードを削除する。
	DeleteByID(ctx context.Context, id string) error
	// ListByUser はユーザーの非表示レコードを全件返す。
	ListByUser(ctx context.Context, userEmail string) ([]model.HiddenContent, error)
}

// FavoriteRepository はお気に入りの永続化インターフェース。
type FavoriteRepository interface {
	// Toggle はお気に入りの有無を1文で反転し、反転後に登録済みかどうかを返す。
	Toggle(ctx context.Context, userEmail, locationID string) (bool, error)
	// Set はお気に入りの有無を指定した状態にする。冪等。
	Set(ctx context.Context, userEmail, locationID string, on bool) error
	// ListByUser はユーザーのお気に入りを新しい順に返す。
	ListByUser(ctx context.Context, userEmail string) ([]model.Favorite, error)
}

// SavedEventRepository は保存イベントの永続化インターフェース。
type SavedEventRepository interface {
	// Toggle は保存の有無を1文で反転し、反転後に保存済みかどうかを返す。
	Toggle(ctx context.Context, userEmail, eventID string) (bool, error)
	// Set は保存の有無を指定した状態にする。冪等。
	Set(ctx context.Context, userEmail, eventID string, on bool) error
	// ListByUser はユーザーの保存イベントを新しい順に返す。
	ListByUser(ctx context.Context, userEmail string) ([]model.SavedEvent, error)
}

// FollowRepository は主催者フォローの永続化インターフェース。
// フォローと organizer 種別の購読は常に同一トランザクションで変更される。
type FollowRepository interface {
	// Toggle はフォロー状態を反転する。
	// フォロー時はフォローと購読を作成し、解除時は両方を削除する。
	Toggle(ctx context.Context, followerEmail, organizerEmail string) (*model.FollowResult, error)
	// Unfollow はフォローと対応する購読を削除する。どちらも存在しなくてもエラーにしない。
	Unfollow(ctx context.Context, followerEmail, organizerEmail string) error
	// IsFollowing はフォロー中かどうかを返す。
	IsFollowing(ctx context.Context, followerEmail, organizerEmail string) (bool, error)
	// CountFollowers は主催者のフォロワー数を返す。
	CountFollowers(ctx context.Context, organizerEmail string) (int, error)
}

// EventSubscriptionRepository はイベント購読の永続化インターフェース。
type EventSubscriptionRepository interface {
	// SubscribeCategory はカテゴリ購読を作成する。既に存在する場合は既存レコードを返す。
	SubscribeCategory(ctx context.Context, userEmail, category string) (*model.EventSubscription, error)
	// FindByID は指定IDの購読を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.EventSubscription, error)
	// DeleteByID は指定IDの購読を削除する。
	DeleteByID(ctx context.Context, id string) error
	// ListByUser はユーザーの購読一覧を返す。
	ListByUser(ctx context.Context, userEmail string) ([]model.EventSubscription, error)
	// ListSubscriberEmails は主催者またはカテゴリを購読するユーザーのメールアドレスを重複なく返す。
	ListSubscriberEmails(ctx context.Context, organizerEmail, category string) ([]string, error)
}

// NotificationRepository は通知の永続化インターフェース。
type NotificationRepository interface {
	// ListByUser はユーザーの通知を返す。
	ListByUser(ctx context.Context, userEmail string, opts ListOptions) ([]model.Notification, error)
	// FindByID は指定IDの通知を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Notification, error)
	// MarkRead は通知を既読にする。
	MarkRead(ctx context.Context, id string) error
	// CreateBatch は複数の通知を1回のINSERTで作成する。
	CreateBatch(ctx context.Context, notifications []model.Notification) error
}

// NotificationPreferenceRepository は通知設定の永続化インターフェース。
type NotificationPreferenceRepository interface {
	// FindByUser はユーザーの通知設定を取得する。見つからない場合はnilを返す。
	FindByUser(ctx context.Context, userEmail string) (*model.NotificationPreference, error)
	// Upsert はユーザーの通知設定を作成または更新する。
	Upsert(ctx context.Context, pref *model.NotificationPreference) error
}

// ConversationRepository は会話とメッセージの永続化インターフェース。
type ConversationRepository interface {
	// FindOrCreate は参加者の組で会話を検索し、存在しなければ作成する。
	// 同時に呼ばれても同じ会話に収束する。作成した場合は true を返す。
	FindOrCreate(ctx context.Context, conv *model.Conversation) (*model.Conversation, bool, error)
	// FindByID は指定IDの会話を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	// ListForParticipant は参加している会話を閲覧者宛の未読件数付きで返す。
	ListForParticipant(ctx context.Context, email string, opts ListOptions) ([]model.ConversationSummary, error)
	// AppendMessage はメッセージの追加と会話プレビューの更新を同一トランザクションで行う。
	AppendMessage(ctx context.Context, msg *model.Message) error
	// ListMessages は会話のメッセージを作成日時の昇順で返す。
	// sinceが指定された場合はそれより後のメッセージのみを返す。
	ListMessages(ctx context.Context, conversationID string, since *time.Time) ([]model.Message, error)
	// MarkReadForViewer は閲覧者以外が送信した未読メッセージを既読にし、更新件数を返す。
	MarkReadForViewer(ctx context.Context, conversationID, viewerEmail string) (int64, error)
}

// LocationFilter は店舗一覧の絞り込み条件。
type LocationFilter struct {
	CreatedBy string
	Category  string
	Approved  *bool
	Featured  *bool
}

// LocationRepository は店舗の永続化インターフェース。
type LocationRepository interface {
	// CreateWithActivity は店舗とフィードアクティビティを同一トランザクションで作成する。
	CreateWithActivity(ctx context.Context, loc *model.Location, activity *model.FeedActivity) error
	// FindByID は指定IDの店舗を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Location, error)
	// List は条件に一致する店舗を返す。
	List(ctx context.Context, filter LocationFilter, opts ListOptions) ([]model.Location, error)
	// SetApproved は承認状態を更新する。対象が存在しない場合は false を返す。
	SetApproved(ctx context.Context, id string, approved bool) (bool, error)
	// SetFeatured はおすすめ表示を更新する。対象が存在しない場合は false を返す。
	SetFeatured(ctx context.Context, id string, featured bool) (bool, error)
	// DeleteByID は店舗を削除する。対象が存在しない場合は false を返す。
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// EventFilter はイベント一覧の絞り込み条件。
type EventFilter struct {
	CreatedBy string
	EventType string
	Approved  *bool
	EndsAfter *time.Time
}

// EventRepository はイベントの永続化インターフェース。
type EventRepository interface {
	// CreateWithActivity はイベントとフィードアクティビティを同一トランザクションで作成する。
	CreateWithActivity(ctx context.Context, event *model.Event, activity *model.FeedActivity) error
	// FindByID は指定IDのイベントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Event, error)
	// List は条件に一致するイベントを返す。
	List(ctx context.Context, filter EventFilter, opts ListOptions) ([]model.Event, error)
	// SetApproved は承認状態を更新する。対象が存在しない場合は false を返す。
	SetApproved(ctx context.Context, id string, approved bool) (bool, error)
	// SetFeatured はおすすめ表示を更新する。対象が存在しない場合は false を返す。
	SetFeatured(ctx context.Context, id string, featured bool) (bool, error)
	// DeleteByID はイベントを削除する。対象が存在しない場合は false を返す。
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// ReviewRepository はレビューの永続化インターフェース。
type ReviewRepository interface {
	// CreateWithAggregate はレビュー作成、店舗の評価集計の増分更新、
	// フィードアクティビティ作成を同一トランザクションで行い、更新後の店舗を返す。
	// 店舗が存在しない場合はnilを返し、何も書き込まない。
	CreateWithAggregate(ctx context.Context, review *model.Review, activity *model.FeedActivity) (*model.Location, error)
	// ListByLocation は店舗のレビューを返す。
	ListByLocation(ctx context.Context, locationID string, opts ListOptions) ([]model.Review, error)
	// ListByUser は指定ユーザーが投稿したレビューを返す。
	ListByUser(ctx context.Context, userEmail string, opts ListOptions) ([]model.Review, error)
	// DeleteByID はレビューを削除し、店舗の評価集計を差し引く。対象が存在しない場合は false を返す。
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// ActivityRepository はフィードアクティビティの永続化インターフェース。
type ActivityRepository interface {
	// List はフィードアクティビティを返す。
	List(ctx context.Context, opts ListOptions) ([]model.FeedActivity, error)
	// FindByID は指定IDのアクティビティを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.FeedActivity, error)
	// DeleteByID はアクティビティを削除する。対象が存在しない場合は false を返す。
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// LocationClaimRepository は店舗オーナーの対応付けの永続化インターフェース。
type LocationClaimRepository interface {
	// Assign はユーザーを店舗のオーナーにする。
	// ユーザーが別の店舗を保有していた場合、また店舗に別のオーナーがいた場合は置き換える。
	Assign(ctx context.Context, claim *model.LocationClaim) error
	// FindByUser はユーザーが保有する店舗の対応付けを返す。見つからない場合はnilを返す。
	FindByUser(ctx context.Context, userEmail string) (*model.LocationClaim, error)
}

// DealRepository は特典の永続化インターフェース。
type DealRepository interface {
	// CreateWithActivity は特典と deal_posted アクティビティを同一トランザクションで作成する。
	CreateWithActivity(ctx context.Context, deal *model.Deal, activity *model.FeedActivity) error
	// ListAvailable は時刻atの時点で有効な店舗の特典を新しい順に返す。
	ListAvailable(ctx context.Context, locationID string, at time.Time) ([]model.Deal, error)
	// DeleteByID は特典を削除する。対象が存在しない場合は false を返す。
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// CommentRepository はフィードアクティビティへのコメントの永続化インターフェース。
type CommentRepository interface {
	// Create はコメントを作成する。
	Create(ctx context.Context, comment *model.Comment) error
	// ListByActivity はアクティビティのコメントを返す。
	ListByActivity(ctx context.Context, activityID string, opts ListOptions) ([]model.Comment, error)
}

// ReconcileRepository は複数コレクションにまたがる不整合の修復操作を提供する。
type ReconcileRepository interface {
	// InsertMissingOrganizerSubscriptions はフォローに対応する購読が欠けているものを作成する。
	InsertMissingOrganizerSubscriptions(ctx context.Context) (int64, error)
	// DeleteOrphanOrganizerSubscriptions はフォローが存在しない organizer 種別の購読を削除する。
	DeleteOrphanOrganizerSubscriptions(ctx context.Context) (int64, error)
	// RepairLocationRatings はレビューと一致しない店舗の評価集計を再計算する。
	RepairLocationRatings(ctx context.Context) (int64, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
