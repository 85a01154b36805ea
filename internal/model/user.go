// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// ユーザーロール
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User はサービス利用ユーザーを表す。
// ドメイン上の所有者識別子はメールアドレスである。
type User struct {
	ID          string
	Email       string
	Name        string // IdPから取得した氏名
	DisplayName string
	Bio         string
	AvatarURL   string
	Role        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PublicName は画面に表示する名前を返す。
// 表示名、氏名、メールアドレスの順にフォールバックする。
func (u *User) PublicName() string {
	if strings.TrimSpace(u.DisplayName) != "" {
		return u.DisplayName
	}
	if strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	return u.Email
}

// Viewer はリクエストを行った認証済みユーザーの識別情報。
// セッションミドルウェアで解決され、各サービス操作へ明示的に渡される。
type Viewer struct {
	UserID string
	Email  string
	Name   string
	Role   string
}

// IsAdmin は管理者かどうかを返す。
func (v Viewer) IsAdmin() bool {
	return v.Role == RoleAdmin
}

// IsAnonymous は未ログインの閲覧者かどうかを返す。
func (v Viewer) IsAnonymous() bool {
	return v.Email == ""
}

// ViewerFromUser はユーザーからViewerを組み立てる。
func ViewerFromUser(u *User) Viewer {
	return Viewer{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.PublicName(),
		Role:   u.Role,
	}
}

// UserProfileUpdate はプロフィール更新の部分更新フィールド。
// nilのフィールドは変更しない。
type UserProfileUpdate struct {
	DisplayName *string
	Bio         *string
	AvatarURL   *string
}

// Identity は外部IdPとの紐付け情報を表す。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
