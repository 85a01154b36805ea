// Package user はログインユーザー自身のプロフィール操作と退会を提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/sundays/internal/model"
	"github.com/hitoshi/sundays/internal/repository"
)

const (
	maxDisplayNameLength = 100
	maxBioLength         = 1000
)

// TextSanitizer はユーザー入力からマークアップを除去する。
type TextSanitizer interface {
	SanitizeText(raw string) string
}

// PhotoVerifier はアバター画像のURLを検証する。
type PhotoVerifier interface {
	VerifyPhotos(ctx context.Context, urls []string) ([]string, error)
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo     repository.UserRepository
	sessionRepo  repository.SessionRepository
	personalData repository.PersonalDataRepository
	sanitizer    TextSanitizer
	photos       PhotoVerifier
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	personalData repository.PersonalDataRepository,
	sanitizer TextSanitizer,
	photos PhotoVerifier,
) *Service {
	return &Service{
		userRepo:     userRepo,
		sessionRepo:  sessionRepo,
		personalData: personalData,
		sanitizer:    sanitizer,
		photos:       photos,
	}
}

// ProfileInput はプロフィール更新の入力値。nilのフィールドは変更しない。
type ProfileInput struct {
	DisplayName *string
	Bio         *string
	AvatarURL   *string
}

// Me はログインユーザーのレコードを返す。
func (s *Service) Me(ctx context.Context, viewer model.Viewer) (*model.User, error) {
	if viewer.IsAnonymous() {
		return nil, model.NewUserNotFoundError()
	}
	user, err := s.userRepo.FindByID(ctx, viewer.UserID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdateMe はログインユーザーのプロフィールを部分更新し、更新後のレコードを返す。
func (s *Service) UpdateMe(ctx context.Context, viewer model.Viewer, in ProfileInput) (*model.User, error) {
	if viewer.IsAnonymous() {
		return nil, model.NewUserNotFoundError()
	}

	var update model.UserProfileUpdate
	if in.DisplayName != nil {
		name := s.sanitizer.SanitizeText(*in.DisplayName)
		if utf8.RuneCountInString(name) > maxDisplayNameLength {
			return nil, model.NewValidationError(fmt.Sprintf("表示名は%d文字以内で入力してください。", maxDisplayNameLength))
		}
		update.DisplayName = &name
	}
	if in.Bio != nil {
		bio := s.sanitizer.SanitizeText(*in.Bio)
		if utf8.RuneCountInString(bio) > maxBioLength {
			return nil, model.NewValidationError(fmt.Sprintf("自己紹介は%d文字以内で入力してください。", maxBioLength))
		}
		update.Bio = &bio
	}
	if in.AvatarURL != nil {
		avatar := strings.TrimSpace(*in.AvatarURL)
		if avatar != "" {
			verified, err := s.photos.VerifyPhotos(ctx, []string{avatar})
			if err != nil {
				return nil, err
			}
			avatar = verified[0]
		}
		update.AvatarURL = &avatar
	}

	user, err := s.userRepo.UpdateProfile(ctx, viewer.UserID, update)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: 個人データ → sessions → user（+ CASCADE: identities）
// 店舗・イベント・レビュー・通報・会話は共有の記録として残す。
func (s *Service) Withdraw(ctx context.Context, viewer model.Viewer) error {
	user, err := s.Me(ctx, viewer)
	if err != nil {
		return err
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", user.ID),
	)

	// 1. 個人データを削除
	if s.personalData != nil {
		n, err := s.personalData.DeleteByUserEmail(ctx, user.Email)
		if err != nil {
			return fmt.Errorf("個人データの削除に失敗しました: %w", err)
		}
		slog.Info("個人データを削除しました",
			slog.String("user_id", user.ID),
			slog.Int64("deleted_rows", n),
		)
	}

	// 2. セッションを削除
	if err := s.sessionRepo.DeleteByUserID(ctx, user.ID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	// 3. ユーザーを削除（identitiesはCASCADE削除）
	if err := s.userRepo.DeleteByID(ctx, user.ID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", user.ID),
	)
	return nil
}
