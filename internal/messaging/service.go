// Package messaging はユーザー間の1対1メッセージのドメインロジックを提供する。
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/sundays/internal/model"
	"github.com/hitoshi/sundays/internal/repository"
)

// maxMessageLength はメッセージ本文の最大文字数。
const maxMessageLength = 2000

// previewLength は通知に載せる本文の文字数。
const previewLength = 80

// UserFinder は宛先ユーザーの解決に使う。
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// NotificationCreator は新着メッセージ通知の作成に使う。
type NotificationCreator interface {
	CreateBatch(ctx context.Context, notifications []model.Notification) error
}

// TextSanitizer はユーザー入力からマークアップを除去する。
type TextSanitizer interface {
	SanitizeText(raw string) string
}

// Recorder はメッセージ送信のメトリクス記録先。
type Recorder interface {
	RecordMessageSent()
}

// Service はメッセージングのサービス層。
type Service struct {
	convRepo  repository.ConversationRepository
	users     UserFinder
	notifier  NotificationCreator
	sanitizer TextSanitizer
	recorder  Recorder
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	convRepo repository.ConversationRepository,
	users UserFinder,
	notifier NotificationCreator,
	sanitizer TextSanitizer,
	recorder Recorder,
) *Service {
	return &Service{
		convRepo:  convRepo,
		users:     users,
		notifier:  notifier,
		sanitizer: sanitizer,
		recorder:  recorder,
	}
}

// StartConversation は閲覧者と相手の会話を返す。既存の会話があれば参加者の順序に関係なく再利用する。
// 自分自身宛ての場合は何も書き込まずにInvalidOperationErrorを返す。
func (s *Service) StartConversation(ctx context.Context, viewer model.Viewer, recipientEmail, eventID string) (*model.Conversation, error) {
	if viewer.IsAnonymous() {
		return nil, model.NewUserNotFoundError()
	}
	me := normalizeEmail(viewer.Email)
	other := normalizeEmail(recipientEmail)
	if other == "" {
		return nil, model.NewValidationError("宛先を指定してください。")
	}
	if other == me {
		return nil, model.NewInvalidOperationError("自分自身にメッセージは送れません。")
	}

	recipient, err := s.users.FindByEmail(ctx, other)
	if err != nil {
		return nil, fmt.Errorf("宛先ユーザーの取得に失敗しました: %w", err)
	}
	if recipient == nil {
		return nil, model.NewNotFoundError(model.ErrCodeUserNotFound, "ユーザー", other)
	}

	conv, created, err := s.convRepo.FindOrCreate(ctx, &model.Conversation{
		ParticipantEmails: []string{me, other},
		ParticipantNames:  []string{viewer.Name, recipient.PublicName()},
		PairKey:           model.PairKey(me, other),
		EventID:           strings.TrimSpace(eventID),
	})
	if err != nil {
		return nil, fmt.Errorf("会話の開始に失敗しました: %w", err)
	}

	if created {
		slog.Info("会話を作成しました",
			slog.String("conversation_id", conv.ID),
			slog.String("user_email", me),
		)
	}
	return conv, nil
}

// SendMessage は会話にメッセージを追加し、会話のプレビューを同一トランザクションで更新する。
// 相手への通知は送信後に作成し、失敗してもメッセージ送信は成功として扱う。
func (s *Service) SendMessage(ctx context.Context, viewer model.Viewer, conversationID, content string) (*model.Message, error) {
	conv, err := s.participantConversation(ctx, viewer, conversationID)
	if err != nil {
		return nil, err
	}

	content = s.sanitizer.SanitizeText(content)
	if content == "" {
		return nil, model.NewValidationError("メッセージを入力してください。")
	}
	if len([]rune(content)) > maxMessageLength {
		return nil, model.NewValidationError(fmt.Sprintf("メッセージは%d文字以内で入力してください。", maxMessageLength))
	}

	msg := &model.Message{
		ConversationID: conv.ID,
		SenderEmail:    normalizeEmail(viewer.Email),
		SenderName:     viewer.Name,
		Content:        content,
	}
	if err := s.convRepo.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("メッセージの送信に失敗しました: %w", err)
	}
	if s.recorder != nil {
		s.recorder.RecordMessageSent()
	}

	s.notifyRecipient(ctx, conv, msg)
	return msg, nil
}

// ListConversations は閲覧者の会話を最終メッセージ日時の新しい順に、未読件数付きで返す。
func (s *Service) ListConversations(ctx context.Context, viewer model.Viewer) ([]model.ConversationSummary, error) {
	list, err := s.convRepo.ListForParticipant(ctx, normalizeEmail(viewer.Email), repository.ListOptions{OrderBy: "-last_message_date"})
	if err != nil {
		return nil, fmt.Errorf("会話一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

// OpenConversation は会話のメッセージを古い順に返し、相手からの未読メッセージを既読にする。
func (s *Service) OpenConversation(ctx context.Context, viewer model.Viewer, conversationID string) (*model.Conversation, []model.Message, error) {
	conv, err := s.participantConversation(ctx, viewer, conversationID)
	if err != nil {
		return nil, nil, err
	}

	if _, err := s.convRepo.MarkReadForViewer(ctx, conv.ID, viewer.Email); err != nil {
		return nil, nil, fmt.Errorf("メッセージの既読化に失敗しました: %w", err)
	}

	messages, err := s.convRepo.ListMessages(ctx, conv.ID, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("メッセージの取得に失敗しました: %w", err)
	}
	return conv, messages, nil
}

// FetchSince は since より後のメッセージを返し、相手からの未読メッセージを既読にする。
// Poller から繰り返し呼ばれる。
func (s *Service) FetchSince(ctx context.Context, viewer model.Viewer, conversationID string, since *time.Time) ([]model.Message, error) {
	if _, err := s.convRepo.MarkReadForViewer(ctx, conversationID, viewer.Email); err != nil {
		return nil, fmt.Errorf("メッセージの既読化に失敗しました: %w", err)
	}
	messages, err := s.convRepo.ListMessages(ctx, conversationID, since)
	if err != nil {
		return nil, fmt.Errorf("メッセージの取得に失敗しました: %w", err)
	}
	return messages, nil
}

// NewPoller は会話のメッセージを一定間隔で取得するPollerを返す。
// 参加者でない場合は会話が存在しないものとして扱う。
func (s *Service) NewPoller(ctx context.Context, viewer model.Viewer, conversationID string, interval time.Duration) (*Poller, error) {
	conv, err := s.participantConversation(ctx, viewer, conversationID)
	if err != nil {
		return nil, err
	}
	return NewPoller(interval, func(ctx context.Context, since *time.Time) ([]model.Message, error) {
		return s.FetchSince(ctx, viewer, conv.ID, since)
	}), nil
}

func (s *Service) participantConversation(ctx context.Context, viewer model.Viewer, conversationID string) (*model.Conversation, error) {
	if viewer.IsAnonymous() {
		return nil, model.NewUserNotFoundError()
	}
	conv, err := s.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("会話の取得に失敗しました: %w", err)
	}
	if conv == nil || !conv.HasParticipant(viewer.Email) {
		return nil, model.NewConversationNotFoundError(conversationID)
	}
	return conv, nil
}

func (s *Service) notifyRecipient(ctx context.Context, conv *model.Conversation, msg *model.Message) {
	if s.notifier == nil {
		return
	}
	var recipient string
	for _, p := range conv.ParticipantEmails {
		if !strings.EqualFold(p, msg.SenderEmail) {
			recipient = p
		}
	}
	if recipient == "" {
		return
	}

	preview := []rune(msg.Content)
	if len(preview) > previewLength {
		preview = append(preview[:previewLength], '…')
	}
	err := s.notifier.CreateBatch(ctx, []model.Notification{{
		UserEmail: recipient,
		Type:      model.NotificationMessage,
		Title:     fmt.Sprintf("%s さんからメッセージ", msg.SenderName),
		Message:   string(preview),
	}})
	if err != nil {
		slog.Warn("メッセージ通知の作成に失敗しました",
			slog.String("conversation_id", conv.ID),
			slog.String("error", err.Error()),
		)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
