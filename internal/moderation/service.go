// Package moderation は通報と非表示のドメインロジックを提供する。
// 非表示はコンテンツ自体を変更せず、閲覧者ごとの表示から除外するだけである。
package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/sundays/internal/model"
	"github.com/hitoshi/sundays/internal/repository"
)

// maxReasonLength は通報理由の最大文字数。
const maxReasonLength = 1000

// TextSanitizer はユーザー入力からマークアップを除去する。
type TextSanitizer interface {
	SanitizeText(raw string) string
}

// Recorder は通報のメトリクス記録先。
type Recorder interface {
	RecordReport(contentType string, hidden bool)
}

// ReportInput は通報の入力値。
type ReportInput struct {
	ContentType  model.ContentType
	ContentID    string
	ContentTitle string
	Reason       string
	Hide         bool
}

// ReportResult は通報の結果。Hide指定時はHiddenに非表示レコードが入る。
type ReportResult struct {
	Report *model.Report
	Hidden *model.HiddenContent
}

// Service はモデレーションのサービス層。
type Service struct {
	reportRepo repository.ReportRepository
	hiddenRepo repository.HiddenContentRepository
	sanitizer  TextSanitizer
	recorder   Recorder
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	reportRepo repository.ReportRepository,
	hiddenRepo repository.HiddenContentRepository,
	sanitizer TextSanitizer,
	recorder Recorder,
) *Service {
	return &Service{
		reportRepo: reportRepo,
		hiddenRepo: hiddenRepo,
		sanitizer:  sanitizer,
		recorder:   recorder,
	}
}

// Report はコンテンツを通報する。
// 理由が空の場合は何も書き込まずにValidationErrorを返す。
// in.Hide が true の場合は通報と非表示を同一トランザクションで作成し、
// コミット後に onHide をコンテンツIDで1回だけ呼ぶ。
// 同じ内容の通報を繰り返した場合もその都度新しい通報を作成する。
func (s *Service) Report(ctx context.Context, viewer model.Viewer, in ReportInput, onHide func(contentID string)) (*ReportResult, error) {
	if viewer.IsAnonymous() {
		return nil, model.NewUserNotFoundError()
	}
	if !in.ContentType.Valid() {
		return nil, model.NewValidationError(fmt.Sprintf("通報できないコンテンツ種別です: %s", in.ContentType))
	}
	contentID := strings.TrimSpace(in.ContentID)
	if contentID == "" {
		return nil, model.NewValidationError("通報対象が指定されていません。")
	}

	reason := s.sanitizer.SanitizeText(in.Reason)
	if reason == "" {
		return nil, model.NewValidationError("通報理由を入力してください。")
	}
	if len([]rune(reason)) > maxReasonLength {
		return nil, model.NewValidationError(fmt.Sprintf("通報理由は%d文字以内で入力してください。", maxReasonLength))
	}

	report := &model.Report{
		ReporterEmail: viewer.Email,
		ContentType:   in.ContentType,
		ContentID:     contentID,
		ContentTitle:  s.sanitizer.SanitizeText(in.ContentTitle),
		Reason:        reason,
		Status:        model.ReportPending,
	}

	if !in.Hide {
		if err := s.reportRepo.Create(ctx, report); err != nil {
			return nil, fmt.Errorf("通報の作成に失敗しました: %w", err)
		}
		s.recordReport(in.ContentType, false)
		return &ReportResult{Report: report}, nil
	}

	hidden, err := s.reportRepo.CreateWithHide(ctx, report, &model.HiddenContent{
		UserEmail:   viewer.Email,
		ContentType: in.ContentType,
		ContentID:   contentID,
	})
	if err != nil {
		return nil, fmt.Errorf("通報と非表示の作成に失敗しました: %w", err)
	}

	slog.Info("コンテンツを通報し非表示にしました",
		slog.String("user_email", viewer.Email),
		slog.String("content_type", string(in.ContentType)),
		slog.String("content_id", contentID),
		slog.String("report_id", report.ID),
	)
	s.recordReport(in.ContentType, true)

	if onHide != nil {
		onHide(contentID)
	}
	return &ReportResult{Report: report, Hidden: hidden}, nil
}

// Hide はコンテンツを閲覧者の表示から除外する。既に非表示の場合は既存レコードを返す。
func (s *Service) Hide(ctx context.Context, viewer model.Viewer, contentType model.ContentType, contentID string) (*model.HiddenContent, error) {
	if viewer.IsAnonymous() {
		return nil, model.NewUserNotFoundError()
	}
	if !contentType.Valid() {
		return nil, model.NewValidationError(fmt.Sprintf("非表示にできないコンテンツ種別です: %s", contentType))
	}
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return nil, model.NewValidationError("非表示にする対象が指定されていません。")
	}

	hidden, err := s.hiddenRepo.Create(ctx, &model.HiddenContent{
		UserEmail:   viewer.Email,
		ContentType: contentType,
		ContentID:   contentID,
	})
	if err != nil {
		return nil, fmt.Errorf("非表示の作成に失敗しました: %w", err)
	}
	return hidden, nil
}

// Unhide は非表示レコードをIDで削除する。
// 他のユーザーのレコードは存在しないものとして扱う。
func (s *Service) Unhide(ctx context.Context, viewer model.Viewer, hiddenID string) error {
	hidden, err := s.hiddenRepo.FindByID(ctx, hiddenID)
	if err != nil {
		return fmt.Errorf("非表示レコードの取得に失敗しました: %w", err)
	}
	if hidden == nil || !strings.EqualFold(hidden.UserEmail, viewer.Email) {
		return model.NewNotFoundError(model.ErrCodeHiddenNotFound, "非表示設定", hiddenID)
	}

	if err := s.hiddenRepo.DeleteByID(ctx, hiddenID); err != nil {
		return fmt.Errorf("非表示レコードの削除に失敗しました: %w", err)
	}
	return nil
}

// ListHidden は閲覧者の非表示レコードを返す。
func (s *Service) ListHidden(ctx context.Context, viewer model.Viewer) ([]model.HiddenContent, error) {
	if viewer.IsAnonymous() {
		return []model.HiddenContent{}, nil
	}
	hidden, err := s.hiddenRepo.ListByUser(ctx, viewer.Email)
	if err != nil {
		return nil, fmt.Errorf("非表示一覧の取得に失敗しました: %w", err)
	}
	return hidden, nil
}

// HiddenSet は閲覧者が非表示にしたコンテンツの集合を返す。匿名の場合は空集合。
func (s *Service) HiddenSet(ctx context.Context, viewer model.Viewer) (map[model.ContentKey]struct{}, error) {
	hidden, err := s.ListHidden(ctx, viewer)
	if err != nil {
		return nil, err
	}
	set := make(map[model.ContentKey]struct{}, len(hidden))
	for _, h := range hidden {
		set[model.ContentKey{Type: h.ContentType, ID: h.ContentID}] = struct{}{}
	}
	return set, nil
}

// HiddenSetSource は閲覧者が非表示にしたコンテンツの集合を返す。*Service が実装する。
type HiddenSetSource interface {
	HiddenSet(ctx context.Context, viewer model.Viewer) (map[model.ContentKey]struct{}, error)
}

var _ HiddenSetSource = (*Service)(nil)

// VisibleTo は閲覧者が非表示にしたものを除いた items を返す。
// 一覧を表示する全ての箇所はこの関数を通して非表示を反映する。src が nil の場合は何も除かない。
func VisibleTo[T model.Moderatable](ctx context.Context, src HiddenSetSource, viewer model.Viewer, items []T) ([]T, error) {
	if src == nil || viewer.IsAnonymous() || len(items) == 0 {
		return items, nil
	}
	hidden, err := src.HiddenSet(ctx, viewer)
	if err != nil {
		return nil, err
	}
	return FilterHidden(items, hidden), nil
}

// FilterHidden は hidden に含まれるものを除いた新しいスライスを返す。
func FilterHidden[T model.Moderatable](items []T, hidden map[model.ContentKey]struct{}) []T {
	if len(hidden) == 0 {
		return items
	}
	visible := make([]T, 0, len(items))
	for _, item := range items {
		if _, ok := hidden[item.ContentRef()]; ok {
			continue
		}
		visible = append(visible, item)
	}
	return visible
}

// ListReports は管理者向けに通報一覧を新しい順に返す。
func (s *Service) ListReports(ctx context.Context, viewer model.Viewer, status model.ReportStatus, limit int) ([]model.Report, error) {
	if !viewer.IsAdmin() {
		return nil, model.NewForbiddenError()
	}
	switch status {
	case "", model.ReportPending, model.ReportReviewed, model.ReportDismissed:
	default:
		return nil, model.NewValidationError(fmt.Sprintf("不正な通報ステータスです: %s", status))
	}

	reports, err := s.reportRepo.List(ctx, status, repository.ListOptions{OrderBy: "-created_at", Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("通報一覧の取得に失敗しました: %w", err)
	}
	return reports, nil
}

// MyReports は閲覧者自身が行った通報を処理状態付きで新しい順に返す。
func (s *Service) MyReports(ctx context.Context, viewer model.Viewer) ([]model.Report, error) {
	if viewer.IsAnonymous() {
		return nil, model.NewUserNotFoundError()
	}
	reports, err := s.reportRepo.ListByReporter(ctx, viewer.Email, repository.ListOptions{OrderBy: "-created_at"})
	if err != nil {
		return nil, fmt.Errorf("通報一覧の取得に失敗しました: %w", err)
	}
	return reports, nil
}

// ResolveReport は通報を対応済み(reviewed)または却下(dismissed)にする。
func (s *Service) ResolveReport(ctx context.Context, viewer model.Viewer, reportID string, status model.ReportStatus) (*model.Report, error) {
	if !viewer.IsAdmin() {
		return nil, model.NewForbiddenError()
	}
	if status != model.ReportReviewed && status != model.ReportDismissed {
		return nil, model.NewValidationError("ステータスは reviewed または dismissed を指定してください。")
	}

	report, err := s.reportRepo.UpdateStatus(ctx, reportID, status)
	if err != nil {
		return nil, fmt.Errorf("通報ステータスの更新に失敗しました: %w", err)
	}
	if report == nil {
		return nil, model.NewNotFoundError(model.ErrCodeReportNotFound, "通報", reportID)
	}

	slog.Info("通報を処理しました",
		slog.String("report_id", reportID),
		slog.String("status", string(status)),
		slog.String("admin_email", viewer.Email),
	)
	return report, nil
}

func (s *Service) recordReport(contentType model.ContentType, hidden bool) {
	if s.recorder != nil {
		s.recorder.RecordReport(string(contentType), hidden)
	}
}
