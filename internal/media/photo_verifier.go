// Package media はレビューや店舗に添付される写真URLの検証を提供する。
// 画像ファイル自体は外部ストレージにあり、このパッケージは参照の妥当性のみを確認する。
package media

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/sundays/internal/model"
)

// MaxPhotosPerReview はレビュー1件に添付できる写真の上限。
const MaxPhotosPerReview = 10

// maxPhotoSize は到達確認時に許容する画像サイズ（10MB）。
const maxPhotoSize = 10 * 1024 * 1024

// URLGuard はSSRF防止のためのURL検証機能。
type URLGuard interface {
	NewSafeClient(timeout time.Duration) *http.Client
	ValidateURL(rawURL string) error
}

// PhotoVerifier は写真URLの静的検証と、有効な場合は到達確認を行う。
type PhotoVerifier struct {
	guard       URLGuard
	timeout     time.Duration
	checkRemote bool
}

// NewPhotoVerifier はPhotoVerifierを生成する。
// checkRemote が false の場合はURLの静的検証のみを行う。
func NewPhotoVerifier(guard URLGuard, timeout time.Duration, checkRemote bool) *PhotoVerifier {
	return &PhotoVerifier{
		guard:       guard,
		timeout:     timeout,
		checkRemote: checkRemote,
	}
}

// VerifyPhotos は写真URLを検証し、前後の空白と重複を除いた一覧を返す。
// 1件でも不正なURLがあればValidationErrorを返し、Detailsに該当URLを列挙する。
func (v *PhotoVerifier) VerifyPhotos(ctx context.Context, urls []string) ([]string, error) {
	cleaned := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		cleaned = append(cleaned, u)
	}

	if len(cleaned) > MaxPhotosPerReview {
		return nil, model.NewValidationError(fmt.Sprintf("写真は%d枚まで添付できます。", MaxPhotosPerReview))
	}

	var rejected []string
	for _, u := range cleaned {
		if err := v.guard.ValidateURL(u); err != nil {
			slog.Warn("写真URL検証: 不正なURL", "url", u, "error", err)
			rejected = append(rejected, u)
			continue
		}
		if !v.checkRemote {
			continue
		}
		if err := v.checkReachable(ctx, u); err != nil {
			slog.Warn("写真URL検証: 到達確認に失敗", "url", u, "error", err)
			rejected = append(rejected, u)
		}
	}

	if len(rejected) > 0 {
		verr := model.NewValidationError("画像として利用できない写真URLがあります。")
		verr.Details = rejected
		return nil, verr
	}
	return cleaned, nil
}

// checkReachable はHEADリクエストで画像であることを確認する。
// HEADを受け付けないサーバーにはGETで再試行し、本文は読まない。
func (v *PhotoVerifier) checkReachable(ctx context.Context, photoURL string) error {
	client := v.guard.NewSafeClient(v.timeout)

	resp, err := v.do(ctx, client, http.MethodHead, photoURL)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusMethodNotAllowed {
		resp, err = v.do(ctx, client, http.MethodGet, photoURL)
		if err != nil {
			return err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	mimeType := extractMimeType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(mimeType, "image/") {
		return fmt.Errorf("not an image: %q", mimeType)
	}

	if resp.ContentLength > maxPhotoSize {
		return fmt.Errorf("image too large: %d bytes", resp.ContentLength)
	}
	return nil
}

func (v *PhotoVerifier) do(ctx context.Context, client *http.Client, method, photoURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, photoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Sundays/1.0 PhotoVerifier")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	return resp, nil
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを取り出す。
// パラメータが壊れていてもメディアタイプ部分は使う。解釈できない場合は空文字列。
func extractMimeType(contentType string) string {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	return mediaType
}
