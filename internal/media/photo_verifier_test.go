package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/sundays/internal/model"
)

// mockGuard はhttptestサーバー(127.0.0.1)に接続できるよう通常のクライアントを返す。
type mockGuard struct {
	validateFn func(rawURL string) error
}

func (m *mockGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (m *mockGuard) ValidateURL(rawURL string) error {
	if m.validateFn != nil {
		return m.validateFn(rawURL)
	}
	return nil
}

func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/photo.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.WriteHeader(http.StatusOK)
		case "/get-only.png":
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			w.Header().Set("Content-Type", "image/png; charset=binary")
			w.WriteHeader(http.StatusOK)
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusOK)
		case "/huge.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Header().Set("Content-Length", fmt.Sprint(maxPhotoSize+1))
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestVerifyPhotos_StaticOnly(t *testing.T) {
	v := NewPhotoVerifier(&mockGuard{}, time.Second, false)

	got, err := v.VerifyPhotos(context.Background(), []string{
		" https://img.example.com/a.jpg ",
		"",
		"https://img.example.com/a.jpg",
		"https://img.example.com/b.jpg",
	})
	if err != nil {
		t.Fatalf("VerifyPhotos returned error: %v", err)
	}
	want := []string{"https://img.example.com/a.jpg", "https://img.example.com/b.jpg"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestVerifyPhotos_Empty(t *testing.T) {
	v := NewPhotoVerifier(&mockGuard{}, time.Second, true)

	got, err := v.VerifyPhotos(context.Background(), nil)
	if err != nil {
		t.Fatalf("VerifyPhotos returned error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no photos, got %v", got)
	}
}

func TestVerifyPhotos_GuardRejects(t *testing.T) {
	guard := &mockGuard{
		validateFn: func(rawURL string) error {
			if strings.Contains(rawURL, "169.254") {
				return errors.New("blocked")
			}
			return nil
		},
	}
	v := NewPhotoVerifier(guard, time.Second, false)

	_, err := v.VerifyPhotos(context.Background(), []string{
		"https://img.example.com/ok.jpg",
		"http://169.254.169.254/latest/meta-data/",
	})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeValidation {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeValidation)
	}
	if len(apiErr.Details) != 1 || apiErr.Details[0] != "http://169.254.169.254/latest/meta-data/" {
		t.Errorf("Details = %v", apiErr.Details)
	}
}

func TestVerifyPhotos_TooMany(t *testing.T) {
	v := NewPhotoVerifier(&mockGuard{}, time.Second, false)

	urls := make([]string, MaxPhotosPerReview+1)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://img.example.com/%d.jpg", i)
	}

	_, err := v.VerifyPhotos(context.Background(), urls)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVerifyPhotos_CheckReachable(t *testing.T) {
	server := newImageServer(t)
	v := NewPhotoVerifier(&mockGuard{}, 2*time.Second, true)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"画像", "/photo.jpg", false},
		{"HEAD非対応はGETで確認", "/get-only.png", false},
		{"画像以外", "/page.html", true},
		{"存在しない", "/missing.jpg", true},
		{"サイズ超過", "/huge.jpg", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.VerifyPhotos(context.Background(), []string{server.URL + tt.path})
			if (err != nil) != tt.wantErr {
				t.Errorf("VerifyPhotos(%s) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestExtractMimeType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"image/png", "image/png"},
		{"Image/JPEG; charset=binary", "image/jpeg"},
		{"", ""},
		{"image/webp; charset", "image/webp"},
		{"not a media type", ""},
		{"text/html", "text/html"},
	}
	for _, tt := range tests {
		if got := extractMimeType(tt.in); got != tt.want {
			t.Errorf("extractMimeType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
