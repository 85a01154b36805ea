package security

import (
	"strings"
	"testing"
)

func TestSanitizeText(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキストはそのまま", "wrong address", "wrong address"},
		{"前後の空白を除去", "  閉店しています \n", "閉店しています"},
		{"タグを除去", "<b>太字</b>と<i>斜体</i>", "太字と斜体"},
		{"scriptは内容ごと除去", "<script>alert(1)</script>こんにちは", "こんにちは"},
		{"実体参照は元に戻す", "Tom & Jerry's", "Tom & Jerry's"},
		{"イベント属性ごと除去", `<img src=x onerror="alert(1)">写真`, "写真"},
		{"空文字列", "", ""},
		{"タグだけの入力は空になる", "<p></p>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizer.SanitizeText(tt.input); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeText_NoMarkupSurvives(t *testing.T) {
	sanitizer := NewTextSanitizer()

	payloads := []string{
		`<a href="javascript:alert(1)">click</a>`,
		`<iframe src="https://evil.example.com"></iframe>`,
		`<style>body{display:none}</style>本文`,
		`<div onclick="steal()">本文</div>`,
	}
	for _, p := range payloads {
		got := sanitizer.SanitizeText(p)
		for _, bad := range []string{"<a", "<iframe", "<style", "onclick", "javascript:"} {
			if strings.Contains(got, bad) {
				t.Errorf("SanitizeText(%q) = %q, should not contain %q", p, got, bad)
			}
		}
	}
}

func TestSanitizeText_Idempotent(t *testing.T) {
	sanitizer := NewTextSanitizer()
	input := "<p>レビュー &amp; 写真</p>"
	first := sanitizer.SanitizeText(input)
	if second := sanitizer.SanitizeText(first); second != first {
		t.Errorf("2回目のサニタイズで結果が変わりました: %q -> %q", first, second)
	}
}

func TestTextSanitizerInterface(t *testing.T) {
	var _ TextSanitizer = NewTextSanitizer()
}
