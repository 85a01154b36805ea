package repository

import (
	"context"
	"testing"
	"time"
)

func TestIsRecordID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"6f1c2d1e-5a0b-4f7e-9c3d-2b8a9e0f1a2b", true},
		{"abc", false},
		{"", false},
		{"6f1c2d1e-5a0b-4f7e-9c3d", false},
		{"'; DROP TABLE locations; --", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := isRecordID(tt.id); got != tt.want {
				t.Errorf("isRecordID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

// UUIDとして解釈できないIDはDBに問い合わせず該当なしとして返る。
// db が nil のため、問い合わせればpanicする。
func TestRepositories_MalformedIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	const id = "abc"

	finders := map[string]func() (bool, error){
		"location": func() (bool, error) {
			v, err := NewPostgresLocationRepo(nil).FindByID(ctx, id)
			return v != nil, err
		},
		"event": func() (bool, error) {
			v, err := NewPostgresEventRepo(nil).FindByID(ctx, id)
			return v != nil, err
		},
		"conversation": func() (bool, error) {
			v, err := NewPostgresConversationRepo(nil).FindByID(ctx, id)
			return v != nil, err
		},
		"hidden": func() (bool, error) {
			v, err := NewPostgresHiddenContentRepo(nil).FindByID(ctx, id)
			return v != nil, err
		},
		"notification": func() (bool, error) {
			v, err := NewPostgresNotificationRepo(nil).FindByID(ctx, id)
			return v != nil, err
		},
		"subscription": func() (bool, error) {
			v, err := NewPostgresEventSubscriptionRepo(nil).FindByID(ctx, id)
			return v != nil, err
		},
		"user": func() (bool, error) {
			v, err := NewPostgresUserRepo(nil).FindByID(ctx, id)
			return v != nil, err
		},
		"report status": func() (bool, error) {
			v, err := NewPostgresReportRepo(nil).UpdateStatus(ctx, id, "reviewed")
			return v != nil, err
		},
		"location delete": func() (bool, error) {
			return NewPostgresLocationRepo(nil).DeleteByID(ctx, id)
		},
		"event approve": func() (bool, error) {
			return NewPostgresEventRepo(nil).SetApproved(ctx, id, true)
		},
		"review delete": func() (bool, error) {
			return NewPostgresReviewRepo(nil).DeleteByID(ctx, id)
		},
		"activity delete": func() (bool, error) {
			return NewPostgresActivityRepo(nil).DeleteByID(ctx, id)
		},
		"hidden delete": func() (bool, error) {
			return false, NewPostgresHiddenContentRepo(nil).DeleteByID(ctx, id)
		},
		"subscription delete": func() (bool, error) {
			return false, NewPostgresEventSubscriptionRepo(nil).DeleteByID(ctx, id)
		},
		"messages": func() (bool, error) {
			v, err := NewPostgresConversationRepo(nil).ListMessages(ctx, id, nil)
			return len(v) > 0, err
		},
		"reviews": func() (bool, error) {
			v, err := NewPostgresReviewRepo(nil).ListByLocation(ctx, id, ListOptions{})
			return len(v) > 0, err
		},
		"activity": func() (bool, error) {
			v, err := NewPostgresActivityRepo(nil).FindByID(ctx, id)
			return v != nil, err
		},
		"deals": func() (bool, error) {
			v, err := NewPostgresDealRepo(nil).ListAvailable(ctx, id, time.Now())
			return len(v) > 0, err
		},
		"deal delete": func() (bool, error) {
			return NewPostgresDealRepo(nil).DeleteByID(ctx, id)
		},
		"comments": func() (bool, error) {
			v, err := NewPostgresCommentRepo(nil).ListByActivity(ctx, id, ListOptions{})
			return len(v) > 0, err
		},
	}
	for name, find := range finders {
		t.Run(name, func(t *testing.T) {
			found, err := find()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if found {
				t.Error("malformed id should not match any record")
			}
		})
	}
}
