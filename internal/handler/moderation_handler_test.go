package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/sundays/internal/model"
	"github.com/hitoshi/sundays/internal/moderation"
)

// mockModerationService はModerationServiceInterfaceのモック実装。
type mockModerationService struct {
	reportFn        func(ctx context.Context, viewer model.Viewer, in moderation.ReportInput, onHide func(string)) (*moderation.ReportResult, error)
	hideFn          func(ctx context.Context, viewer model.Viewer, ct model.ContentType, id string) (*model.HiddenContent, error)
	unhideFn        func(ctx context.Context, viewer model.Viewer, hiddenID string) error
	listHiddenFn    func(ctx context.Context, viewer model.Viewer) ([]model.HiddenContent, error)
	listReportsFn   func(ctx context.Context, viewer model.Viewer, status model.ReportStatus, limit int) ([]model.Report, error)
	resolveReportFn func(ctx context.Context, viewer model.Viewer, id string, status model.ReportStatus) (*model.Report, error)
	myReportsFn     func(ctx context.Context, viewer model.Viewer) ([]model.Report, error)
}

func (m *mockModerationService) Report(ctx context.Context, viewer model.Viewer, in moderation.ReportInput, onHide func(string)) (*moderation.ReportResult, error) {
	return m.reportFn(ctx, viewer, in, onHide)
}

func (m *mockModerationService) Hide(ctx context.Context, viewer model.Viewer, ct model.ContentType, id string) (*model.HiddenContent, error) {
	return m.hideFn(ctx, viewer, ct, id)
}

func (m *mockModerationService) Unhide(ctx context.Context, viewer model.Viewer, hiddenID string) error {
	return m.unhideFn(ctx, viewer, hiddenID)
}

func (m *mockModerationService) ListHidden(ctx context.Context, viewer model.Viewer) ([]model.HiddenContent, error) {
	return m.listHiddenFn(ctx, viewer)
}

func (m *mockModerationService) ListReports(ctx context.Context, viewer model.Viewer, status model.ReportStatus, limit int) ([]model.Report, error) {
	return m.listReportsFn(ctx, viewer, status, limit)
}

func (m *mockModerationService) MyReports(ctx context.Context, viewer model.Viewer) ([]model.Report, error) {
	if m.myReportsFn == nil {
		return nil, nil
	}
	return m.myReportsFn(ctx, viewer)
}

func (m *mockModerationService) ResolveReport(ctx context.Context, viewer model.Viewer, id string, status model.ReportStatus) (*model.Report, error) {
	return m.resolveReportFn(ctx, viewer, id, status)
}

func TestModerationHandler_CreateReport_WithHide(t *testing.T) {
	svc := &mockModerationService{
		reportFn: func(ctx context.Context, viewer model.Viewer, in moderation.ReportInput, onHide func(string)) (*moderation.ReportResult, error) {
			if in.ContentType != model.ContentReview || in.ContentID != "rev-1" || !in.Hide {
				t.Errorf("unexpected input: %+v", in)
			}
			onHide(in.ContentID)
			return &moderation.ReportResult{
				Report: &model.Report{ID: "rep-1", ContentType: in.ContentType, ContentID: in.ContentID, Reason: in.Reason, Status: model.ReportPending},
				Hidden: &model.HiddenContent{ID: "hid-1", ContentType: in.ContentType, ContentID: in.ContentID},
			}, nil
		},
	}
	h := NewModerationHandler(svc)

	body := `{"content_type":"review","content_id":"rev-1","reason":"spam","hide":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/reports", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.CreateReport(w, withViewer(req, testMember))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	var resp reportResultResponse
	decodeBody(t, w, &resp)
	if resp.Report.Status != "pending" || resp.Hidden == nil || resp.Hidden.ID != "hid-1" {
		t.Errorf("unexpected body: %+v", resp)
	}
	if resp.RemovedContentID != "rev-1" {
		t.Errorf("removed_content_id = %q, want rev-1", resp.RemovedContentID)
	}
}

func TestModerationHandler_CreateReport_ValidationError(t *testing.T) {
	svc := &mockModerationService{
		reportFn: func(ctx context.Context, viewer model.Viewer, in moderation.ReportInput, onHide func(string)) (*moderation.ReportResult, error) {
			return nil, model.NewValidationError("通報理由を入力してください。")
		},
	}
	h := NewModerationHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/reports", strings.NewReader(`{"content_type":"event","content_id":"e1","reason":"  "}`))
	w := httptest.NewRecorder()
	h.CreateReport(w, withViewer(req, testMember))

	assertError(t, w, http.StatusBadRequest, model.ErrCodeValidation)
}

func TestModerationHandler_HideAndUnhide(t *testing.T) {
	svc := &mockModerationService{
		hideFn: func(ctx context.Context, viewer model.Viewer, ct model.ContentType, id string) (*model.HiddenContent, error) {
			return &model.HiddenContent{ID: "hid-1", UserEmail: viewer.Email, ContentType: ct, ContentID: id}, nil
		},
		unhideFn: func(ctx context.Context, viewer model.Viewer, hiddenID string) error {
			if hiddenID == "someone-elses" {
				return model.NewNotFoundError(model.ErrCodeHiddenNotFound, "非表示設定", hiddenID)
			}
			return nil
		},
	}
	h := NewModerationHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/hidden", strings.NewReader(`{"content_type":"location","content_id":"loc-1"}`))
	w := httptest.NewRecorder()
	h.Hide(w, withViewer(req, testMember))
	var hidden hiddenResponse
	decodeBody(t, w, &hidden)
	if hidden.ContentType != "location" || hidden.ContentID != "loc-1" {
		t.Errorf("unexpected body: %+v", hidden)
	}

	req = withChiURLParam(httptest.NewRequest(http.MethodDelete, "/api/hidden/hid-1", nil), "id", "hid-1")
	w = httptest.NewRecorder()
	h.Unhide(w, withViewer(req, testMember))
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}

	req = withChiURLParam(httptest.NewRequest(http.MethodDelete, "/api/hidden/someone-elses", nil), "id", "someone-elses")
	w = httptest.NewRecorder()
	h.Unhide(w, withViewer(req, testMember))
	assertError(t, w, http.StatusNotFound, model.ErrCodeHiddenNotFound)
}

func TestModerationHandler_ListReports_ParsesQuery(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus model.ReportStatus
		wantLimit  int
		wantCode   int
	}{
		{"既定", "", "", defaultReportListLimit, http.StatusOK},
		{"ステータスと件数", "?status=pending&limit=5", model.ReportPending, 5, http.StatusOK},
		{"不正な件数", "?limit=-1", "", 0, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockModerationService{
				listReportsFn: func(ctx context.Context, viewer model.Viewer, status model.ReportStatus, limit int) ([]model.Report, error) {
					if status != tt.wantStatus || limit != tt.wantLimit {
						t.Errorf("status/limit = %q/%d, want %q/%d", status, limit, tt.wantStatus, tt.wantLimit)
					}
					return []model.Report{{ID: "rep-1", Status: model.ReportPending}}, nil
				},
			}
			h := NewModerationHandler(svc)
			w := httptest.NewRecorder()
			h.ListReports(w, withViewer(httptest.NewRequest(http.MethodGet, "/api/admin/reports"+tt.query, nil), testAdmin))

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestModerationHandler_ResolveReport(t *testing.T) {
	svc := &mockModerationService{
		resolveReportFn: func(ctx context.Context, viewer model.Viewer, id string, status model.ReportStatus) (*model.Report, error) {
			if status != model.ReportDismissed {
				return nil, model.NewValidationError("bad status")
			}
			return &model.Report{ID: id, Status: status}, nil
		},
	}
	h := NewModerationHandler(svc)

	req := withChiURLParam(httptest.NewRequest(http.MethodPut, "/api/admin/reports/rep-1", strings.NewReader(`{"status":"dismissed"}`)), "id", "rep-1")
	w := httptest.NewRecorder()
	h.ResolveReport(w, withViewer(req, testAdmin))

	var body reportResponse
	decodeBody(t, w, &body)
	if body.ID != "rep-1" || body.Status != "dismissed" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestModerationHandler_MyReports(t *testing.T) {
	svc := &mockModerationService{
		myReportsFn: func(ctx context.Context, viewer model.Viewer) ([]model.Report, error) {
			return []model.Report{{ID: "r-1", ReporterEmail: viewer.Email, Status: model.ReportReviewed}}, nil
		},
	}
	w := httptest.NewRecorder()
	NewModerationHandler(svc).MyReports(w, withViewer(httptest.NewRequest(http.MethodGet, "/", nil), testMember))

	var body []reportResponse
	decodeBody(t, w, &body)
	if len(body) != 1 || body[0].ID != "r-1" {
		t.Errorf("unexpected body: %+v", body)
	}

	w = httptest.NewRecorder()
	NewModerationHandler(svc).MyReports(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assertError(t, w, http.StatusUnauthorized, "UNAUTHORIZED")
}
