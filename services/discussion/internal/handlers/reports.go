package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/experience-platform/internal/platform/analytics"
	"github.com/example/experience-platform/internal/platform/api"
	"github.com/example/experience-platform/internal/platform/auth"
	"github.com/example/experience-platform/services/discussion/internal/ledger"
	"github.com/example/experience-platform/services/discussion/internal/store"
)

type createReportRequest struct {
	ReasonCategory string `json:"reason_category"`
	Reason         string `json:"reason"`
}

type reportView struct {
	ID             string    `json:"id"`
	ReasonCategory string    `json:"reason_category"`
	Reason         *string   `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type reportResponse struct {
	Report reportView `json:"report"`
}

type reportsResponse struct {
	Reports []reportView `json:"reports"`
	Total   int          `json:"total"`
}

func newReportView(r store.Report) reportView {
	return reportView{
		ID:             r.ID,
		ReasonCategory: r.ReasonCategory,
		Reason:         r.Reason,
		CreatedAt:      r.CreatedAt,
	}
}

// CreateReport handles POST /v1/{namespace}/{id}/reports for the given namespace.
func CreateReport(namespace string, reports *ledger.ReportLedger, pub *analytics.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := requestID(r)
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", rid)
			return
		}
		targetID, ok := pathID(w, r, rid)
		if !ok {
			return
		}

		var req createReportRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}

		report, err := reports.CreateReport(r.Context(), ledger.CreateReportParams{
			Namespace:      namespace,
			TargetID:       targetID,
			UserID:         userID,
			ReasonCategory: req.ReasonCategory,
			Reason:         req.Reason,
		})
		writeOutcome(w, log, rid, entityReport, err)
		if err != nil {
			return
		}

		pub.Publish(analytics.SubjectReportCreated, "report_created", userID, map[string]any{
			"namespace": namespace,
			"target_id": targetID,
		})
		api.WriteJSON(w, http.StatusOK, reportResponse{Report: newReportView(report)})
	}
}

// ListReports handles GET /v1/{namespace}/{id}/reports for the given namespace.
func ListReports(namespace string, reports *ledger.ReportLedger, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := requestID(r)
		targetID, ok := pathID(w, r, rid)
		if !ok {
			return
		}
		page, ok := parsePage(w, r, rid, ledger.MaxLimit)
		if !ok {
			return
		}

		items, total, err := reports.ReportsByTarget(r.Context(), namespace, targetID, page)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		views := make([]reportView, len(items))
		for i, item := range items {
			views[i] = newReportView(item)
		}
		api.WriteJSON(w, http.StatusOK, reportsResponse{Reports: views, Total: total})
	}
}
