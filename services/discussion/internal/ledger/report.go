package ledger

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/example/experience-platform/services/discussion/internal/store"
)

// Report reason categories.
const (
	ReasonSpam       = "這是廣告或垃圾訊息"
	ReasonAbuse      = "我認為這篇文章涉及人身攻擊、誹謗"
	ReasonFalseClaim = "我認為這篇文章內容不實"
	ReasonOther      = "其他"
)

const maxReasonLen = 500

var reasonCategories = map[string]struct{}{
	ReasonSpam:       {},
	ReasonAbuse:      {},
	ReasonFalseClaim: {},
	ReasonOther:      {},
}

// CreateReportParams is the input of ReportLedger.CreateReport.
type CreateReportParams struct {
	Namespace      string
	TargetID       string
	UserID         string
	ReasonCategory string
	Reason         string
}

// ValidateReason checks the category against the fixed set. A reason of
// 1..500 characters is required unless the category is ReasonSpam, where it
// is optional but still bounded.
func ValidateReason(category, reason string) error {
	if _, ok := reasonCategories[category]; !ok {
		return invalid("reason_category", "unknown reason category")
	}
	n := utf8.RuneCountInString(reason)
	if category != ReasonSpam && n == 0 {
		return invalid("reason", "is required")
	}
	if n > maxReasonLen {
		return invalid("reason", "must be at most 500 characters")
	}
	return nil
}

// ReportLedger records abuse reports against replies and experiences.
type ReportLedger struct {
	targets store.ReportTargets
	reports store.ReportStore
}

func NewReportLedger(targets store.ReportTargets, reports store.ReportStore) *ReportLedger {
	return &ReportLedger{targets: targets, reports: reports}
}

// CreateReport stores one report per (namespace, target, reporter) together
// with the target's report_count bump. A repeat report fails with
// store.ErrDuplicateKey and leaves the counter alone.
func (l *ReportLedger) CreateReport(ctx context.Context, p CreateReportParams) (store.Report, error) {
	if p.UserID == "" {
		return store.Report{}, invalid("user_id", "is required")
	}
	if err := ValidateReason(p.ReasonCategory, p.Reason); err != nil {
		return store.Report{}, err
	}
	if err := l.requireTarget(ctx, p.Namespace, p.TargetID); err != nil {
		return store.Report{}, err
	}

	report := store.Report{
		Namespace:      p.Namespace,
		TargetID:       p.TargetID,
		UserID:         p.UserID,
		ReasonCategory: p.ReasonCategory,
	}
	if p.Reason != "" {
		reason := p.Reason
		report.Reason = &reason
	}
	created, err := l.reports.CreateReport(ctx, report)
	if err != nil {
		return store.Report{}, fmt.Errorf("create report on %s/%s: %w", p.Namespace, p.TargetID, err)
	}
	return created, nil
}

// ReportsByTarget lists reports on one target, oldest first.
func (l *ReportLedger) ReportsByTarget(ctx context.Context, namespace, targetID string, p Page) ([]store.Report, int, error) {
	if err := p.Validate(); err != nil {
		return nil, 0, err
	}
	if err := l.requireTarget(ctx, namespace, targetID); err != nil {
		return nil, 0, err
	}
	items, total, err := l.reports.ListReportsByTarget(ctx, namespace, targetID, p.Offset, p.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list reports of %s/%s: %w", namespace, targetID, err)
	}
	return items, total, nil
}

func (l *ReportLedger) requireTarget(ctx context.Context, namespace, targetID string) error {
	ok, err := l.targets.ReportTargetExists(ctx, namespace, targetID)
	if err != nil {
		return fmt.Errorf("lookup %s/%s: %w", namespace, targetID, err)
	}
	if !ok {
		return fmt.Errorf("%s/%s: %w", namespace, targetID, store.ErrNotFound)
	}
	return nil
}
