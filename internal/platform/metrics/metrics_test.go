package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLedgerWrites_Increments(t *testing.T) {
	before := testutil.ToFloat64(LedgerWrites.WithLabelValues("report", OutcomeDuplicate))
	LedgerWrites.WithLabelValues("report", OutcomeDuplicate).Inc()
	after := testutil.ToFloat64(LedgerWrites.WithLabelValues("report", OutcomeDuplicate))
	if after-before != 1 {
		t.Fatalf("expected counter to grow by 1, got %v -> %v", before, after)
	}
}

func TestHandler_Exposition(t *testing.T) {
	LedgerWrites.WithLabelValues("reply", OutcomeCreated).Inc()

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "discussion_ledger_writes_total") {
		t.Fatal("expected ledger writes counter in exposition")
	}
}
