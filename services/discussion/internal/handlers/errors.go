package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/experience-platform/internal/platform/api"
	"github.com/example/experience-platform/internal/platform/metrics"
	"github.com/example/experience-platform/services/discussion/internal/ledger"
	"github.com/example/experience-platform/services/discussion/internal/store"
)

// Entities labelled on metrics.LedgerWrites.
const (
	entityReply  = "reply"
	entityReport = "report"
	entityLike   = "like"
)

// writeError maps ledger and store errors onto the API envelope:
// validation 422, missing entity 404, duplicate 403, anything else 500.
func writeError(w http.ResponseWriter, log *zap.Logger, rid string, err error) {
	var verr *ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		api.Unprocessable(w, "VALIDATION_FAILED", verr.Message, rid, map[string]any{"field": verr.Field})
	case errors.Is(err, ledger.ErrValidation):
		api.Unprocessable(w, "VALIDATION_FAILED", err.Error(), rid, nil)
	case errors.Is(err, store.ErrNotFound):
		api.NotFound(w, "NOT_FOUND", "resource not found", rid)
	case errors.Is(err, store.ErrDuplicateKey):
		api.Forbidden(w, "DUPLICATE", "already exists", rid)
	default:
		log.Error("request failed", zap.String("request_id", rid), zap.Error(err))
		api.Internal(w, rid)
	}
}

// writeOutcome records the outcome of a ledger write and, on failure, writes the error.
func writeOutcome(w http.ResponseWriter, log *zap.Logger, rid, entity string, err error) {
	metrics.LedgerWrites.WithLabelValues(entity, outcomeOf(err)).Inc()
	if err != nil {
		writeError(w, log, rid, err)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeCreated
	case errors.Is(err, ledger.ErrValidation):
		return metrics.OutcomeInvalid
	case errors.Is(err, store.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, store.ErrDuplicateKey):
		return metrics.OutcomeDuplicate
	default:
		return metrics.OutcomeError
	}
}
