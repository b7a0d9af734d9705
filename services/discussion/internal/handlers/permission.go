package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/experience-platform/internal/platform/api"
	"github.com/example/experience-platform/internal/platform/auth"
)

// PermissionResolver answers the search-permission question for a user.
type PermissionResolver interface {
	ResolveSearchPermission(ctx context.Context, userID string) (bool, error)
}

type searchPermissionResponse struct {
	HasSearchPermission bool `json:"hasSearchPermission"`
}

// SearchPermission handles GET /v1/me/permissions/search
func SearchPermission(resolver PermissionResolver, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := requestID(r)
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", rid)
			return
		}
		granted, err := resolver.ResolveSearchPermission(r.Context(), userID)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, searchPermissionResponse{HasSearchPermission: granted})
	}
}
