package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/example/experience-platform/internal/platform/analytics"
	"github.com/example/experience-platform/internal/platform/api"
	"github.com/example/experience-platform/internal/platform/auth"
	"github.com/example/experience-platform/services/discussion/internal/ledger"
)

// LikeReply handles POST /v1/replies/{id}/likes
func LikeReply(likes *ledger.LikeLedger, pub *analytics.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := requestID(r)
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", rid)
			return
		}
		replyID, ok := pathID(w, r, rid)
		if !ok {
			return
		}

		_, err := likes.LikeReply(r.Context(), replyID, userID)
		writeOutcome(w, log, rid, entityLike, err)
		if err != nil {
			return
		}

		pub.Publish(analytics.SubjectReplyLiked, "reply_liked", userID, map[string]any{"reply_id": replyID})
		api.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
