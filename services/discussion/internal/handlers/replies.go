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

type createReplyRequest struct {
	Content string `json:"content"`
}

type setStatusRequest struct {
	Status string `json:"status"`
}

type replyView struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	LikeCount   int       `json:"like_count"`
	ReportCount int       `json:"report_count"`
	Floor       int       `json:"floor"`
	CreatedAt   time.Time `json:"created_at"`
	Liked       *bool     `json:"liked,omitempty"`
}

type replyResponse struct {
	Reply replyView `json:"reply"`
}

type repliesResponse struct {
	Replies []replyView `json:"replies"`
	Total   int         `json:"total"`
}

type authoredRepliesResponse struct {
	Replies []store.AuthoredReply `json:"replies"`
	Total   int                   `json:"total"`
}

func newReplyView(r store.Reply) replyView {
	return replyView{
		ID:          r.ID,
		Content:     r.Content,
		LikeCount:   r.LikeCount,
		ReportCount: r.ReportCount,
		Floor:       r.Floor,
		CreatedAt:   r.CreatedAt,
	}
}

// CreateReply handles POST /v1/experiences/{id}/replies
func CreateReply(replies *ledger.ReplyLedger, pub *analytics.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := requestID(r)
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", rid)
			return
		}
		experienceID, ok := pathID(w, r, rid)
		if !ok {
			return
		}

		var req createReplyRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}

		reply, err := replies.CreateReply(r.Context(), experienceID, userID, req.Content)
		writeOutcome(w, log, rid, entityReply, err)
		if err != nil {
			return
		}

		pub.Publish(analytics.SubjectExperienceReplied, "experience_replied", userID, map[string]any{
			"experience_id": experienceID,
			"reply_id":      reply.ID,
		})
		api.WriteJSON(w, http.StatusOK, replyResponse{Reply: newReplyView(reply)})
	}
}

// ListReplies handles GET /v1/experiences/{id}/replies. Authenticated callers
// also get a liked flag per reply.
func ListReplies(replies *ledger.ReplyLedger, likes *ledger.LikeLedger, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := requestID(r)
		experienceID, ok := pathID(w, r, rid)
		if !ok {
			return
		}
		page, ok := parsePage(w, r, rid, ledger.MaxLimit)
		if !ok {
			return
		}

		items, total, err := replies.PublishedRepliesByExperience(r.Context(), experienceID, page)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}

		views := make([]replyView, len(items))
		for i, item := range items {
			views[i] = newReplyView(item)
		}

		if userID, ok := auth.UserIDFromContext(r.Context()); ok && userID != "" {
			ids := make([]string, len(items))
			for i, item := range items {
				ids[i] = item.ID
			}
			liked, err := likes.LikedSet(r.Context(), ids, userID)
			if err != nil {
				writeError(w, log, rid, err)
				return
			}
			for i := range views {
				_, isLiked := liked[views[i].ID]
				views[i].Liked = &isLiked
			}
		}

		api.WriteJSON(w, http.StatusOK, repliesResponse{Replies: views, Total: total})
	}
}

// SetReplyStatus handles PUT /v1/replies/{id}/status (admin only).
func SetReplyStatus(replies *ledger.ReplyLedger, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := requestID(r)
		replyID, ok := pathID(w, r, rid)
		if !ok {
			return
		}
		var req setStatusRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		if err := replies.SetStatus(r.Context(), replyID, req.Status); err != nil {
			writeError(w, log, rid, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// myRepliesMaxLimit caps /v1/me/replies tighter than the thread listing.
const myRepliesMaxLimit = 100

// MyReplies handles GET /v1/me/replies
func MyReplies(replies *ledger.ReplyLedger, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := requestID(r)
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", rid)
			return
		}
		page, ok := parsePage(w, r, rid, myRepliesMaxLimit)
		if !ok {
			return
		}

		items, total, err := replies.RepliesByAuthor(r.Context(), userID, page)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, authoredRepliesResponse{Replies: items, Total: total})
	}
}
