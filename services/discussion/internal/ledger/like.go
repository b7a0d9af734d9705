package ledger

import (
	"context"
	"fmt"

	"github.com/example/experience-platform/services/discussion/internal/store"
)

// LikeLedger answers and records reply likes.
type LikeLedger struct {
	replies store.ReplyStore
	likes   store.LikeStore
}

func NewLikeLedger(replies store.ReplyStore, likes store.LikeStore) *LikeLedger {
	return &LikeLedger{replies: replies, likes: likes}
}

// LikedSet returns the subset of replyIDs that userID has liked.
// An empty replyIDs never reaches the store.
func (l *LikeLedger) LikedSet(ctx context.Context, replyIDs []string, userID string) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	if len(replyIDs) == 0 || userID == "" {
		return set, nil
	}
	ids, err := l.likes.LikedReplyIDs(ctx, replyIDs, userID)
	if err != nil {
		return nil, fmt.Errorf("liked replies: %w", err)
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// LikeReply records a like and bumps the reply's like_count. Liking twice
// fails with store.ErrDuplicateKey.
func (l *LikeLedger) LikeReply(ctx context.Context, replyID, userID string) (store.ReplyLike, error) {
	if userID == "" {
		return store.ReplyLike{}, invalid("user_id", "is required")
	}
	if _, err := l.replies.GetReply(ctx, replyID); err != nil {
		return store.ReplyLike{}, fmt.Errorf("get reply %s: %w", replyID, err)
	}
	like, err := l.likes.CreateReplyLike(ctx, replyID, userID)
	if err != nil {
		return store.ReplyLike{}, fmt.Errorf("like reply %s: %w", replyID, err)
	}
	return like, nil
}
