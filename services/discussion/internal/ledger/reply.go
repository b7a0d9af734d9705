package ledger

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/example/experience-platform/services/discussion/internal/store"
)

// MaxContentLen is the longest accepted reply body, in characters.
const MaxContentLen = 1000

// ValidateContent requires a non-blank body of at most MaxContentLen characters.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return invalid("content", "is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLen {
		return invalid("content", "must be at most 1000 characters")
	}
	return nil
}

// ReplyLedger creates and lists replies.
type ReplyLedger struct {
	experiences store.ExperienceReader
	replies     store.ReplyStore
}

func NewReplyLedger(experiences store.ExperienceReader, replies store.ReplyStore) *ReplyLedger {
	return &ReplyLedger{experiences: experiences, replies: replies}
}

// CreateReply appends a reply to experienceID. The floor is assigned by the
// store in the same step as the insert.
func (l *ReplyLedger) CreateReply(ctx context.Context, experienceID, authorID, content string) (store.Reply, error) {
	if strings.TrimSpace(authorID) == "" {
		return store.Reply{}, invalid("author_id", "is required")
	}
	if err := ValidateContent(content); err != nil {
		return store.Reply{}, err
	}
	if _, err := l.experiences.GetExperience(ctx, experienceID); err != nil {
		return store.Reply{}, fmt.Errorf("get experience %s: %w", experienceID, err)
	}
	reply, err := l.replies.CreateReply(ctx, store.Reply{
		ExperienceID: experienceID,
		AuthorID:     authorID,
		Content:      content,
	})
	if err != nil {
		return store.Reply{}, fmt.Errorf("create reply: %w", err)
	}
	return reply, nil
}

// PublishedRepliesByExperience lists published replies by ascending floor.
// The experience itself must exist.
func (l *ReplyLedger) PublishedRepliesByExperience(ctx context.Context, experienceID string, p Page) ([]store.Reply, int, error) {
	if err := p.Validate(); err != nil {
		return nil, 0, err
	}
	if _, err := l.experiences.GetExperience(ctx, experienceID); err != nil {
		return nil, 0, fmt.Errorf("get experience %s: %w", experienceID, err)
	}
	items, total, err := l.replies.ListPublishedReplies(ctx, experienceID, p.Offset, p.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list replies of %s: %w", experienceID, err)
	}
	return items, total, nil
}

// RepliesByAuthor lists every reply of authorID, hidden ones included, newest first.
func (l *ReplyLedger) RepliesByAuthor(ctx context.Context, authorID string, p Page) ([]store.AuthoredReply, int, error) {
	if err := p.Validate(); err != nil {
		return nil, 0, err
	}
	items, total, err := l.replies.ListRepliesByAuthor(ctx, authorID, p.Offset, p.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list replies by author: %w", err)
	}
	return items, total, nil
}

// SetStatus publishes or hides a reply. Floors are untouched.
func (l *ReplyLedger) SetStatus(ctx context.Context, replyID, status string) error {
	if status != store.ReplyPublished && status != store.ReplyHidden {
		return invalid("status", "must be published or hidden")
	}
	if err := l.replies.SetReplyStatus(ctx, replyID, status); err != nil {
		return fmt.Errorf("set status of reply %s: %w", replyID, err)
	}
	return nil
}
