// Package store defines the discussion entities and their persistence contracts.
package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors
var (
	// ErrNotFound means the referenced experience, reply or report target does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateKey means an insert violated a uniqueness constraint.
	ErrDuplicateKey = errors.New("duplicate key")
)

// Reply statuses.
const (
	ReplyPublished = "published"
	ReplyHidden    = "hidden"
)

// Report namespaces: the entity kind a report points at.
const (
	NamespaceReplies     = "replies"
	NamespaceExperiences = "experiences"
)

// Experience is the parent thread replies attach to. It is owned elsewhere;
// this service only reads it.
type Experience struct {
	ID          string    `json:"id"`
	AuthorID    string    `json:"author_id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	LikeCount   int       `json:"like_count"`
	ReplyCount  int       `json:"reply_count"`
	ReportCount int       `json:"report_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExperienceSummary is the parent projection joined onto a user's own replies.
type ExperienceSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Reply struct {
	ID           string    `json:"id"`
	ExperienceID string    `json:"experience_id"`
	AuthorID     string    `json:"author_id"`
	Content      string    `json:"content"`
	Floor        int       `json:"floor"`
	LikeCount    int       `json:"like_count"`
	ReportCount  int       `json:"report_count"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthoredReply is a reply listed for its own author. It has no
// author field, and its parent carries only id and title.
type AuthoredReply struct {
	ID          string            `json:"id"`
	Content     string            `json:"content"`
	Floor       int               `json:"floor"`
	LikeCount   int               `json:"like_count"`
	ReportCount int               `json:"report_count"`
	Status      string            `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	Experience  ExperienceSummary `json:"experience"`
}

type Report struct {
	ID             string    `json:"id"`
	Namespace      string    `json:"namespace"`
	TargetID       string    `json:"target_id"`
	UserID         string    `json:"user_id"`
	ReasonCategory string    `json:"reason_category"`
	Reason         *string   `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type ReplyLike struct {
	ID        string    `json:"id"`
	ReplyID   string    `json:"reply_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// OptionalCount is a counter that may be absent from its record.
type OptionalCount struct {
	Value int
	Valid bool
}

// Count returns a present counter.
func Count(v int) OptionalCount { return OptionalCount{Value: v, Valid: true} }

// OrZero treats an absent counter as zero.
func (c OptionalCount) OrZero() int {
	if !c.Valid {
		return 0
	}
	return c.Value
}

// UserContribution is the slice of a user record read by the permission check.
type UserContribution struct {
	UserID             string
	TimeAndSalaryCount OptionalCount
}

// PopularityLog records one engagement action on an experience.
type PopularityLog struct {
	ExperienceID string    `json:"experience_id"`
	UserID       string    `json:"user_id"`
	ActionType   string    `json:"action_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// ExperienceReader reads parent threads.
type ExperienceReader interface {
	GetExperience(ctx context.Context, id string) (Experience, error)
	// HasAuthoredExperience reports whether userID authors at least one experience.
	HasAuthoredExperience(ctx context.Context, userID string) (bool, error)
}

// ReplyStore persists replies.
type ReplyStore interface {
	// CreateReply inserts r, assigning ID, CreatedAt, zeroed counters, published
	// status and the next floor of r.ExperienceID in one atomic step.
	CreateReply(ctx context.Context, r Reply) (Reply, error)
	GetReply(ctx context.Context, id string) (Reply, error)
	// ListPublishedReplies returns published replies of an experience by ascending
	// floor, plus the total number of published replies.
	ListPublishedReplies(ctx context.Context, experienceID string, offset, limit int) ([]Reply, int, error)
	// ListRepliesByAuthor returns all replies of authorID newest first, plus the total.
	ListRepliesByAuthor(ctx context.Context, authorID string, offset, limit int) ([]AuthoredReply, int, error)
	SetReplyStatus(ctx context.Context, id, status string) error
}

// ReportTargets resolves report targets by namespace.
type ReportTargets interface {
	ReportTargetExists(ctx context.Context, namespace, targetID string) (bool, error)
}

// ReportStore persists reports.
type ReportStore interface {
	// CreateReport inserts r and bumps the target's report_count in one atomic
	// step. A second report for the same (namespace, target, user) fails with
	// ErrDuplicateKey, and a missing target with ErrNotFound; neither changes
	// the counter.
	CreateReport(ctx context.Context, r Report) (Report, error)
	ListReportsByTarget(ctx context.Context, namespace, targetID string, offset, limit int) ([]Report, int, error)
}

// LikeStore persists reply likes.
type LikeStore interface {
	// CreateReplyLike records the like and bumps the reply's like_count in one
	// atomic step. It fails with ErrDuplicateKey when userID already liked
	// replyID and with ErrNotFound when the reply does not exist.
	CreateReplyLike(ctx context.Context, replyID, userID string) (ReplyLike, error)
	// LikedReplyIDs returns the subset of replyIDs liked by userID.
	LikedReplyIDs(ctx context.Context, replyIDs []string, userID string) ([]string, error)
}

// UserReader reads contribution counters from user records.
type UserReader interface {
	// GetUserContribution returns ok=false when the user record does not exist.
	GetUserContribution(ctx context.Context, userID string) (c UserContribution, ok bool, err error)
}

// ReferenceReader reads the recommendations repository.
type ReferenceReader interface {
	// ReferenceCount returns the count of references written about userID.
	ReferenceCount(ctx context.Context, userID string) (OptionalCount, error)
}

// PopularityLogStore persists popularity logs.
type PopularityLogStore interface {
	InsertPopularityLog(ctx context.Context, l PopularityLog) error
}

// Store is the full persistence surface of the discussion service.
type Store interface {
	ExperienceReader
	ReplyStore
	ReportTargets
	ReportStore
	LikeStore
	UserReader
	ReferenceReader
	PopularityLogStore
}
