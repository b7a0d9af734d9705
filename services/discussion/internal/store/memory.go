package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type reportKey struct {
	namespace, targetID, userID string
}

type likeKey struct {
	replyID, userID string
}

// InMemoryStore is a development-only in-memory implementation of Store.
// A single mutex serialises writers, which makes floor assignment and the
// uniqueness checks atomic.
type InMemoryStore struct {
	mu  sync.RWMutex
	now func() time.Time

	experiences map[string]Experience
	replies     map[string]Reply
	nextFloor   map[string]int // experienceID -> next floor to hand out
	reports     map[string]Report
	reportKeys  map[reportKey]string
	likes       map[likeKey]ReplyLike
	users       map[string]UserContribution
	references  map[string]OptionalCount
	popularity  []PopularityLog
}

// MemoryOption customises an InMemoryStore.
type MemoryOption func(*InMemoryStore)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) { s.now = now }
}

func NewInMemoryStore(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		now:         func() time.Time { return time.Now().UTC() },
		experiences: make(map[string]Experience),
		replies:     make(map[string]Reply),
		nextFloor:   make(map[string]int),
		reports:     make(map[string]Report),
		reportKeys:  make(map[reportKey]string),
		likes:       make(map[likeKey]ReplyLike),
		users:       make(map[string]UserContribution),
		references:  make(map[string]OptionalCount),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PutExperience seeds or replaces an experience. An empty ID gets a fresh one.
func (s *InMemoryStore) PutExperience(e Experience) Experience {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	s.experiences[e.ID] = e
	return e
}

// DeleteExperience removes an experience; its replies are kept.
func (s *InMemoryStore) DeleteExperience(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.experiences, id)
}

// PutUser seeds a user record.
func (s *InMemoryStore) PutUser(u UserContribution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.UserID] = u
}

// PutReferenceCount seeds the recommendations entry for userID.
func (s *InMemoryStore) PutReferenceCount(userID string, c OptionalCount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.references[userID] = c
}

// PopularityLogs returns a copy of the recorded popularity logs.
func (s *InMemoryStore) PopularityLogs() []PopularityLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]PopularityLog(nil), s.popularity...)
}

// ReportCount returns the number of stored reports.
func (s *InMemoryStore) ReportCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

func (s *InMemoryStore) GetExperience(_ context.Context, id string) (Experience, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.experiences[id]
	if !ok {
		return Experience{}, ErrNotFound
	}
	return e, nil
}

func (s *InMemoryStore) HasAuthoredExperience(_ context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.experiences {
		if e.AuthorID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) CreateReply(_ context.Context, r Reply) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = uuid.NewString()
	r.Floor = s.nextFloor[r.ExperienceID]
	s.nextFloor[r.ExperienceID] = r.Floor + 1
	r.LikeCount = 0
	r.ReportCount = 0
	r.Status = ReplyPublished
	r.CreatedAt = s.now()
	s.replies[r.ID] = r
	return r, nil
}

func (s *InMemoryStore) GetReply(_ context.Context, id string) (Reply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.replies[id]
	if !ok {
		return Reply{}, ErrNotFound
	}
	return r, nil
}

func (s *InMemoryStore) ListPublishedReplies(_ context.Context, experienceID string, offset, limit int) ([]Reply, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Reply
	for _, r := range s.replies {
		if r.ExperienceID == experienceID && r.Status == ReplyPublished {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Floor < matched[j].Floor
	})
	return page(matched, offset, limit), len(matched), nil
}

func (s *InMemoryStore) ListRepliesByAuthor(_ context.Context, authorID string, offset, limit int) ([]AuthoredReply, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Reply
	for _, r := range s.replies {
		if r.AuthorID == authorID {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.Floor != b.Floor {
			return a.Floor > b.Floor
		}
		return a.ID > b.ID
	})

	window := page(matched, offset, limit)
	out := make([]AuthoredReply, len(window))
	for i, r := range window {
		exp := s.experiences[r.ExperienceID]
		out[i] = AuthoredReply{
			ID:          r.ID,
			Content:     r.Content,
			Floor:       r.Floor,
			LikeCount:   r.LikeCount,
			ReportCount: r.ReportCount,
			Status:      r.Status,
			CreatedAt:   r.CreatedAt,
			Experience:  ExperienceSummary{ID: r.ExperienceID, Title: exp.Title},
		}
	}
	return out, len(matched), nil
}

func (s *InMemoryStore) SetReplyStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.replies[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	s.replies[id] = r
	return nil
}

func (s *InMemoryStore) ReportTargetExists(_ context.Context, namespace, targetID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch namespace {
	case NamespaceReplies:
		_, ok := s.replies[targetID]
		return ok, nil
	case NamespaceExperiences:
		_, ok := s.experiences[targetID]
		return ok, nil
	default:
		return false, nil
	}
}

// bumpReportCount must be called with s.mu held.
func (s *InMemoryStore) bumpReportCount(namespace, targetID string) error {
	switch namespace {
	case NamespaceReplies:
		r, ok := s.replies[targetID]
		if !ok {
			return ErrNotFound
		}
		r.ReportCount++
		s.replies[targetID] = r
	case NamespaceExperiences:
		e, ok := s.experiences[targetID]
		if !ok {
			return ErrNotFound
		}
		e.ReportCount++
		s.experiences[targetID] = e
	default:
		return ErrNotFound
	}
	return nil
}

func (s *InMemoryStore) CreateReport(_ context.Context, r Report) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := reportKey{namespace: r.Namespace, targetID: r.TargetID, userID: r.UserID}
	if _, dup := s.reportKeys[key]; dup {
		return Report{}, ErrDuplicateKey
	}
	if err := s.bumpReportCount(r.Namespace, r.TargetID); err != nil {
		return Report{}, err
	}
	r.ID = uuid.NewString()
	r.CreatedAt = s.now()
	if r.Reason != nil {
		reason := *r.Reason
		r.Reason = &reason
	}
	s.reports[r.ID] = r
	s.reportKeys[key] = r.ID
	return r, nil
}

func (s *InMemoryStore) ListReportsByTarget(_ context.Context, namespace, targetID string, offset, limit int) ([]Report, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Report
	for _, r := range s.reports {
		if r.Namespace == namespace && r.TargetID == targetID {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return page(matched, offset, limit), len(matched), nil
}

func (s *InMemoryStore) CreateReplyLike(_ context.Context, replyID, userID string) (ReplyLike, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := likeKey{replyID: replyID, userID: userID}
	if _, dup := s.likes[key]; dup {
		return ReplyLike{}, ErrDuplicateKey
	}
	r, ok := s.replies[replyID]
	if !ok {
		return ReplyLike{}, ErrNotFound
	}
	r.LikeCount++
	s.replies[replyID] = r
	l := ReplyLike{ID: uuid.NewString(), ReplyID: replyID, UserID: userID, CreatedAt: s.now()}
	s.likes[key] = l
	return l, nil
}

func (s *InMemoryStore) LikedReplyIDs(_ context.Context, replyIDs []string, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, id := range replyIDs {
		if _, ok := s.likes[likeKey{replyID: id, userID: userID}]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *InMemoryStore) GetUserContribution(_ context.Context, userID string) (UserContribution, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	return u, ok, nil
}

func (s *InMemoryStore) ReferenceCount(_ context.Context, userID string) (OptionalCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.references[userID], nil
}

func (s *InMemoryStore) InsertPopularityLog(_ context.Context, l PopularityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.now()
	}
	s.popularity = append(s.popularity, l)
	return nil
}

// page slices items to [offset, offset+limit). The result is never nil.
func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) || limit <= 0 {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return append([]T{}, items[offset:end]...)
}
