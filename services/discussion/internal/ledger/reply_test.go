package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/experience-platform/services/discussion/internal/store"
)

func newReplyLedger(opts ...store.MemoryOption) (*ReplyLedger, *store.InMemoryStore) {
	s := store.NewInMemoryStore(opts...)
	return NewReplyLedger(s, s), s
}

func TestCreateReply_FloorsAreSequentialAndNeverReused(t *testing.T) {
	ctx := context.Background()
	l, s := newReplyLedger()
	exp := s.PutExperience(store.Experience{AuthorID: "author", Type: "work"})

	var created []store.Reply
	for i := 0; i < 3; i++ {
		r, err := l.CreateReply(ctx, exp.ID, "user-a", fmt.Sprintf("reply %d", i))
		require.NoError(t, err)
		assert.Equal(t, i, r.Floor)
		assert.Equal(t, store.ReplyPublished, r.Status)
		assert.Zero(t, r.LikeCount)
		assert.Zero(t, r.ReportCount)
		created = append(created, r)
	}

	require.NoError(t, l.SetStatus(ctx, created[0].ID, store.ReplyHidden))

	next, err := l.CreateReply(ctx, exp.ID, "user-b", "after hide")
	require.NoError(t, err)
	assert.Equal(t, 3, next.Floor)

	items, total, err := l.PublishedRepliesByExperience(ctx, exp.ID, Page{Offset: 0, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	floors := make([]int, len(items))
	for i, r := range items {
		floors[i] = r.Floor
	}
	assert.Equal(t, []int{1, 2, 3}, floors)
}

func TestCreateReply_ConcurrentWritersGetDistinctFloors(t *testing.T) {
	ctx := context.Background()
	l, s := newReplyLedger()
	exp := s.PutExperience(store.Experience{AuthorID: "author", Type: "interview"})

	const k = 50
	floors := make([]int, k)
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := l.CreateReply(ctx, exp.ID, fmt.Sprintf("user-%d", i), "concurrent")
			if err == nil {
				floors[i] = r.Floor
			} else {
				floors[i] = -1
			}
		}(i)
	}
	wg.Wait()

	sort.Ints(floors)
	for i, f := range floors {
		require.Equal(t, i, f)
	}
}

func TestCreateReply_MissingExperience(t *testing.T) {
	ctx := context.Background()
	l, s := newReplyLedger()

	_, err := l.CreateReply(ctx, "no-such-experience", "user-a", "hello")
	require.ErrorIs(t, err, store.ErrNotFound)

	items, total, err := s.ListRepliesByAuthor(ctx, "user-a", 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}

func TestCreateReply_Validation(t *testing.T) {
	ctx := context.Background()
	l, s := newReplyLedger()
	exp := s.PutExperience(store.Experience{AuthorID: "author", Type: "work"})

	cases := map[string]struct {
		author, content string
	}{
		"no author":     {"", "hello"},
		"blank content": {"user-a", "   "},
		"too long":      {"user-a", strings.Repeat("字", MaxContentLen+1)},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := l.CreateReply(ctx, exp.ID, tc.author, tc.content)
			require.ErrorIs(t, err, ErrValidation)
		})
	}

	_, err := l.CreateReply(ctx, exp.ID, "user-a", strings.Repeat("字", MaxContentLen))
	require.NoError(t, err)
}

func TestPublishedRepliesByExperience_PageSize(t *testing.T) {
	ctx := context.Background()
	l, s := newReplyLedger()
	exp := s.PutExperience(store.Experience{AuthorID: "author", Type: "work"})
	const total = 7
	for i := 0; i < total; i++ {
		_, err := l.CreateReply(ctx, exp.ID, "user-a", "hi")
		require.NoError(t, err)
	}

	for _, p := range []Page{{0, 1}, {0, 20}, {3, 2}, {5, 5}, {7, 3}, {100, 1000}} {
		items, n, err := l.PublishedRepliesByExperience(ctx, exp.ID, p)
		require.NoError(t, err)
		assert.Equal(t, total, n)
		want := max(0, min(p.Limit, total-p.Offset))
		assert.Len(t, items, want, "page %+v", p)
		assert.NotNil(t, items)
		if want > 0 {
			assert.Equal(t, p.Offset, items[0].Floor)
		}
	}
}

func TestPublishedRepliesByExperience_Errors(t *testing.T) {
	ctx := context.Background()
	l, _ := newReplyLedger()

	_, _, err := l.PublishedRepliesByExperience(ctx, "missing", Page{Limit: 20})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, _, err = l.PublishedRepliesByExperience(ctx, "missing", Page{Limit: 0})
	assert.ErrorIs(t, err, ErrValidation)
	_, _, err = l.PublishedRepliesByExperience(ctx, "missing", Page{Limit: MaxLimit + 1})
	assert.ErrorIs(t, err, ErrValidation)
	_, _, err = l.PublishedRepliesByExperience(ctx, "missing", Page{Offset: -1, Limit: 20})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRepliesByAuthor_NewestFirstWithoutAuthorIDs(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2017, 8, 1, 8, 0, 0, 0, time.UTC)
	l, s := newReplyLedger(store.WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))
	work := s.PutExperience(store.Experience{AuthorID: "power", Type: "work", Title: "work title"})
	interview := s.PutExperience(store.Experience{AuthorID: "power", Type: "interview", Title: "interview title"})

	first, err := l.CreateReply(ctx, work.ID, "user-a", "first")
	require.NoError(t, err)
	_, err = l.CreateReply(ctx, interview.ID, "user-a", "second")
	require.NoError(t, err)
	_, err = l.CreateReply(ctx, interview.ID, "user-b", "someone else")
	require.NoError(t, err)
	require.NoError(t, l.SetStatus(ctx, first.ID, store.ReplyHidden))

	items, total, err := l.RepliesByAuthor(ctx, "user-a", Page{Limit: 20})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, items, 2)

	assert.Equal(t, "second", items[0].Content)
	assert.Equal(t, store.ExperienceSummary{ID: interview.ID, Title: "interview title"}, items[0].Experience)
	assert.Equal(t, "first", items[1].Content)
	assert.Equal(t, store.ReplyHidden, items[1].Status)

	raw, err := json.Marshal(items)
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, item := range decoded {
		assert.NotContains(t, item, "author_id")
		exp := item["experience"].(map[string]any)
		assert.Len(t, exp, 2)
		assert.Contains(t, exp, "id")
		assert.Contains(t, exp, "title")
	}
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()
	l, _ := newReplyLedger()

	assert.ErrorIs(t, l.SetStatus(ctx, "any", "deleted"), ErrValidation)
	assert.ErrorIs(t, l.SetStatus(ctx, "missing", store.ReplyHidden), store.ErrNotFound)
}
