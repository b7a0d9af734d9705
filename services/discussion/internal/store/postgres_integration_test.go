package store

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// openTestStore applies schema.sql into a throwaway schema of TEST_DATABASE_URL.
func openTestStore(t *testing.T) (*PostgresStore, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	schema := "discussion_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	admin, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		_ = admin.Close(context.Background())
	})

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	cfg.MaxConns = 16
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)

	ddl, err := os.ReadFile("schema.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, string(ddl)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return NewPostgresStore(pool), pool
}

func insertExperience(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	var id string
	err := pool.QueryRow(context.Background(),
		`INSERT INTO experiences (author_id, type, title) VALUES ('author', 'work', 't') RETURNING id::text`).Scan(&id)
	if err != nil {
		t.Fatalf("insert experience: %v", err)
	}
	return id
}

func TestPostgresStore_CreateReply_ConcurrentFloors(t *testing.T) {
	s, pool := openTestStore(t)
	ctx := context.Background()
	expID := insertExperience(t, pool)

	const k = 30
	floors := make([]int, k)
	errs := make([]error, k)
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := s.CreateReply(ctx, Reply{ExperienceID: expID, AuthorID: "user-a", Content: "hi"})
			floors[i], errs[i] = r.Floor, err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("writer %d: %v", i, err)
		}
	}
	sort.Ints(floors)
	for i, f := range floors {
		if f != i {
			t.Fatalf("expected floors 0..%d, got %v", k-1, floors)
		}
	}
}

func TestPostgresStore_CreateReply_FailedInsertKeepsFloor(t *testing.T) {
	s, pool := openTestStore(t)
	ctx := context.Background()
	expID := insertExperience(t, pool)

	if _, err := s.CreateReply(ctx, Reply{ExperienceID: uuid.NewString(), AuthorID: "user-a", Content: "hi"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown experience, got %v", err)
	}

	first, err := s.CreateReply(ctx, Reply{ExperienceID: expID, AuthorID: "user-a", Content: "hi"})
	if err != nil || first.Floor != 0 {
		t.Fatalf("expected floor 0, got %d (%v)", first.Floor, err)
	}

	// Occupy floor 1 behind the counter's back so the next insert collides
	// after the counter row has been bumped.
	if _, err := pool.Exec(ctx,
		`INSERT INTO replies (experience_id, author_id, content, floor) VALUES ($1, 'squatter', 'x', 1)`, expID); err != nil {
		t.Fatalf("insert squatter: %v", err)
	}
	if _, err := s.CreateReply(ctx, Reply{ExperienceID: expID, AuthorID: "user-a", Content: "hi"}); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey on floor collision, got %v", err)
	}
	if _, err := pool.Exec(ctx, `DELETE FROM replies WHERE author_id = 'squatter'`); err != nil {
		t.Fatalf("delete squatter: %v", err)
	}

	next, err := s.CreateReply(ctx, Reply{ExperienceID: expID, AuthorID: "user-a", Content: "hi"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if next.Floor != 1 {
		t.Fatalf("failed insert consumed a floor: expected 1, got %d", next.Floor)
	}
}

func TestPostgresStore_CreateReport_ConcurrentDuplicates(t *testing.T) {
	s, pool := openTestStore(t)
	ctx := context.Background()
	expID := insertExperience(t, pool)
	reply, err := s.CreateReply(ctx, Reply{ExperienceID: expID, AuthorID: "user-a", Content: "hi"})
	if err != nil {
		t.Fatalf("create reply: %v", err)
	}

	const k = 20
	errs := make([]error, k)
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CreateReport(ctx, Report{
				Namespace: NamespaceReplies, TargetID: reply.ID, UserID: "reporter", ReasonCategory: "其他",
			})
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateKey):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != k-1 {
		t.Fatalf("expected 1 success and %d duplicates, got %d and %d", k-1, ok, dup)
	}

	_, total, err := s.ListReportsByTarget(ctx, NamespaceReplies, reply.ID, 0, 100)
	if err != nil || total != 1 {
		t.Fatalf("expected 1 stored report, got %d (%v)", total, err)
	}
	got, err := s.GetReply(ctx, reply.ID)
	if err != nil || got.ReportCount != 1 {
		t.Fatalf("expected report_count 1, got %d (%v)", got.ReportCount, err)
	}
}

func TestPostgresStore_CreateReport_MissingTarget(t *testing.T) {
	s, pool := openTestStore(t)
	ctx := context.Background()
	expID := insertExperience(t, pool)

	for _, target := range []string{uuid.NewString(), "not-a-uuid"} {
		_, err := s.CreateReport(ctx, Report{
			Namespace: NamespaceReplies, TargetID: target, UserID: "reporter", ReasonCategory: "其他",
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("target %q: expected ErrNotFound, got %v", target, err)
		}
	}
	_, total, _ := s.ListReportsByTarget(ctx, NamespaceReplies, "not-a-uuid", 0, 10)
	if total != 0 {
		t.Fatalf("expected no stored reports, got %d", total)
	}

	if _, err := s.CreateReport(ctx, Report{
		Namespace: NamespaceExperiences, TargetID: expID, UserID: "reporter", ReasonCategory: "其他",
	}); err != nil {
		t.Fatalf("experience report: %v", err)
	}
	exp, err := s.GetExperience(ctx, expID)
	if err != nil || exp.ReportCount != 1 {
		t.Fatalf("expected experience report_count 1, got %d (%v)", exp.ReportCount, err)
	}
}

func TestPostgresStore_CreateReplyLike_Duplicate(t *testing.T) {
	s, pool := openTestStore(t)
	ctx := context.Background()
	expID := insertExperience(t, pool)
	reply, err := s.CreateReply(ctx, Reply{ExperienceID: expID, AuthorID: "user-a", Content: "hi"})
	if err != nil {
		t.Fatalf("create reply: %v", err)
	}

	if _, err := s.CreateReplyLike(ctx, reply.ID, "user-b"); err != nil {
		t.Fatalf("like: %v", err)
	}
	if _, err := s.CreateReplyLike(ctx, reply.ID, "user-b"); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if _, err := s.CreateReplyLike(ctx, uuid.NewString(), "user-b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing reply, got %v", err)
	}

	got, err := s.GetReply(ctx, reply.ID)
	if err != nil || got.LikeCount != 1 {
		t.Fatalf("expected like_count 1, got %d (%v)", got.LikeCount, err)
	}
	ids, err := s.LikedReplyIDs(ctx, []string{reply.ID}, "user-b")
	if err != nil || len(ids) != 1 {
		t.Fatalf("expected the like to be listed, got %v (%v)", ids, err)
	}
}

func TestPostgresStore_Ping(t *testing.T) {
	s, _ := openTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
