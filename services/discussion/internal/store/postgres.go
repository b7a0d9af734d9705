package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the discussion entities in Postgres. Table layout and
// constraints are in schema.sql.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store backed by Postgres.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database reachability.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// reportTargetTables whitelists the tables a report namespace may point at.
var reportTargetTables = map[string]string{
	NamespaceReplies:     "replies",
	NamespaceExperiences: "experiences",
}

// mapErr translates driver errors into the package sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return ErrDuplicateKey
		case "23503", "22P02": // foreign_key_violation, invalid_text_representation (malformed uuid)
			return ErrNotFound
		}
	}
	return err
}

func optionalCount(v *int) OptionalCount {
	if v == nil {
		return OptionalCount{}
	}
	return Count(*v)
}

func (s *PostgresStore) GetExperience(ctx context.Context, id string) (Experience, error) {
	const q = `SELECT id::text, author_id, type, title, like_count, reply_count, report_count, created_at
	           FROM experiences WHERE id = $1`
	var e Experience
	err := s.pool.QueryRow(ctx, q, id).Scan(&e.ID, &e.AuthorID, &e.Type, &e.Title,
		&e.LikeCount, &e.ReplyCount, &e.ReportCount, &e.CreatedAt)
	if err != nil {
		return Experience{}, mapErr(err)
	}
	return e, nil
}

func (s *PostgresStore) HasAuthoredExperience(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM experiences WHERE author_id = $1)`, userID).Scan(&exists)
	return exists, mapErr(err)
}

// CreateReply bumps the per-experience floor counter and inserts the reply in a
// single statement, so a failed insert also rolls the counter back.
func (s *PostgresStore) CreateReply(ctx context.Context, r Reply) (Reply, error) {
	const q = `WITH seq AS (
	               INSERT INTO reply_floor_counters (experience_id, next_floor)
	               VALUES ($1, 1)
	               ON CONFLICT (experience_id)
	               DO UPDATE SET next_floor = reply_floor_counters.next_floor + 1
	               RETURNING next_floor - 1 AS floor
	           )
	           INSERT INTO replies (experience_id, author_id, content, floor)
	           SELECT $1, $2, $3, seq.floor FROM seq
	           RETURNING id::text, experience_id::text, author_id, content, floor, like_count, report_count, status, created_at`
	var out Reply
	err := s.pool.QueryRow(ctx, q, r.ExperienceID, r.AuthorID, r.Content).Scan(
		&out.ID, &out.ExperienceID, &out.AuthorID, &out.Content, &out.Floor,
		&out.LikeCount, &out.ReportCount, &out.Status, &out.CreatedAt)
	if err != nil {
		return Reply{}, mapErr(err)
	}
	return out, nil
}

func (s *PostgresStore) GetReply(ctx context.Context, id string) (Reply, error) {
	const q = `SELECT id::text, experience_id::text, author_id, content, floor, like_count, report_count, status, created_at
	           FROM replies WHERE id = $1`
	var r Reply
	err := s.pool.QueryRow(ctx, q, id).Scan(&r.ID, &r.ExperienceID, &r.AuthorID, &r.Content,
		&r.Floor, &r.LikeCount, &r.ReportCount, &r.Status, &r.CreatedAt)
	if err != nil {
		return Reply{}, mapErr(err)
	}
	return r, nil
}

func (s *PostgresStore) ListPublishedReplies(ctx context.Context, experienceID string, offset, limit int) ([]Reply, int, error) {
	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM replies WHERE experience_id = $1 AND status = 'published'`,
		experienceID).Scan(&total)
	if err != nil {
		return nil, 0, mapErr(err)
	}

	const q = `SELECT id::text, experience_id::text, author_id, content, floor, like_count, report_count, status, created_at
	           FROM replies
	           WHERE experience_id = $1 AND status = 'published'
	           ORDER BY floor ASC
	           LIMIT $2 OFFSET $3`
	rows, err := s.pool.Query(ctx, q, experienceID, limit, offset)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	out := make([]Reply, 0, limit)
	for rows.Next() {
		var r Reply
		if err := rows.Scan(&r.ID, &r.ExperienceID, &r.AuthorID, &r.Content,
			&r.Floor, &r.LikeCount, &r.ReportCount, &r.Status, &r.CreatedAt); err != nil {
			return nil, 0, mapErr(err)
		}
		out = append(out, r)
	}
	return out, total, mapErr(rows.Err())
}

func (s *PostgresStore) ListRepliesByAuthor(ctx context.Context, authorID string, offset, limit int) ([]AuthoredReply, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM replies WHERE author_id = $1`, authorID).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}

	const q = `SELECT r.id::text, r.content, r.floor, r.like_count, r.report_count, r.status, r.created_at,
	                  r.experience_id::text, COALESCE(e.title, '')
	           FROM replies r
	           LEFT JOIN experiences e ON e.id = r.experience_id
	           WHERE r.author_id = $1
	           ORDER BY r.created_at DESC, r.floor DESC, r.id DESC
	           LIMIT $2 OFFSET $3`
	rows, err := s.pool.Query(ctx, q, authorID, limit, offset)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	out := make([]AuthoredReply, 0, limit)
	for rows.Next() {
		var a AuthoredReply
		if err := rows.Scan(&a.ID, &a.Content, &a.Floor, &a.LikeCount, &a.ReportCount, &a.Status,
			&a.CreatedAt, &a.Experience.ID, &a.Experience.Title); err != nil {
			return nil, 0, mapErr(err)
		}
		out = append(out, a)
	}
	return out, total, mapErr(rows.Err())
}

func (s *PostgresStore) SetReplyStatus(ctx context.Context, id, status string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE replies SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ReportTargetExists(ctx context.Context, namespace, targetID string) (bool, error) {
	table, ok := reportTargetTables[namespace]
	if !ok {
		return false, nil
	}
	var exists bool
	q := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)`, table)
	if err := s.pool.QueryRow(ctx, q, targetID).Scan(&exists); err != nil {
		if errors.Is(mapErr(err), ErrNotFound) {
			return false, nil
		}
		return false, mapErr(err)
	}
	return exists, nil
}

// CreateReport inserts the report and bumps the target's report_count in one
// statement. The insert only happens when the target row exists and the bump
// only when the insert produced a row. reports_namespace_target_user_key turns
// a repeat into ErrDuplicateKey with neither change applied.
func (s *PostgresStore) CreateReport(ctx context.Context, r Report) (Report, error) {
	table, ok := reportTargetTables[r.Namespace]
	if !ok {
		return Report{}, ErrNotFound
	}
	q := fmt.Sprintf(`WITH ins AS (
	               INSERT INTO reports (namespace, target_id, user_id, reason_category, reason)
	               SELECT $1::text, $2::text, $3::text, $4::text, $5::text
	               WHERE EXISTS (SELECT 1 FROM %[1]s WHERE id = $6::uuid)
	               RETURNING id::text, namespace, target_id, user_id, reason_category, reason, created_at
	           ), bump AS (
	               UPDATE %[1]s SET report_count = report_count + 1
	               WHERE id = $6::uuid AND EXISTS (SELECT 1 FROM ins)
	           )
	           SELECT * FROM ins`, table)
	var out Report
	err := s.pool.QueryRow(ctx, q, r.Namespace, r.TargetID, r.UserID, r.ReasonCategory, r.Reason, r.TargetID).Scan(
		&out.ID, &out.Namespace, &out.TargetID, &out.UserID, &out.ReasonCategory, &out.Reason, &out.CreatedAt)
	if err != nil {
		return Report{}, mapErr(err)
	}
	return out, nil
}

func (s *PostgresStore) ListReportsByTarget(ctx context.Context, namespace, targetID string, offset, limit int) ([]Report, int, error) {
	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM reports WHERE namespace = $1 AND target_id = $2`,
		namespace, targetID).Scan(&total)
	if err != nil {
		return nil, 0, mapErr(err)
	}

	const q = `SELECT id::text, namespace, target_id, user_id, reason_category, reason, created_at
	           FROM reports
	           WHERE namespace = $1 AND target_id = $2
	           ORDER BY created_at ASC, id ASC
	           LIMIT $3 OFFSET $4`
	rows, err := s.pool.Query(ctx, q, namespace, targetID, limit, offset)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	out := make([]Report, 0, limit)
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.ID, &r.Namespace, &r.TargetID, &r.UserID,
			&r.ReasonCategory, &r.Reason, &r.CreatedAt); err != nil {
			return nil, 0, mapErr(err)
		}
		out = append(out, r)
	}
	return out, total, mapErr(rows.Err())
}

// CreateReplyLike inserts the like and bumps like_count in one statement. The
// reply_likes foreign key reports a missing reply, and
// reply_likes_reply_user_key a repeat like.
func (s *PostgresStore) CreateReplyLike(ctx context.Context, replyID, userID string) (ReplyLike, error) {
	const q = `WITH ins AS (
	               INSERT INTO reply_likes (reply_id, user_id)
	               VALUES ($1::uuid, $2)
	               RETURNING id::text, reply_id::text, user_id, created_at
	           ), bump AS (
	               UPDATE replies SET like_count = like_count + 1
	               WHERE id = $1::uuid AND EXISTS (SELECT 1 FROM ins)
	           )
	           SELECT * FROM ins`
	var l ReplyLike
	if err := s.pool.QueryRow(ctx, q, replyID, userID).Scan(&l.ID, &l.ReplyID, &l.UserID, &l.CreatedAt); err != nil {
		return ReplyLike{}, mapErr(err)
	}
	return l, nil
}

func (s *PostgresStore) LikedReplyIDs(ctx context.Context, replyIDs []string, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT reply_id::text FROM reply_likes WHERE user_id = $1 AND reply_id = ANY($2::uuid[])`,
		userID, replyIDs)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, id)
	}
	return out, mapErr(rows.Err())
}

func (s *PostgresStore) GetUserContribution(ctx context.Context, userID string) (UserContribution, bool, error) {
	var count *int
	err := s.pool.QueryRow(ctx, `SELECT time_and_salary_count FROM users WHERE id = $1`, userID).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserContribution{}, false, nil
	}
	if err != nil {
		return UserContribution{}, false, mapErr(err)
	}
	return UserContribution{UserID: userID, TimeAndSalaryCount: optionalCount(count)}, true, nil
}

func (s *PostgresStore) ReferenceCount(ctx context.Context, userID string) (OptionalCount, error) {
	var count *int
	err := s.pool.QueryRow(ctx, `SELECT count FROM recommendations WHERE user_id = $1`, userID).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return OptionalCount{}, nil
	}
	if err != nil {
		return OptionalCount{}, mapErr(err)
	}
	return optionalCount(count), nil
}

func (s *PostgresStore) InsertPopularityLog(ctx context.Context, l PopularityLog) error {
	const q = `INSERT INTO popular_experience_logs (experience_id, user_id, action_type, created_at)
	           VALUES ($1, $2, $3, COALESCE($4::timestamptz, now()))`
	var createdAt any
	if !l.CreatedAt.IsZero() {
		createdAt = l.CreatedAt
	}
	_, err := s.pool.Exec(ctx, q, l.ExperienceID, l.UserID, l.ActionType, createdAt)
	return mapErr(err)
}
