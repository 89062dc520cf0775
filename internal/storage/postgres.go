package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"TravelReport/internal/domain"
	"TravelReport/internal/ports"
	"TravelReport/internal/slug"
)

const pqUniqueViolation = "23505"

var storyColumns = []string{
	"id", "slug", "title", "excerpt", "content", "author", "category",
	"country", "tags", "featured", "editors_pick", "published_at",
	"image_url", "photographer_name", "photographer_url", "source_id",
}

var submissionColumns = []string{
	"id", "name", "email", "title", "content", "category", "country",
	"tags", "status", "created_at", "reviewed_at", "reviewed_by",
	"rejection_reason", "approved_story_id",
}

// PostgresRepository persists stories and submissions in Postgres. Slug
// uniqueness is enforced by a unique index on stories.slug, and submission
// transitions run inside transactions so an approval commits the new story
// and the status change together.
type PostgresRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.StoryRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB handle.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Migrate creates the tables when they are absent. inserted_seq preserves
// publication order for listings.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS stories (
    inserted_seq      BIGSERIAL,
    id                TEXT PRIMARY KEY,
    slug              TEXT NOT NULL UNIQUE,
    title             TEXT NOT NULL,
    excerpt           TEXT NOT NULL DEFAULT '',
    content           TEXT NOT NULL DEFAULT '',
    author            TEXT NOT NULL DEFAULT '',
    category          TEXT NOT NULL DEFAULT '',
    country           TEXT NOT NULL DEFAULT '',
    tags              TEXT[] NOT NULL DEFAULT '{}',
    featured          BOOLEAN NOT NULL DEFAULT FALSE,
    editors_pick      BOOLEAN NOT NULL DEFAULT FALSE,
    published_at      TIMESTAMPTZ NOT NULL,
    image_url         TEXT NOT NULL DEFAULT '',
    photographer_name TEXT NOT NULL DEFAULT '',
    photographer_url  TEXT NOT NULL DEFAULT '',
    source_id         TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS stories_source_id_idx ON stories (source_id) WHERE source_id <> '';

CREATE TABLE IF NOT EXISTS submissions (
    id                TEXT PRIMARY KEY,
    name              TEXT NOT NULL DEFAULT '',
    email             TEXT NOT NULL DEFAULT '',
    title             TEXT NOT NULL,
    content           TEXT NOT NULL,
    category          TEXT NOT NULL DEFAULT '',
    country           TEXT NOT NULL DEFAULT '',
    tags              TEXT[] NOT NULL DEFAULT '{}',
    status            TEXT NOT NULL DEFAULT 'pending',
    created_at        TIMESTAMPTZ NOT NULL,
    reviewed_at       TIMESTAMPTZ,
    reviewed_by       TEXT NOT NULL DEFAULT '',
    rejection_reason  TEXT NOT NULL DEFAULT '',
    approved_story_id TEXT NOT NULL DEFAULT ''
);`

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) AddStory(ctx context.Context, story domain.Story) error {
	if story.Slug == "" || story.Title == "" {
		return fmt.Errorf("%w: story requires slug and title", domain.ErrValidation)
	}
	if story.ID == "" {
		story.ID = uuid.NewString()
	}

	query, args, err := r.sb.Insert("stories").
		Columns(storyColumns...).
		Values(storyValues(story)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateSlug, story.Slug)
		}
		return fmt.Errorf("insert story: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetStoryBySlug(ctx context.Context, s string) (domain.Story, error) {
	return r.getStory(ctx, sq.Eq{"slug": s}, s)
}

func (r *PostgresRepository) GetStoryByID(ctx context.Context, id string) (domain.Story, error) {
	return r.getStory(ctx, sq.Eq{"id": id}, id)
}

func (r *PostgresRepository) getStory(ctx context.Context, where sq.Eq, key string) (domain.Story, error) {
	query, args, err := r.sb.Select(storyColumns...).
		From("stories").
		Where(where).
		ToSql()
	if err != nil {
		return domain.Story{}, fmt.Errorf("build select: %w", err)
	}

	story, err := scanStory(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Story{}, fmt.Errorf("story %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Story{}, fmt.Errorf("scan story: %w", err)
	}
	return story, nil
}

// UpdateStory loads the row FOR UPDATE, applies mutate, and writes the
// mutable columns back. The id and slug survive any mutation.
func (r *PostgresRepository) UpdateStory(ctx context.Context, id string, mutate func(*domain.Story)) (domain.Story, error) {
	if mutate == nil {
		return domain.Story{}, fmt.Errorf("%w: nil mutation", domain.ErrValidation)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Story{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := r.sb.Select(storyColumns...).
		From("stories").
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return domain.Story{}, fmt.Errorf("build select: %w", err)
	}

	story, err := scanStory(tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Story{}, fmt.Errorf("story %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Story{}, fmt.Errorf("scan story: %w", err)
	}

	updated := story
	mutate(&updated)
	updated.ID = story.ID
	updated.Slug = story.Slug

	upd, updArgs, err := r.sb.Update("stories").
		SetMap(map[string]any{
			"title":             updated.Title,
			"excerpt":           updated.Excerpt,
			"content":           updated.Content,
			"author":            updated.Author,
			"category":          updated.Category,
			"country":           updated.Country,
			"tags":              pq.StringArray(updated.Tags),
			"featured":          updated.Featured,
			"editors_pick":      updated.EditorsPick,
			"published_at":      updated.PublishedAt,
			"image_url":         updated.ImageURL,
			"photographer_name": updated.Photographer.Name,
			"photographer_url":  updated.Photographer.ProfileURL,
		}).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Story{}, fmt.Errorf("build update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upd, updArgs...); err != nil {
		return domain.Story{}, fmt.Errorf("update story: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Story{}, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

func (r *PostgresRepository) DeleteStory(ctx context.Context, id string) error {
	query, args, err := r.sb.Delete("stories").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete story: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("story %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) ListStories(ctx context.Context, filter domain.ListFilter) ([]domain.Story, error) {
	b := r.sb.Select(storyColumns...).From("stories").OrderBy("inserted_seq ASC")
	if filter.Category != "" {
		b = b.Where("LOWER(category) = LOWER(?)", filter.Category)
	}
	if filter.Country != "" {
		b = b.Where("LOWER(country) = LOWER(?)", filter.Country)
	}
	if filter.Author != "" {
		b = b.Where("LOWER(author) = LOWER(?)", filter.Author)
	}
	if filter.Tag != "" {
		b = b.Where("? = ANY(tags)", strings.ToLower(filter.Tag))
	}
	if filter.Featured != nil {
		b = b.Where(sq.Eq{"featured": *filter.Featured})
	}
	if filter.EditorsPick != nil {
		b = b.Where(sq.Eq{"editors_pick": *filter.EditorsPick})
	}
	if !filter.Since.IsZero() {
		b = b.Where(sq.GtOrEq{"published_at": filter.Since})
	}
	if !filter.Until.IsZero() {
		b = b.Where(sq.LtOrEq{"published_at": filter.Until})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	return r.queryStories(ctx, query, args...)
}

func (r *PostgresRepository) SearchStories(ctx context.Context, query string) ([]domain.Story, error) {
	q := strings.TrimSpace(query)
	b := r.sb.Select(storyColumns...).From("stories").OrderBy("inserted_seq ASC")
	if q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		b = b.Where(sq.Or{
			sq.Like{"LOWER(title)": pattern},
			sq.Like{"LOWER(content)": pattern},
			sq.Like{"LOWER(excerpt)": pattern},
			sq.Like{"LOWER(category)": pattern},
			sq.Like{"LOWER(country)": pattern},
			sq.Expr("? = ANY(tags)", strings.ToLower(q)),
		})
	}

	sqlStr, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search: %w", err)
	}
	return r.queryStories(ctx, sqlStr, args...)
}

func (r *PostgresRepository) Slugs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT slug FROM stories`)
	if err != nil {
		return nil, fmt.Errorf("query slugs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := map[string]struct{}{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan slug: %w", err)
		}
		out[s] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) HasSourceID(ctx context.Context, sourceID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM stories WHERE source_id = $1)`, sourceID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query source id: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) StoreSubmission(ctx context.Context, sub domain.Submission) error {
	if sub.Title == "" || sub.Content == "" {
		return fmt.Errorf("%w: submission requires title and content", domain.ErrValidation)
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Status == "" {
		sub.Status = domain.SubmissionPending
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}

	query, args, err := r.sb.Insert("submissions").
		Columns(submissionColumns...).
		Values(
			sub.ID, sub.Name, sub.Email, sub.Title, sub.Content,
			sub.Category, sub.Country, pq.StringArray(sub.Tags),
			string(sub.Status), sub.CreatedAt, nullTime(sub.ReviewedAt),
			sub.ReviewedBy, sub.RejectionReason, sub.ApprovedStoryID,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: submission id %s already stored", domain.ErrValidation, sub.ID)
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetSubmissionByID(ctx context.Context, id string) (domain.Submission, error) {
	query, args, err := r.sb.Select(submissionColumns...).
		From("submissions").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Submission{}, fmt.Errorf("build select: %w", err)
	}

	sub, err := scanSubmission(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Submission{}, fmt.Errorf("submission %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Submission{}, fmt.Errorf("scan submission: %w", err)
	}
	return sub, nil
}

func (r *PostgresRepository) ListSubmissions(ctx context.Context, status domain.SubmissionStatus) ([]domain.Submission, error) {
	b := r.sb.Select(submissionColumns...).From("submissions").OrderBy("created_at ASC")
	if status != "" {
		b = b.Where(sq.Eq{"status": string(status)})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) SubmissionStats(ctx context.Context) (domain.SubmissionStats, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM submissions GROUP BY status`)
	if err != nil {
		return domain.SubmissionStats{}, fmt.Errorf("query stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats domain.SubmissionStats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return domain.SubmissionStats{}, fmt.Errorf("scan stats: %w", err)
		}
		stats.Total += count
		switch domain.SubmissionStatus(status) {
		case domain.SubmissionPending:
			stats.Pending = count
		case domain.SubmissionApproved:
			stats.Approved = count
		case domain.SubmissionRejected:
			stats.Rejected = count
		}
	}
	if err := rows.Err(); err != nil {
		return domain.SubmissionStats{}, fmt.Errorf("rows iteration: %w", err)
	}
	return stats, nil
}

// ApproveSubmissionToStory claims the pending submission with a conditional
// UPDATE, inserts the derived story, and links the two, all in one
// transaction. The conditional claim makes concurrent approvals of the same
// submission fail with domain.ErrInvalidState.
func (r *PostgresRepository) ApproveSubmissionToStory(ctx context.Context, id string, overrides domain.Story) (domain.Story, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Story{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := r.sb.Select(submissionColumns...).
		From("submissions").
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return domain.Story{}, fmt.Errorf("build select: %w", err)
	}
	sub, err := scanSubmission(tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Story{}, fmt.Errorf("submission %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Story{}, fmt.Errorf("scan submission: %w", err)
	}
	if sub.Status != domain.SubmissionPending {
		return domain.Story{}, fmt.Errorf("submission %s is %s: %w", id, sub.Status, domain.ErrInvalidState)
	}

	existing, err := r.slugsInTx(ctx, tx)
	if err != nil {
		return domain.Story{}, err
	}

	story := domain.Story{
		ID:          uuid.NewString(),
		Slug:        slug.EnsureUnique(slug.Generate(sub.Title), existing),
		Title:       sub.Title,
		Excerpt:     domain.Excerpt(sub.Content, domain.ExcerptLength),
		Content:     sub.Content,
		Author:      sub.Name,
		Category:    sub.Category,
		Country:     sub.Country,
		Tags:        append([]string(nil), sub.Tags...),
		PublishedAt: time.Now().UTC(),
	}
	applyOverrides(&story, overrides)

	ins, insArgs, err := r.sb.Insert("stories").
		Columns(storyColumns...).
		Values(storyValues(story)...).
		ToSql()
	if err != nil {
		return domain.Story{}, fmt.Errorf("build insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, ins, insArgs...); err != nil {
		if isUniqueViolation(err) {
			return domain.Story{}, fmt.Errorf("%w: %s", domain.ErrDuplicateSlug, story.Slug)
		}
		return domain.Story{}, fmt.Errorf("insert story: %w", err)
	}

	reviewer := overrides.Author
	upd, updArgs, err := r.sb.Update("submissions").
		SetMap(map[string]any{
			"status":            string(domain.SubmissionApproved),
			"reviewed_at":       time.Now().UTC(),
			"reviewed_by":       reviewer,
			"approved_story_id": story.ID,
		}).
		Where(sq.Eq{"id": id, "status": string(domain.SubmissionPending)}).
		ToSql()
	if err != nil {
		return domain.Story{}, fmt.Errorf("build update: %w", err)
	}
	res, err := tx.ExecContext(ctx, upd, updArgs...)
	if err != nil {
		return domain.Story{}, fmt.Errorf("approve submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Story{}, fmt.Errorf("submission %s: %w", id, domain.ErrInvalidState)
	}

	if err := tx.Commit(); err != nil {
		return domain.Story{}, fmt.Errorf("commit: %w", err)
	}
	return story, nil
}

func (r *PostgresRepository) RejectSubmission(ctx context.Context, id, reviewer, reason string) (domain.Submission, error) {
	upd, args, err := r.sb.Update("submissions").
		SetMap(map[string]any{
			"status":           string(domain.SubmissionRejected),
			"reviewed_at":      time.Now().UTC(),
			"reviewed_by":      reviewer,
			"rejection_reason": reason,
		}).
		Where(sq.Eq{"id": id, "status": string(domain.SubmissionPending)}).
		ToSql()
	if err != nil {
		return domain.Submission{}, fmt.Errorf("build update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, upd, args...)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("reject submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		sub, getErr := r.GetSubmissionByID(ctx, id)
		if getErr != nil {
			return domain.Submission{}, getErr
		}
		return domain.Submission{}, fmt.Errorf("submission %s is %s: %w", id, sub.Status, domain.ErrInvalidState)
	}
	return r.GetSubmissionByID(ctx, id)
}

func (r *PostgresRepository) queryStories(ctx context.Context, query string, args ...any) ([]domain.Story, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Story
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		out = append(out, story)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) slugsInTx(ctx context.Context, tx *sql.Tx) (map[string]struct{}, error) {
	rows, err := tx.QueryContext(ctx, `SELECT slug FROM stories`)
	if err != nil {
		return nil, fmt.Errorf("query slugs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := map[string]struct{}{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan slug: %w", err)
		}
		out[s] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStory(row rowScanner) (domain.Story, error) {
	var (
		story domain.Story
		tags  pq.StringArray
	)
	err := row.Scan(
		&story.ID, &story.Slug, &story.Title, &story.Excerpt, &story.Content,
		&story.Author, &story.Category, &story.Country, &tags,
		&story.Featured, &story.EditorsPick, &story.PublishedAt,
		&story.ImageURL, &story.Photographer.Name, &story.Photographer.ProfileURL,
		&story.SourceID,
	)
	if err != nil {
		return domain.Story{}, err
	}
	story.Tags = []string(tags)
	return story, nil
}

func scanSubmission(row rowScanner) (domain.Submission, error) {
	var (
		sub        domain.Submission
		tags       pq.StringArray
		status     string
		reviewedAt sql.NullTime
	)
	err := row.Scan(
		&sub.ID, &sub.Name, &sub.Email, &sub.Title, &sub.Content,
		&sub.Category, &sub.Country, &tags, &status, &sub.CreatedAt,
		&reviewedAt, &sub.ReviewedBy, &sub.RejectionReason, &sub.ApprovedStoryID,
	)
	if err != nil {
		return domain.Submission{}, err
	}
	sub.Tags = []string(tags)
	sub.Status = domain.SubmissionStatus(status)
	if reviewedAt.Valid {
		sub.ReviewedAt = reviewedAt.Time
	}
	return sub, nil
}

func storyValues(story domain.Story) []any {
	return []any{
		story.ID, story.Slug, story.Title, story.Excerpt, story.Content,
		story.Author, story.Category, story.Country, pq.StringArray(story.Tags),
		story.Featured, story.EditorsPick, story.PublishedAt,
		story.ImageURL, story.Photographer.Name, story.Photographer.ProfileURL,
		story.SourceID,
	}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
