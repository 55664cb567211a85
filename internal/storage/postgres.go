// internal/storage/postgres.go
package storage

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"
	"github.com/pressly/goose/v3"

	"github.com/MereWhiplash/decision-cogitator/internal/aggregate"
	"github.com/MereWhiplash/decision-cogitator/internal/embedder"
	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// Postgres implements Repository using PostgreSQL with pgvector
type Postgres struct {
	pool      *pgxpool.Pool
	vectors   embedder.Embedder
	closeOnce sync.Once
}

// NewPostgres connects to dsn and applies pending migrations
func NewPostgres(ctx context.Context, dsn string, opts ...Option) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if err := migratePostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Postgres{pool: pool, vectors: applyOptions(opts).embedder}, nil
}

func migratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	fsys, err := fs.Sub(postgresMigrations, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("migrations sub-fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.closeOnce.Do(p.pool.Close)
	return nil
}

// --- specifications ---

const pgSpecColumns = `id, spec_type, identifier, title, content, author, version, hash, metadata, created_at`

func (p *Postgres) StoreSpecification(ctx context.Context, rec types.SpecificationRecord) (_ *types.SpecificationRecord, err error) {
	defer func() { err = types.Fault("store specification", err) }()

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.Hash = types.ContentHash(rec.Content)
	rec.Metadata = emptyIfNil(rec.Metadata)

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Serializes version assignment per identifier without locking the table.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(rec.SpecType)+":"+rec.Identifier); err != nil {
		return nil, fmt.Errorf("failed to lock identifier: %w", err)
	}

	var current int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM specifications WHERE spec_type = $1 AND identifier = $2`,
		rec.SpecType, rec.Identifier,
	).Scan(&current)
	if err != nil {
		return nil, fmt.Errorf("failed to read current version: %w", err)
	}
	rec.Version = max(rec.Version, current+1)

	var taken bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM specifications WHERE id = $1)`, rec.ID).Scan(&taken); err != nil {
		return nil, err
	}
	if taken {
		rec.ID = uuid.NewString()
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO specifications (`+pgSpecColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.SpecType, rec.Identifier, rec.Title, rec.Content, rec.Author,
		rec.Version, rec.Hash, rec.Metadata, rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert specification: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (p *Postgres) GetLatestSpecification(ctx context.Context, specType types.SpecType, identifier string) (_ *types.SpecificationRecord, err error) {
	defer func() { err = types.Fault("get latest specification", err) }()

	if !specType.Valid() {
		return nil, nil
	}
	return pgSpecOrNil(p.pool.QueryRow(ctx,
		`SELECT `+pgSpecColumns+` FROM specifications
		 WHERE spec_type = $1 AND identifier = $2
		 ORDER BY version DESC LIMIT 1`,
		specType, identifier,
	))
}

func (p *Postgres) GetSpecificationAt(ctx context.Context, specType types.SpecType, identifier string, at time.Time) (_ *types.SpecificationRecord, err error) {
	defer func() { err = types.Fault("get specification at", err) }()

	if !specType.Valid() {
		return nil, nil
	}
	return pgSpecOrNil(p.pool.QueryRow(ctx,
		`SELECT `+pgSpecColumns+` FROM specifications
		 WHERE spec_type = $1 AND identifier = $2 AND created_at <= $3
		 ORDER BY version DESC LIMIT 1`,
		specType, identifier, at.UTC(),
	))
}

func (p *Postgres) GetSpecificationHistory(ctx context.Context, specType types.SpecType, identifier string) (_ []types.SpecificationRecord, err error) {
	defer func() { err = types.Fault("get specification history", err) }()

	if !specType.Valid() {
		return []types.SpecificationRecord{}, nil
	}
	return p.querySpecs(ctx,
		`SELECT `+pgSpecColumns+` FROM specifications
		 WHERE spec_type = $1 AND identifier = $2
		 ORDER BY version ASC`,
		specType, identifier,
	)
}

func (p *Postgres) GetRecentSpecifications(ctx context.Context, opts types.SpecListOpts) (_ []types.SpecificationRecord, err error) {
	defer func() { err = types.Fault("get recent specifications", err) }()

	query := `SELECT ` + pgSpecColumns + ` FROM specifications WHERE 1=1`
	args := []interface{}{}
	argNum := 1

	if opts.SpecType != "" {
		query += fmt.Sprintf(" AND spec_type = $%d", argNum)
		args = append(args, opts.SpecType)
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, version DESC LIMIT $%d", argNum)
	args = append(args, listLimit(opts.Limit))

	return p.querySpecs(ctx, query, args...)
}

func (p *Postgres) querySpecs(ctx context.Context, query string, args ...interface{}) ([]types.SpecificationRecord, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	specs := []types.SpecificationRecord{}
	for rows.Next() {
		rec, err := pgScanSpec(rows)
		if err != nil {
			return nil, err
		}
		specs = append(specs, *rec)
	}
	return specs, rows.Err()
}

func pgSpecOrNil(row pgx.Row) (*types.SpecificationRecord, error) {
	rec, err := pgScanSpec(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func pgScanSpec(row pgx.Row) (*types.SpecificationRecord, error) {
	var rec types.SpecificationRecord
	var specType string
	var meta []byte

	err := row.Scan(&rec.ID, &specType, &rec.Identifier, &rec.Title, &rec.Content, &rec.Author,
		&rec.Version, &rec.Hash, &meta, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	rec.SpecType = types.SpecType(specType)
	rec.CreatedAt = rec.CreatedAt.UTC()
	if rec.Metadata, err = unmarshalMap(string(meta)); err != nil {
		return nil, err
	}
	return &rec, nil
}

// --- patterns ---

const pgPatternColumns = `p.id, p.pattern_name, p.pattern_type, p.definition, p.context_similarity,
	p.usage_frequency, p.success_rate, p.last_used, p.examples, p.metadata, p.created_at`

func (p *Postgres) StoreArchitecturalPattern(ctx context.Context, pat types.ArchitecturalPattern) (_ *types.ArchitecturalPattern, err error) {
	defer func() { err = types.Fault("store architectural pattern", err) }()

	if err := pat.Validate(); err != nil {
		return nil, err
	}
	if pat.ID == "" {
		pat.ID = uuid.NewString()
	}
	if pat.CreatedAt.IsZero() {
		pat.CreatedAt = time.Now()
	}
	var lastUsed *time.Time
	if pat.LastUsed != nil {
		t := pat.LastUsed.UTC()
		lastUsed = &t
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO patterns (id, pattern_name, pattern_type, definition, context_similarity,
			usage_frequency, success_rate, last_used, examples, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
			pattern_name = EXCLUDED.pattern_name,
			pattern_type = EXCLUDED.pattern_type,
			definition = EXCLUDED.definition,
			context_similarity = EXCLUDED.context_similarity,
			usage_frequency = EXCLUDED.usage_frequency,
			success_rate = EXCLUDED.success_rate,
			last_used = EXCLUDED.last_used,
			examples = EXCLUDED.examples,
			metadata = EXCLUDED.metadata`,
		pat.ID, pat.PatternName, pat.PatternType, pat.Definition, pat.ContextSimilarity,
		pat.UsageFrequency, pat.SuccessRate, lastUsed, nonNilStrings(pat.Examples),
		emptyIfNil(pat.Metadata), pat.CreatedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert pattern: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM pattern_vectors WHERE pattern_id = $1`, pat.ID); err != nil {
		return nil, fmt.Errorf("failed to clear pattern vector: %w", err)
	}
	vec, err := p.vectors.EmbedForStorage(pat.SearchText())
	if err != nil {
		return nil, fmt.Errorf("failed to embed pattern: %w", err)
	}
	if !embedder.IsZero(vec) {
		_, err = tx.Exec(ctx,
			`INSERT INTO pattern_vectors (pattern_id, embedding) VALUES ($1, $2)`,
			pat.ID, pgvector.NewVector(vec),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert embedding: %w", err)
		}
	}

	stored, err := pgScanPattern(tx.QueryRow(ctx, `SELECT `+pgPatternColumns+` FROM patterns p WHERE p.id = $1`, pat.ID))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return stored, nil
}

func (p *Postgres) RecordPatternUsage(ctx context.Context, id string, success bool) (_ *types.ArchitecturalPattern, err error) {
	defer func() { err = types.Fault("record pattern usage", err) }()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	pat, err := pgScanPattern(tx.QueryRow(ctx,
		`SELECT `+pgPatternColumns+` FROM patterns p WHERE p.id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	pat.RecordUse(success, time.Now())
	_, err = tx.Exec(ctx,
		`UPDATE patterns SET usage_frequency = $1, success_rate = $2, last_used = $3 WHERE id = $4`,
		pat.UsageFrequency, pat.SuccessRate, *pat.LastUsed, pat.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update pattern usage: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return pat, nil
}

func (p *Postgres) ListPatterns(ctx context.Context, lookbackDays int) (_ []types.ArchitecturalPattern, err error) {
	defer func() { err = types.Fault("list patterns", err) }()

	patterns := []types.ArchitecturalPattern{}
	if lookbackDays <= 0 {
		return patterns, nil
	}

	rows, err := p.pool.Query(ctx,
		`SELECT `+pgPatternColumns+` FROM patterns p
		 WHERE COALESCE(p.last_used, p.created_at) >= $1
		 ORDER BY p.pattern_name ASC, p.id ASC`,
		windowStart(time.Now().UTC(), lookbackDays),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		pat, err := pgScanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, *pat)
	}
	return patterns, rows.Err()
}

func (p *Postgres) GetSimilarPatterns(ctx context.Context, q types.SimilarityQuery) (_ []types.PatternMatch, err error) {
	defer func() { err = types.Fault("get similar patterns", err) }()

	matches := []types.PatternMatch{}
	if q.LookbackDays <= 0 {
		return matches, nil
	}
	minSim := q.MinSimilarity
	if minSim != minSim {
		minSim = 0
	}
	cutoff := windowStart(time.Now().UTC(), q.LookbackDays)

	var rows pgx.Rows
	qvec, err := p.vectors.EmbedForSearch(q.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if embedder.IsZero(qvec) {
		rows, err = p.pool.Query(ctx,
			`SELECT `+pgPatternColumns+`, 0::float8 FROM patterns p
			 WHERE COALESCE(p.last_used, p.created_at) >= $1`,
			cutoff,
		)
	} else {
		rows, err = p.pool.Query(ctx,
			`SELECT `+pgPatternColumns+`,
			        CASE WHEN v.embedding IS NULL THEN 0::float8
			             ELSE 1 - (v.embedding <=> $1) END AS similarity
			 FROM patterns p
			 LEFT JOIN pattern_vectors v ON v.pattern_id = p.id
			 WHERE COALESCE(p.last_used, p.created_at) >= $2`,
			pgvector.NewVector(qvec), cutoff,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m types.PatternMatch
		pat, err := pgScanPattern(rows, &m.Similarity)
		if err != nil {
			return nil, err
		}
		m.ArchitecturalPattern = *pat
		m.Similarity = types.Clamp01(m.Similarity)
		if m.Similarity >= minSim {
			matches = append(matches, m)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortMatches(matches)
	return matches, nil
}

func pgScanPattern(row pgx.Row, extra ...any) (*types.ArchitecturalPattern, error) {
	var pat types.ArchitecturalPattern
	var patternType string
	var def, meta []byte

	dest := []any{&pat.ID, &pat.PatternName, &patternType, &def, &pat.ContextSimilarity,
		&pat.UsageFrequency, &pat.SuccessRate, &pat.LastUsed, &pat.Examples, &meta, &pat.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	pat.PatternType = types.PatternType(patternType)
	pat.CreatedAt = pat.CreatedAt.UTC()
	if pat.LastUsed != nil {
		t := pat.LastUsed.UTC()
		pat.LastUsed = &t
	}
	if err := json.Unmarshal(def, &pat.Definition); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pattern definition: %w", err)
	}
	var err error
	if pat.Metadata, err = unmarshalMap(string(meta)); err != nil {
		return nil, err
	}
	return &pat, nil
}

// --- decisions ---

func (p *Postgres) RecordDecision(ctx context.Context, d types.Decision) (_ *types.Decision, err error) {
	defer func() { err = types.Fault("record decision", err) }()

	if err := d.Validate(); err != nil {
		return nil, err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	d.CreatedAt = d.CreatedAt.UTC()

	_, err = p.pool.Exec(ctx,
		`INSERT INTO decisions (id, spec_id, decision_point, selected_option, context, author, confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.SpecID, d.DecisionPoint, d.SelectedOption, d.Context, d.Author, d.Confidence, d.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert decision: %w", err)
	}
	return &d, nil
}

func (p *Postgres) AnalyzeDecisionPatterns(ctx context.Context, lookbackDays int) (_ []types.DecisionStat, err error) {
	defer func() { err = types.Fault("analyze decision patterns", err) }()

	if lookbackDays <= 0 {
		return []types.DecisionStat{}, nil
	}
	now := time.Now().UTC()

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT id, spec_id, decision_point, selected_option, context, author, confidence, created_at
		 FROM decisions
		 WHERE created_at >= $1 AND created_at <= $2`,
		windowStart(now, lookbackDays), now,
	)
	if err != nil {
		return nil, err
	}
	decisions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Decision, error) {
		var d types.Decision
		err := row.Scan(&d.ID, &d.SpecID, &d.DecisionPoint, &d.SelectedOption, &d.Context, &d.Author, &d.Confidence, &d.CreatedAt)
		d.CreatedAt = d.CreatedAt.UTC()
		return d, err
	})
	if err != nil {
		return nil, err
	}

	rows, err = tx.Query(ctx, `SELECT DISTINCT identifier, spec_type FROM specifications`)
	if err != nil {
		return nil, err
	}
	refs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (aggregate.SpecRef, error) {
		var ref aggregate.SpecRef
		var specType string
		err := row.Scan(&ref.Identifier, &specType)
		ref.SpecType = types.SpecType(specType)
		return ref, err
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return aggregate.Decisions(decisions, aggregate.Resolver(refs), now), nil
}

// --- recommendations ---

const pgRecommendationColumns = `id, pattern_name, decision_point, confidence, provenance, rationale, metadata, created_at, expires_at`

func (p *Postgres) StorePatternRecommendation(ctx context.Context, rec types.PatternRecommendation) (_ *types.PatternRecommendation, err error) {
	defer func() { err = types.Fault("store pattern recommendation", err) }()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	rec.Metadata = emptyIfNil(rec.Metadata)

	_, err = p.pool.Exec(ctx,
		`INSERT INTO pattern_recommendations (`+pgRecommendationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
			pattern_name = EXCLUDED.pattern_name,
			decision_point = EXCLUDED.decision_point,
			confidence = EXCLUDED.confidence,
			provenance = EXCLUDED.provenance,
			rationale = EXCLUDED.rationale,
			metadata = EXCLUDED.metadata,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`,
		rec.ID, rec.PatternName, rec.DecisionPoint, rec.Confidence, rec.Provenance, rec.Rationale,
		rec.Metadata, rec.CreatedAt, rec.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert recommendation: %w", err)
	}
	return &rec, nil
}

func (p *Postgres) GetPatternRecommendations(ctx context.Context, opts types.RecommendationListOpts) (_ []types.PatternRecommendation, err error) {
	defer func() { err = types.Fault("get pattern recommendations", err) }()

	query := `SELECT ` + pgRecommendationColumns + ` FROM pattern_recommendations WHERE 1=1`
	args := []interface{}{}
	argNum := 1

	if !opts.IncludeExpired {
		query += fmt.Sprintf(" AND expires_at > $%d", argNum)
		args = append(args, time.Now().UTC())
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY confidence DESC, created_at DESC, id ASC LIMIT $%d", argNum)
	args = append(args, listLimit(opts.Limit))

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := []types.PatternRecommendation{}
	for rows.Next() {
		rec, err := pgScanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

func (p *Postgres) RecordRecommendationFeedback(ctx context.Context, id string, action types.FeedbackAction, reason string) (_ *types.PatternRecommendation, err error) {
	defer func() { err = types.Fault("record recommendation feedback", err) }()

	if err := action.Validate(); err != nil {
		return nil, err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rec, err := pgScanRecommendation(tx.QueryRow(ctx,
		`SELECT `+pgRecommendationColumns+` FROM pattern_recommendations WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	previous := rec.Confidence
	updated := rec.WithConfidence(types.AdjustConfidence(previous, action))
	updated.Metadata = feedbackMetadata(updated.Metadata, action, reason, now)

	var reasonArg *string
	if reason != "" {
		reasonArg = &reason
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO recommendation_feedback (recommendation_id, action, reason, previous_confidence, confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, action, reasonArg, previous, updated.Confidence, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert feedback: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE pattern_recommendations SET confidence = $1, metadata = $2 WHERE id = $3`,
		updated.Confidence, updated.Metadata, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update recommendation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (p *Postgres) PurgeExpiredRecommendations(ctx context.Context, retentionDays int) (_ int, err error) {
	defer func() { err = types.Fault("purge expired recommendations", err) }()

	tag, err := p.pool.Exec(ctx,
		`DELETE FROM pattern_recommendations WHERE expires_at < $1`,
		purgeCutoff(time.Now().UTC(), retentionDays),
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func pgScanRecommendation(row pgx.Row) (*types.PatternRecommendation, error) {
	var rec types.PatternRecommendation
	var meta []byte

	err := row.Scan(&rec.ID, &rec.PatternName, &rec.DecisionPoint, &rec.Confidence, &rec.Provenance,
		&rec.Rationale, &meta, &rec.CreatedAt, &rec.ExpiresAt)
	if err != nil {
		return nil, err
	}

	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	if rec.Metadata, err = unmarshalMap(string(meta)); err != nil {
		return nil, err
	}
	return &rec, nil
}
