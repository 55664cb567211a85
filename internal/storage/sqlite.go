//go:build cgo

// internal/storage/sqlite.go
// internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/MereWhiplash/decision-cogitator/internal/aggregate"
	"github.com/MereWhiplash/decision-cogitator/internal/embedder"
	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

// SQLite implements Repository using SQLite with sqlite-vec
type SQLite struct {
	conn      *sql.DB
	vectors   embedder.Embedder
	closeOnce sync.Once
	closeErr  error
}

// NewSQLite opens (creating if needed) the database at path and applies
// pending migrations. Existing rows survive upgrades.
func NewSQLite(ctx context.Context, path string, opts ...Option) (*SQLite, error) {
	sqlite_vec.Auto()

	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serializes writers; WAL keeps readers cheap.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLite{conn: conn, vectors: applyOptions(opts).embedder}, nil
}

func migrate(ctx context.Context, conn *sql.DB) error {
	fsys, err := fs.Sub(sqliteMigrations, "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("migrations sub-fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, conn, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

type rowScanner interface {
	Scan(dest ...any) error
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// --- specifications ---

const specColumns = `id, spec_type, identifier, title, content, author, version, hash, metadata, created_at`

func (s *SQLite) StoreSpecification(ctx context.Context, rec types.SpecificationRecord) (_ *types.SpecificationRecord, err error) {
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

	meta, err := marshalJSON(rec.Metadata)
	if err != nil {
		return nil, err
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM specifications WHERE spec_type = ? AND identifier = ?`,
		rec.SpecType, rec.Identifier,
	).Scan(&current)
	if err != nil {
		return nil, fmt.Errorf("failed to read current version: %w", err)
	}
	rec.Version = max(rec.Version, current+1)

	var taken int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM specifications WHERE id = ?`, rec.ID).Scan(&taken); err != nil {
		return nil, err
	}
	if taken > 0 {
		rec.ID = uuid.NewString()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO specifications (`+specColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SpecType, rec.Identifier, rec.Title, rec.Content, rec.Author,
		rec.Version, rec.Hash, meta, toNanos(rec.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert specification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLite) GetLatestSpecification(ctx context.Context, specType types.SpecType, identifier string) (_ *types.SpecificationRecord, err error) {
	defer func() { err = types.Fault("get latest specification", err) }()

	if !specType.Valid() {
		return nil, nil
	}
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+specColumns+` FROM specifications
		 WHERE spec_type = ? AND identifier = ?
		 ORDER BY version DESC LIMIT 1`,
		specType, identifier,
	)
	return scanSpecOrNil(row)
}

func (s *SQLite) GetSpecificationAt(ctx context.Context, specType types.SpecType, identifier string, at time.Time) (_ *types.SpecificationRecord, err error) {
	defer func() { err = types.Fault("get specification at", err) }()

	if !specType.Valid() {
		return nil, nil
	}
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+specColumns+` FROM specifications
		 WHERE spec_type = ? AND identifier = ? AND created_at <= ?
		 ORDER BY version DESC LIMIT 1`,
		specType, identifier, toNanos(at),
	)
	return scanSpecOrNil(row)
}

func (s *SQLite) GetSpecificationHistory(ctx context.Context, specType types.SpecType, identifier string) (_ []types.SpecificationRecord, err error) {
	defer func() { err = types.Fault("get specification history", err) }()

	if !specType.Valid() {
		return []types.SpecificationRecord{}, nil
	}
	return s.querySpecs(ctx,
		`SELECT `+specColumns+` FROM specifications
		 WHERE spec_type = ? AND identifier = ?
		 ORDER BY version ASC`,
		specType, identifier,
	)
}

func (s *SQLite) GetRecentSpecifications(ctx context.Context, opts types.SpecListOpts) (_ []types.SpecificationRecord, err error) {
	defer func() { err = types.Fault("get recent specifications", err) }()

	query := `SELECT ` + specColumns + ` FROM specifications WHERE 1=1`
	args := []interface{}{}

	if opts.SpecType != "" {
		query += " AND spec_type = ?"
		args = append(args, opts.SpecType)
	}

	query += " ORDER BY created_at DESC, version DESC LIMIT ?"
	args = append(args, listLimit(opts.Limit))

	return s.querySpecs(ctx, query, args...)
}

func (s *SQLite) querySpecs(ctx context.Context, query string, args ...interface{}) ([]types.SpecificationRecord, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	specs := []types.SpecificationRecord{}
	for rows.Next() {
		rec, err := scanSpec(rows)
		if err != nil {
			return nil, err
		}
		specs = append(specs, *rec)
	}
	return specs, rows.Err()
}

func scanSpecOrNil(row rowScanner) (*types.SpecificationRecord, error) {
	rec, err := scanSpec(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func scanSpec(row rowScanner) (*types.SpecificationRecord, error) {
	var rec types.SpecificationRecord
	var specType, meta string
	var createdAt int64

	err := row.Scan(&rec.ID, &specType, &rec.Identifier, &rec.Title, &rec.Content, &rec.Author,
		&rec.Version, &rec.Hash, &meta, &createdAt)
	if err != nil {
		return nil, err
	}

	rec.SpecType = types.SpecType(specType)
	rec.CreatedAt = fromNanos(createdAt)
	if rec.Metadata, err = unmarshalMap(meta); err != nil {
		return nil, err
	}
	return &rec, nil
}

// --- patterns ---

const patternColumns = `id, pattern_name, pattern_type, definition, context_similarity,
	usage_frequency, success_rate, last_used, examples, metadata, created_at`

func (s *SQLite) StoreArchitecturalPattern(ctx context.Context, p types.ArchitecturalPattern) (_ *types.ArchitecturalPattern, err error) {
	defer func() { err = types.Fault("store architectural pattern", err) }()

	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	def, err := marshalJSON(p.Definition)
	if err != nil {
		return nil, err
	}
	examples, err := marshalJSON(nonNilStrings(p.Examples))
	if err != nil {
		return nil, err
	}
	meta, err := marshalJSON(emptyIfNil(p.Metadata))
	if err != nil {
		return nil, err
	}
	var lastUsed *int64
	if p.LastUsed != nil {
		n := toNanos(*p.LastUsed)
		lastUsed = &n
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO patterns (`+patternColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			pattern_name = excluded.pattern_name,
			pattern_type = excluded.pattern_type,
			definition = excluded.definition,
			context_similarity = excluded.context_similarity,
			usage_frequency = excluded.usage_frequency,
			success_rate = excluded.success_rate,
			last_used = excluded.last_used,
			examples = excluded.examples,
			metadata = excluded.metadata`,
		p.ID, p.PatternName, p.PatternType, def, p.ContextSimilarity,
		p.UsageFrequency, p.SuccessRate, lastUsed, examples, meta, toNanos(p.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert pattern: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT seq FROM patterns WHERE id = ?`, p.ID).Scan(&seq); err != nil {
		return nil, err
	}
	if err := s.writeVector(ctx, tx, seq, p.SearchText()); err != nil {
		return nil, err
	}

	stored, err := scanPattern(tx.QueryRowContext(ctx, `SELECT `+patternColumns+` FROM patterns WHERE id = ?`, p.ID))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return stored, nil
}

// writeVector replaces the pattern's row in pattern_vectors. Texts without
// indexable words get no vector and always score zero.
func (s *SQLite) writeVector(ctx context.Context, tx *sql.Tx, seq int64, text string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM pattern_vectors WHERE pattern_seq = ?`, seq); err != nil {
		return fmt.Errorf("failed to clear pattern vector: %w", err)
	}

	vec, err := s.vectors.EmbedForStorage(text)
	if err != nil {
		return fmt.Errorf("failed to embed pattern: %w", err)
	}
	if embedder.IsZero(vec) {
		return nil
	}
	vecJSON, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO pattern_vectors (pattern_seq, embedding) VALUES (?, ?)`,
		seq, string(vecJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert embedding: %w", err)
	}
	return nil
}

func (s *SQLite) RecordPatternUsage(ctx context.Context, id string, success bool) (_ *types.ArchitecturalPattern, err error) {
	defer func() { err = types.Fault("record pattern usage", err) }()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	p, err := scanPattern(tx.QueryRowContext(ctx, `SELECT `+patternColumns+` FROM patterns WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.RecordUse(success, time.Now())
	_, err = tx.ExecContext(ctx,
		`UPDATE patterns SET usage_frequency = ?, success_rate = ?, last_used = ? WHERE id = ?`,
		p.UsageFrequency, p.SuccessRate, toNanos(*p.LastUsed), p.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update pattern usage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLite) ListPatterns(ctx context.Context, lookbackDays int) (_ []types.ArchitecturalPattern, err error) {
	defer func() { err = types.Fault("list patterns", err) }()

	patterns := []types.ArchitecturalPattern{}
	if lookbackDays <= 0 {
		return patterns, nil
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+patternColumns+` FROM patterns
		 WHERE COALESCE(last_used, created_at) >= ?
		 ORDER BY pattern_name ASC, id ASC`,
		toNanos(windowStart(time.Now(), lookbackDays)),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, *p)
	}
	return patterns, rows.Err()
}

func (s *SQLite) GetSimilarPatterns(ctx context.Context, q types.SimilarityQuery) (_ []types.PatternMatch, err error) {
	defer func() { err = types.Fault("get similar patterns", err) }()

	matches := []types.PatternMatch{}
	if q.LookbackDays <= 0 {
		return matches, nil
	}
	minSim := q.MinSimilarity
	if minSim != minSim {
		minSim = 0
	}
	cutoff := toNanos(windowStart(time.Now(), q.LookbackDays))

	var rows *sql.Rows
	qvec, err := s.vectors.EmbedForSearch(q.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if embedder.IsZero(qvec) {
		rows, err = s.conn.QueryContext(ctx,
			`SELECT `+patternColumns+`, 0.0 FROM patterns
			 WHERE COALESCE(last_used, created_at) >= ?`,
			cutoff,
		)
	} else {
		vecJSON, jerr := json.Marshal(qvec)
		if jerr != nil {
			return nil, fmt.Errorf("failed to marshal embedding: %w", jerr)
		}
		rows, err = s.conn.QueryContext(ctx,
			`SELECT p.id, p.pattern_name, p.pattern_type, p.definition, p.context_similarity,
			        p.usage_frequency, p.success_rate, p.last_used, p.examples, p.metadata, p.created_at,
			        CASE WHEN v.embedding IS NULL THEN 0.0
			             ELSE 1.0 - vec_distance_cosine(v.embedding, ?) END AS similarity
			 FROM patterns p
			 LEFT JOIN pattern_vectors v ON v.pattern_seq = p.seq
			 WHERE COALESCE(p.last_used, p.created_at) >= ?`,
			string(vecJSON), cutoff,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m types.PatternMatch
		p, err := scanPattern(rows, &m.Similarity)
		if err != nil {
			return nil, err
		}
		m.ArchitecturalPattern = *p
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

func scanPattern(row rowScanner, extra ...any) (*types.ArchitecturalPattern, error) {
	var p types.ArchitecturalPattern
	var patternType, def, examples, meta string
	var lastUsed sql.NullInt64
	var createdAt int64

	dest := []any{&p.ID, &p.PatternName, &patternType, &def, &p.ContextSimilarity,
		&p.UsageFrequency, &p.SuccessRate, &lastUsed, &examples, &meta, &createdAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	p.PatternType = types.PatternType(patternType)
	p.CreatedAt = fromNanos(createdAt)
	if lastUsed.Valid {
		t := fromNanos(lastUsed.Int64)
		p.LastUsed = &t
	}
	if err := json.Unmarshal([]byte(def), &p.Definition); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pattern definition: %w", err)
	}
	if err := json.Unmarshal([]byte(examples), &p.Examples); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pattern examples: %w", err)
	}
	var err error
	if p.Metadata, err = unmarshalMap(meta); err != nil {
		return nil, err
	}
	return &p, nil
}

// --- decisions ---

func (s *SQLite) RecordDecision(ctx context.Context, d types.Decision) (_ *types.Decision, err error) {
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

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO decisions (id, spec_id, decision_point, selected_option, context, author, confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.SpecID, d.DecisionPoint, d.SelectedOption, d.Context, d.Author, d.Confidence, toNanos(d.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert decision: %w", err)
	}
	return &d, nil
}

func (s *SQLite) AnalyzeDecisionPatterns(ctx context.Context, lookbackDays int) (_ []types.DecisionStat, err error) {
	defer func() { err = types.Fault("analyze decision patterns", err) }()

	if lookbackDays <= 0 {
		return []types.DecisionStat{}, nil
	}
	now := time.Now().UTC()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, spec_id, decision_point, selected_option, context, author, confidence, created_at
		 FROM decisions
		 WHERE created_at >= ? AND created_at <= ?`,
		toNanos(windowStart(now, lookbackDays)), toNanos(now),
	)
	if err != nil {
		return nil, err
	}
	var decisions []types.Decision
	for rows.Next() {
		var d types.Decision
		var createdAt int64
		if err := rows.Scan(&d.ID, &d.SpecID, &d.DecisionPoint, &d.SelectedOption, &d.Context, &d.Author, &d.Confidence, &createdAt); err != nil {
			rows.Close()
			return nil, err
		}
		d.CreatedAt = fromNanos(createdAt)
		decisions = append(decisions, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs, err := s.specRefs(ctx, tx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return aggregate.Decisions(decisions, aggregate.Resolver(refs), now), nil
}

func (s *SQLite) specRefs(ctx context.Context, tx *sql.Tx) ([]aggregate.SpecRef, error) {
	rows, err := tx.QueryContext(ctx, `SELECT DISTINCT identifier, spec_type FROM specifications`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []aggregate.SpecRef
	for rows.Next() {
		var ref aggregate.SpecRef
		var specType string
		if err := rows.Scan(&ref.Identifier, &specType); err != nil {
			return nil, err
		}
		ref.SpecType = types.SpecType(specType)
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// --- recommendations ---

const recommendationColumns = `id, pattern_name, decision_point, confidence, provenance, rationale, metadata, created_at, expires_at`

func (s *SQLite) StorePatternRecommendation(ctx context.Context, rec types.PatternRecommendation) (_ *types.PatternRecommendation, err error) {
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

	meta, err := marshalJSON(rec.Metadata)
	if err != nil {
		return nil, err
	}

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO pattern_recommendations (`+recommendationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			pattern_name = excluded.pattern_name,
			decision_point = excluded.decision_point,
			confidence = excluded.confidence,
			provenance = excluded.provenance,
			rationale = excluded.rationale,
			metadata = excluded.metadata,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		rec.ID, rec.PatternName, rec.DecisionPoint, rec.Confidence, rec.Provenance, rec.Rationale,
		meta, toNanos(rec.CreatedAt), toNanos(rec.ExpiresAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert recommendation: %w", err)
	}
	return &rec, nil
}

func (s *SQLite) GetPatternRecommendations(ctx context.Context, opts types.RecommendationListOpts) (_ []types.PatternRecommendation, err error) {
	defer func() { err = types.Fault("get pattern recommendations", err) }()

	query := `SELECT ` + recommendationColumns + ` FROM pattern_recommendations WHERE 1=1`
	args := []interface{}{}

	if !opts.IncludeExpired {
		query += " AND expires_at > ?"
		args = append(args, toNanos(time.Now()))
	}

	query += " ORDER BY confidence DESC, created_at DESC, id ASC LIMIT ?"
	args = append(args, listLimit(opts.Limit))

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := []types.PatternRecommendation{}
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

func (s *SQLite) RecordRecommendationFeedback(ctx context.Context, id string, action types.FeedbackAction, reason string) (_ *types.PatternRecommendation, err error) {
	defer func() { err = types.Fault("record recommendation feedback", err) }()

	if err := action.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rec, err := scanRecommendation(tx.QueryRowContext(ctx,
		`SELECT `+recommendationColumns+` FROM pattern_recommendations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	previous := rec.Confidence
	updated := rec.WithConfidence(types.AdjustConfidence(previous, action))
	updated.Metadata = feedbackMetadata(updated.Metadata, action, reason, now)

	meta, err := marshalJSON(updated.Metadata)
	if err != nil {
		return nil, err
	}

	var reasonArg any
	if reason != "" {
		reasonArg = reason
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO recommendation_feedback (recommendation_id, action, reason, previous_confidence, confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, action, reasonArg, previous, updated.Confidence, toNanos(now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert feedback: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE pattern_recommendations SET confidence = ?, metadata = ? WHERE id = ?`,
		updated.Confidence, meta, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update recommendation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *SQLite) PurgeExpiredRecommendations(ctx context.Context, retentionDays int) (_ int, err error) {
	defer func() { err = types.Fault("purge expired recommendations", err) }()

	result, err := s.conn.ExecContext(ctx,
		`DELETE FROM pattern_recommendations WHERE expires_at < ?`,
		toNanos(purgeCutoff(time.Now(), retentionDays)),
	)
	if err != nil {
		return 0, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func scanRecommendation(row rowScanner) (*types.PatternRecommendation, error) {
	var rec types.PatternRecommendation
	var meta string
	var createdAt, expiresAt int64

	err := row.Scan(&rec.ID, &rec.PatternName, &rec.DecisionPoint, &rec.Confidence, &rec.Provenance,
		&rec.Rationale, &meta, &createdAt, &expiresAt)
	if err != nil {
		return nil, err
	}

	rec.CreatedAt = fromNanos(createdAt)
	rec.ExpiresAt = fromNanos(expiresAt)
	if rec.Metadata, err = unmarshalMap(meta); err != nil {
		return nil, err
	}
	return &rec, nil
}
