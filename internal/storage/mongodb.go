// internal/storage/mongodb.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MereWhiplash/decision-cogitator/internal/aggregate"
	"github.com/MereWhiplash/decision-cogitator/internal/embedder"
	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

// maxWriteAttempts bounds retries of optimistic writes that lost a race
const maxWriteAttempts = 16

// MongoDB implements Repository using MongoDB. Similarity is computed in
// process from stored lexical vectors.
type MongoDB struct {
	client          *mongo.Client
	db              *mongo.Database
	specs           *mongo.Collection
	patterns        *mongo.Collection
	decisions       *mongo.Collection
	recommendations *mongo.Collection
	feedback        *mongo.Collection
	vectors         embedder.Embedder
	closeOnce       sync.Once
	closeErr        error
}

type specDoc struct {
	ID         string         `bson:"_id"`
	SpecType   string         `bson:"spec_type"`
	Identifier string         `bson:"identifier"`
	Title      string         `bson:"title"`
	Content    string         `bson:"content"`
	Author     string         `bson:"author"`
	Version    int            `bson:"version"`
	Hash       string         `bson:"hash"`
	Metadata   map[string]any `bson:"metadata"`
	CreatedAt  time.Time      `bson:"created_at"`
}

type patternDoc struct {
	ID                string                  `bson:"_id"`
	PatternName       string                  `bson:"pattern_name"`
	PatternType       string                  `bson:"pattern_type"`
	Definition        types.PatternDefinition `bson:"definition"`
	ContextSimilarity float64                 `bson:"context_similarity"`
	UsageFrequency    int                     `bson:"usage_frequency"`
	SuccessRate       float64                 `bson:"success_rate"`
	LastUsed          *time.Time              `bson:"last_used,omitempty"`
	ActiveAt          time.Time               `bson:"active_at"`
	Examples          []string                `bson:"examples"`
	Metadata          map[string]any          `bson:"metadata"`
	CreatedAt         time.Time               `bson:"created_at"`
	Embedding         []float32               `bson:"embedding,omitempty"`
}

type decisionDoc struct {
	ID             string    `bson:"_id"`
	SpecID         string    `bson:"spec_id"`
	DecisionPoint  string    `bson:"decision_point"`
	SelectedOption string    `bson:"selected_option"`
	Context        string    `bson:"context"`
	Author         string    `bson:"author"`
	Confidence     float64   `bson:"confidence"`
	CreatedAt      time.Time `bson:"created_at"`
}

type recommendationDoc struct {
	ID            string         `bson:"_id"`
	PatternName   string         `bson:"pattern_name"`
	DecisionPoint string         `bson:"decision_point"`
	Confidence    float64        `bson:"confidence"`
	Provenance    string         `bson:"provenance"`
	Rationale     string         `bson:"rationale"`
	Metadata      map[string]any `bson:"metadata"`
	CreatedAt     time.Time      `bson:"created_at"`
	ExpiresAt     time.Time      `bson:"expires_at"`
}

type feedbackDoc struct {
	RecommendationID   string    `bson:"recommendation_id"`
	Action             string    `bson:"action"`
	Reason             *string   `bson:"reason"`
	PreviousConfidence float64   `bson:"previous_confidence"`
	Confidence         float64   `bson:"confidence"`
	CreatedAt          time.Time `bson:"created_at"`
}

// NewMongoDB connects to uri and ensures indexes on database
func NewMongoDB(ctx context.Context, uri, database string, opts ...Option) (*MongoDB, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(database)
	m := &MongoDB{
		client:          client,
		db:              db,
		specs:           db.Collection("specifications"),
		patterns:        db.Collection("patterns"),
		decisions:       db.Collection("decisions"),
		recommendations: db.Collection("pattern_recommendations"),
		feedback:        db.Collection("recommendation_feedback"),
		vectors:         applyOptions(opts).embedder,
	}

	if err := m.initIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return m, nil
}

func (m *MongoDB) initIndexes(ctx context.Context) error {
	_, err := m.specs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "spec_type", Value: 1}, {Key: "identifier", Value: 1}, {Key: "version", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return err
	}

	if _, err := m.patterns.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "active_at", Value: -1}}}); err != nil {
		return err
	}
	if _, err := m.decisions.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "created_at", Value: -1}}}); err != nil {
		return err
	}
	if _, err := m.recommendations.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "expires_at", Value: 1}}}); err != nil {
		return err
	}
	_, err = m.feedback.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "recommendation_id", Value: 1}}})
	return err
}

func (m *MongoDB) Close() error {
	m.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.closeErr = m.client.Disconnect(ctx)
	})
	return m.closeErr
}

// --- specifications ---

func (m *MongoDB) StoreSpecification(ctx context.Context, rec types.SpecificationRecord) (_ *types.SpecificationRecord, err error) {
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
	rec.CreatedAt = rec.CreatedAt.UTC().Truncate(time.Millisecond)
	rec.Hash = types.ContentHash(rec.Content)
	rec.Metadata = emptyIfNil(rec.Metadata)
	requested := rec.Version

	// The unique (spec_type, identifier, version) index turns a lost race into
	// a duplicate key error; re-read the maximum and try again.
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		current, err := m.maxVersion(ctx, rec.SpecType, rec.Identifier)
		if err != nil {
			return nil, err
		}
		rec.Version = max(requested, current+1)

		_, err = m.specs.InsertOne(ctx, specDoc{
			ID:         rec.ID,
			SpecType:   string(rec.SpecType),
			Identifier: rec.Identifier,
			Title:      rec.Title,
			Content:    rec.Content,
			Author:     rec.Author,
			Version:    rec.Version,
			Hash:       rec.Hash,
			Metadata:   rec.Metadata,
			CreatedAt:  rec.CreatedAt,
		})
		if err == nil {
			return &rec, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("failed to insert specification: %w", err)
		}
		// Either the version or a reused _id collided; a fresh id covers both.
		rec.ID = uuid.NewString()
	}
	return nil, fmt.Errorf("failed to insert specification: version contention on %s/%s", rec.SpecType, rec.Identifier)
}

func (m *MongoDB) maxVersion(ctx context.Context, specType types.SpecType, identifier string) (int, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "version", Value: -1}}).
		SetProjection(bson.D{{Key: "version", Value: 1}})

	var doc struct {
		Version int `bson:"version"`
	}
	err := m.specs.FindOne(ctx, bson.D{
		{Key: "spec_type", Value: string(specType)},
		{Key: "identifier", Value: identifier},
	}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return doc.Version, nil
}

func (m *MongoDB) GetLatestSpecification(ctx context.Context, specType types.SpecType, identifier string) (_ *types.SpecificationRecord, err error) {
	defer func() { err = types.Fault("get latest specification", err) }()

	if !specType.Valid() {
		return nil, nil
	}
	return m.findSpec(ctx, bson.D{
		{Key: "spec_type", Value: string(specType)},
		{Key: "identifier", Value: identifier},
	})
}

func (m *MongoDB) GetSpecificationAt(ctx context.Context, specType types.SpecType, identifier string, at time.Time) (_ *types.SpecificationRecord, err error) {
	defer func() { err = types.Fault("get specification at", err) }()

	if !specType.Valid() {
		return nil, nil
	}
	return m.findSpec(ctx, bson.D{
		{Key: "spec_type", Value: string(specType)},
		{Key: "identifier", Value: identifier},
		{Key: "created_at", Value: bson.D{{Key: "$lte", Value: at.UTC()}}},
	})
}

func (m *MongoDB) findSpec(ctx context.Context, filter bson.D) (*types.SpecificationRecord, error) {
	var doc specDoc
	err := m.specs.FindOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec := doc.record()
	return &rec, nil
}

func (m *MongoDB) GetSpecificationHistory(ctx context.Context, specType types.SpecType, identifier string) (_ []types.SpecificationRecord, err error) {
	defer func() { err = types.Fault("get specification history", err) }()

	if !specType.Valid() {
		return []types.SpecificationRecord{}, nil
	}
	return m.findSpecs(ctx, bson.D{
		{Key: "spec_type", Value: string(specType)},
		{Key: "identifier", Value: identifier},
	}, options.Find().SetSort(bson.D{{Key: "version", Value: 1}}))
}

func (m *MongoDB) GetRecentSpecifications(ctx context.Context, opts types.SpecListOpts) (_ []types.SpecificationRecord, err error) {
	defer func() { err = types.Fault("get recent specifications", err) }()

	filter := bson.D{}
	if opts.SpecType != "" {
		filter = append(filter, bson.E{Key: "spec_type", Value: string(opts.SpecType)})
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "version", Value: -1}}).
		SetLimit(int64(listLimit(opts.Limit)))

	return m.findSpecs(ctx, filter, findOpts)
}

func (m *MongoDB) findSpecs(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]types.SpecificationRecord, error) {
	cursor, err := m.specs.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	specs := []types.SpecificationRecord{}
	for cursor.Next(ctx) {
		var doc specDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		specs = append(specs, doc.record())
	}
	return specs, cursor.Err()
}

func (d specDoc) record() types.SpecificationRecord {
	return types.SpecificationRecord{
		ID:         d.ID,
		SpecType:   types.SpecType(d.SpecType),
		Identifier: d.Identifier,
		Title:      d.Title,
		Content:    d.Content,
		Author:     d.Author,
		Version:    d.Version,
		Hash:       d.Hash,
		Metadata:   emptyIfNil(d.Metadata),
		CreatedAt:  d.CreatedAt.UTC(),
	}
}

// --- patterns ---

func (m *MongoDB) StoreArchitecturalPattern(ctx context.Context, p types.ArchitecturalPattern) (_ *types.ArchitecturalPattern, err error) {
	defer func() { err = types.Fault("store architectural pattern", err) }()

	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	var existing patternDoc
	err = m.patterns.FindOne(ctx, bson.D{{Key: "_id", Value: p.ID}}).Decode(&existing)
	switch {
	case err == nil:
		p.CreatedAt = existing.CreatedAt
	case errors.Is(err, mongo.ErrNoDocuments):
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now()
		}
	default:
		return nil, err
	}

	doc, err := m.patternDoc(p)
	if err != nil {
		return nil, err
	}
	_, err = m.patterns.ReplaceOne(ctx, bson.D{{Key: "_id", Value: doc.ID}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert pattern: %w", err)
	}

	stored := doc.pattern()
	return &stored, nil
}

func (m *MongoDB) patternDoc(p types.ArchitecturalPattern) (patternDoc, error) {
	doc := patternDoc{
		ID:                p.ID,
		PatternName:       p.PatternName,
		PatternType:       string(p.PatternType),
		Definition:        p.Definition,
		ContextSimilarity: p.ContextSimilarity,
		UsageFrequency:    p.UsageFrequency,
		SuccessRate:       p.SuccessRate,
		Examples:          nonNilStrings(p.Examples),
		Metadata:          emptyIfNil(p.Metadata),
		CreatedAt:         p.CreatedAt.UTC().Truncate(time.Millisecond),
	}
	if p.LastUsed != nil {
		t := p.LastUsed.UTC().Truncate(time.Millisecond)
		doc.LastUsed = &t
	}
	doc.ActiveAt = doc.CreatedAt
	if doc.LastUsed != nil {
		doc.ActiveAt = *doc.LastUsed
	}
	vec, err := m.vectors.EmbedForStorage(p.SearchText())
	if err != nil {
		return patternDoc{}, fmt.Errorf("failed to embed pattern: %w", err)
	}
	if !embedder.IsZero(vec) {
		doc.Embedding = vec
	}
	return doc, nil
}

func (d patternDoc) pattern() types.ArchitecturalPattern {
	p := types.ArchitecturalPattern{
		ID:                d.ID,
		PatternName:       d.PatternName,
		PatternType:       types.PatternType(d.PatternType),
		Definition:        d.Definition,
		ContextSimilarity: d.ContextSimilarity,
		UsageFrequency:    d.UsageFrequency,
		SuccessRate:       d.SuccessRate,
		Examples:          nonNilStrings(d.Examples),
		Metadata:          emptyIfNil(d.Metadata),
		CreatedAt:         d.CreatedAt.UTC(),
	}
	if d.LastUsed != nil {
		t := d.LastUsed.UTC()
		p.LastUsed = &t
	}
	return p
}

func (m *MongoDB) RecordPatternUsage(ctx context.Context, id string, success bool) (_ *types.ArchitecturalPattern, err error) {
	defer func() { err = types.Fault("record pattern usage", err) }()

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		var doc patternDoc
		err := m.patterns.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		p := doc.pattern()
		p.RecordUse(success, time.Now().Truncate(time.Millisecond))

		// Guard on the previous frequency so concurrent users never lose a count.
		res, err := m.patterns.UpdateOne(ctx,
			bson.D{{Key: "_id", Value: id}, {Key: "usage_frequency", Value: doc.UsageFrequency}},
			bson.D{{Key: "$set", Value: bson.D{
				{Key: "usage_frequency", Value: p.UsageFrequency},
				{Key: "success_rate", Value: p.SuccessRate},
				{Key: "last_used", Value: *p.LastUsed},
				{Key: "active_at", Value: *p.LastUsed},
			}}},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update pattern usage: %w", err)
		}
		if res.MatchedCount == 1 {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("failed to update pattern usage: contention on %s", id)
}

func (m *MongoDB) ListPatterns(ctx context.Context, lookbackDays int) (_ []types.ArchitecturalPattern, err error) {
	defer func() { err = types.Fault("list patterns", err) }()

	patterns := []types.ArchitecturalPattern{}
	if lookbackDays <= 0 {
		return patterns, nil
	}

	docs, err := m.patternsSince(ctx, windowStart(time.Now().UTC(), lookbackDays),
		options.Find().SetSort(bson.D{{Key: "pattern_name", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		patterns = append(patterns, d.pattern())
	}
	return patterns, nil
}

func (m *MongoDB) GetSimilarPatterns(ctx context.Context, q types.SimilarityQuery) (_ []types.PatternMatch, err error) {
	defer func() { err = types.Fault("get similar patterns", err) }()

	matches := []types.PatternMatch{}
	if q.LookbackDays <= 0 {
		return matches, nil
	}
	minSim := q.MinSimilarity
	if minSim != minSim {
		minSim = 0
	}

	docs, err := m.patternsSince(ctx, windowStart(time.Now().UTC(), q.LookbackDays), options.Find())
	if err != nil {
		return nil, err
	}

	qvec, err := m.vectors.EmbedForSearch(q.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	for _, d := range docs {
		sim := types.Clamp01(embedder.Cosine(qvec, d.Embedding))
		if sim >= minSim {
			matches = append(matches, types.PatternMatch{ArchitecturalPattern: d.pattern(), Similarity: sim})
		}
	}

	sortMatches(matches)
	return matches, nil
}

func (m *MongoDB) patternsSince(ctx context.Context, since time.Time, opts *options.FindOptions) ([]patternDoc, error) {
	cursor, err := m.patterns.Find(ctx, bson.D{{Key: "active_at", Value: bson.D{{Key: "$gte", Value: since}}}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []patternDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// --- decisions ---

func (m *MongoDB) RecordDecision(ctx context.Context, d types.Decision) (_ *types.Decision, err error) {
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
	d.CreatedAt = d.CreatedAt.UTC().Truncate(time.Millisecond)

	_, err = m.decisions.InsertOne(ctx, decisionDoc{
		ID:             d.ID,
		SpecID:         d.SpecID,
		DecisionPoint:  d.DecisionPoint,
		SelectedOption: d.SelectedOption,
		Context:        d.Context,
		Author:         d.Author,
		Confidence:     d.Confidence,
		CreatedAt:      d.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert decision: %w", err)
	}
	return &d, nil
}

func (m *MongoDB) AnalyzeDecisionPatterns(ctx context.Context, lookbackDays int) (_ []types.DecisionStat, err error) {
	defer func() { err = types.Fault("analyze decision patterns", err) }()

	if lookbackDays <= 0 {
		return []types.DecisionStat{}, nil
	}
	now := time.Now().UTC()

	cursor, err := m.decisions.Find(ctx, bson.D{{Key: "created_at", Value: bson.D{
		{Key: "$gte", Value: windowStart(now, lookbackDays)},
		{Key: "$lte", Value: now},
	}}})
	if err != nil {
		return nil, err
	}
	var docs []decisionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	decisions := make([]types.Decision, 0, len(docs))
	for _, d := range docs {
		decisions = append(decisions, types.Decision{
			ID:             d.ID,
			SpecID:         d.SpecID,
			DecisionPoint:  d.DecisionPoint,
			SelectedOption: d.SelectedOption,
			Context:        d.Context,
			Author:         d.Author,
			Confidence:     d.Confidence,
			CreatedAt:      d.CreatedAt.UTC(),
		})
	}

	refs, err := m.specRefs(ctx)
	if err != nil {
		return nil, err
	}
	return aggregate.Decisions(decisions, aggregate.Resolver(refs), now), nil
}

func (m *MongoDB) specRefs(ctx context.Context) ([]aggregate.SpecRef, error) {
	cursor, err := m.specs.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: bson.D{
			{Key: "identifier", Value: "$identifier"},
			{Key: "spec_type", Value: "$spec_type"},
		}}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var refs []aggregate.SpecRef
	for cursor.Next(ctx) {
		var row struct {
			ID struct {
				Identifier string `bson:"identifier"`
				SpecType   string `bson:"spec_type"`
			} `bson:"_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		refs = append(refs, aggregate.SpecRef{Identifier: row.ID.Identifier, SpecType: types.SpecType(row.ID.SpecType)})
	}
	return refs, cursor.Err()
}

// --- recommendations ---

func (m *MongoDB) StorePatternRecommendation(ctx context.Context, rec types.PatternRecommendation) (_ *types.PatternRecommendation, err error) {
	defer func() { err = types.Fault("store pattern recommendation", err) }()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC().Truncate(time.Millisecond)
	rec.ExpiresAt = rec.ExpiresAt.UTC().Truncate(time.Millisecond)
	rec.Metadata = emptyIfNil(rec.Metadata)

	doc := recommendationDoc{
		ID:            rec.ID,
		PatternName:   rec.PatternName,
		DecisionPoint: rec.DecisionPoint,
		Confidence:    rec.Confidence,
		Provenance:    rec.Provenance,
		Rationale:     rec.Rationale,
		Metadata:      rec.Metadata,
		CreatedAt:     rec.CreatedAt,
		ExpiresAt:     rec.ExpiresAt,
	}
	_, err = m.recommendations.ReplaceOne(ctx, bson.D{{Key: "_id", Value: rec.ID}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert recommendation: %w", err)
	}
	return &rec, nil
}

func (m *MongoDB) GetPatternRecommendations(ctx context.Context, opts types.RecommendationListOpts) (_ []types.PatternRecommendation, err error) {
	defer func() { err = types.Fault("get pattern recommendations", err) }()

	filter := bson.D{}
	if !opts.IncludeExpired {
		filter = append(filter, bson.E{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: time.Now().UTC()}}})
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "confidence", Value: -1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(listLimit(opts.Limit)))

	cursor, err := m.recommendations.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	recs := []types.PatternRecommendation{}
	for cursor.Next(ctx) {
		var doc recommendationDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		recs = append(recs, doc.recommendation())
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	sortRecommendations(recs)
	return recs, nil
}

func (m *MongoDB) RecordRecommendationFeedback(ctx context.Context, id string, action types.FeedbackAction, reason string) (_ *types.PatternRecommendation, err error) {
	defer func() { err = types.Fault("record recommendation feedback", err) }()

	if err := action.Validate(); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		var doc recommendationDoc
		err := m.recommendations.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		rec := doc.recommendation()
		previous := rec.Confidence
		updated := rec.WithConfidence(types.AdjustConfidence(previous, action))
		updated.Metadata = feedbackMetadata(updated.Metadata, action, reason, now)

		// Only apply if nobody adjusted the confidence since we read it.
		res, err := m.recommendations.UpdateOne(ctx,
			bson.D{{Key: "_id", Value: id}, {Key: "confidence", Value: previous}},
			bson.D{{Key: "$set", Value: bson.D{
				{Key: "confidence", Value: updated.Confidence},
				{Key: "metadata", Value: updated.Metadata},
			}}},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update recommendation: %w", err)
		}
		if res.MatchedCount == 0 {
			continue
		}

		var reasonPtr *string
		if reason != "" {
			reasonPtr = &reason
		}
		_, err = m.feedback.InsertOne(ctx, feedbackDoc{
			RecommendationID:   id,
			Action:             string(action),
			Reason:             reasonPtr,
			PreviousConfidence: previous,
			Confidence:         updated.Confidence,
			CreatedAt:          now,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to insert feedback: %w", err)
		}
		return &updated, nil
	}
	return nil, fmt.Errorf("failed to record feedback: contention on %s", id)
}

func (m *MongoDB) PurgeExpiredRecommendations(ctx context.Context, retentionDays int) (_ int, err error) {
	defer func() { err = types.Fault("purge expired recommendations", err) }()

	res, err := m.recommendations.DeleteMany(ctx, bson.D{{Key: "expires_at", Value: bson.D{
		{Key: "$lt", Value: purgeCutoff(time.Now().UTC(), retentionDays)},
	}}})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

func (d recommendationDoc) recommendation() types.PatternRecommendation {
	return types.PatternRecommendation{
		ID:            d.ID,
		PatternName:   d.PatternName,
		DecisionPoint: d.DecisionPoint,
		Confidence:    d.Confidence,
		Provenance:    d.Provenance,
		Rationale:     d.Rationale,
		Metadata:      emptyIfNil(d.Metadata),
		CreatedAt:     d.CreatedAt.UTC(),
		ExpiresAt:     d.ExpiresAt.UTC(),
	}
}
