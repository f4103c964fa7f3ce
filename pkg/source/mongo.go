package source

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"geoetl/pkg/config"
	"geoetl/pkg/errors"
	"geoetl/pkg/logger"
	"geoetl/pkg/models"
	"geoetl/pkg/retry"
)

// Mongo is the production Source backed by the camic-style MongoDB schema:
// an analysis collection of unit descriptors and a mark collection of
// segmentation records pointing back at their unit via provenance fields.
type Mongo struct {
	client   *mongo.Client
	analyses *mongo.Collection
	marks    *mongo.Collection
	cfg      config.SourceConfig
	log      logger.Logger
}

// Connect dials the source database and verifies it is reachable. An
// unreachable store yields a SourceUnavailable error; the pipeline treats
// that as fatal rather than limping along half-connected.
func Connect(ctx context.Context, cfg config.SourceConfig, log logger.Logger) (*Mongo, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.SourceUnavailable("failed to create mongo client", err)
	}

	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			return errors.SourceUnavailable("source did not answer ping", err)
		}
		return nil
	}
	retryCfg := retry.DefaultConfig()
	retryCfg.Context = ctx
	retryCfg.Logger = log
	if err := retry.Do(ping, retryCfg); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.SourceUnavailable(fmt.Sprintf("cannot reach source at %s", cfg.URI), err)
	}

	db := client.Database(cfg.Database)
	log.InfoWithFields("connected to source", map[string]interface{}{
		"database":            cfg.Database,
		"analysis_collection": cfg.AnalysisCollection,
		"mark_collection":     cfg.MarkCollection,
	})

	return &Mongo{
		client:   client,
		analyses: db.Collection(cfg.AnalysisCollection),
		marks:    db.Collection(cfg.MarkCollection),
		cfg:      cfg,
		log:      log,
	}, nil
}

// Close releases the underlying client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// analysisDoc is the raw shape of an analysis document. Only the fields the
// pipeline needs are decoded.
type analysisDoc struct {
	ID       primitive.ObjectID `bson:"_id"`
	Analysis struct {
		ExecutionID     string `bson:"execution_id"`
		AlgorithmParams bson.M `bson:"algorithm_params"`
	} `bson:"analysis"`
	Image struct {
		ImageID string `bson:"imageid"`
	} `bson:"image"`
	CreateDate time.Time `bson:"create_date"`
}

func (d analysisDoc) key() models.UnitKey {
	return models.UnitKey{ExecutionID: d.Analysis.ExecutionID, ImageID: d.Image.ImageID}
}

// defaultFrameSize is assumed when algorithm_params carries no dimensions.
const defaultFrameSize = 40000

func (d analysisDoc) toAnalysis() models.Analysis {
	a := models.Analysis{
		Key:         d.key(),
		CaseID:      paramString(d.Analysis.AlgorithmParams, "case_id", d.Image.ImageID),
		ImageWidth:  paramInt(d.Analysis.AlgorithmParams, "image_width", defaultFrameSize),
		ImageHeight: paramInt(d.Analysis.AlgorithmParams, "image_height", defaultFrameSize),
		CreatedAt:   d.CreateDate,
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = d.ID.Timestamp()
	}
	return a
}

// paramInt reads an algorithm parameter that may be stored as any numeric
// BSON type or as a decimal string.
func paramInt(params bson.M, name string, fallback int) int {
	switch v := params[name].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}

func paramString(params bson.M, name, fallback string) string {
	if v, ok := params[name].(string); ok && v != "" {
		return v
	}
	return fallback
}

// EnumerateUnits walks unit keys in lexicographic order. With an explicit
// key list the source is not consulted at all; the caller already knows
// exactly which units it wants.
func (m *Mongo) EnumerateUnits(ctx context.Context, filter Filter, fn func(models.UnitKey) error) error {
	if filter.Keys != nil {
		keys := make([]models.UnitKey, len(filter.Keys))
		copy(keys, filter.Keys)
		sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
		for _, key := range keys {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(key); err != nil {
				return err
			}
		}
		return nil
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "analysis.execution_id", Value: 1}, {Key: "image.imageid", Value: 1}}).
		SetProjection(bson.D{{Key: "analysis.execution_id", Value: 1}, {Key: "image.imageid", Value: 1}}).
		SetBatchSize(m.cfg.CursorBatchSize)

	cursor, err := m.analyses.Find(ctx, bson.D{}, findOpts)
	if err != nil {
		return errors.SourceUnavailable("failed to enumerate analyses", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc analysisDoc
		if err := cursor.Decode(&doc); err != nil {
			return fmt.Errorf("failed to decode analysis document: %w", err)
		}
		key := doc.key()
		if key.ExecutionID == "" || key.ImageID == "" {
			m.log.WarnWithFields("skipping analysis with incomplete key", map[string]interface{}{
				"id": doc.ID.Hex(),
			})
			continue
		}
		if !filter.After.IsZero() && !filter.After.Less(key) {
			continue
		}
		if err := fn(key); err != nil {
			return err
		}
	}
	if err := cursor.Err(); err != nil {
		return errors.SourceUnavailable("analysis enumeration interrupted", err)
	}
	return nil
}

// GetAnalysis fetches the unit context document.
func (m *Mongo) GetAnalysis(ctx context.Context, key models.UnitKey) (models.Analysis, error) {
	var doc analysisDoc
	err := m.analyses.FindOne(ctx, unitFilterAnalysis(key)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return models.Analysis{}, fmt.Errorf("analysis %s not found", key)
	}
	if err != nil {
		return models.Analysis{}, errors.SourceUnavailable(fmt.Sprintf("failed to fetch analysis %s", key), err)
	}
	return doc.toAnalysis(), nil
}

// CountMarks returns the authoritative mark count for a unit. Transient
// failures are retried before being surfaced.
func (m *Mongo) CountMarks(ctx context.Context, key models.UnitKey) (int64, error) {
	var count int64
	op := func() error {
		n, err := m.marks.CountDocuments(ctx, unitFilterMarks(key))
		if err != nil {
			return errors.SourceUnavailable(fmt.Sprintf("failed to count marks for %s", key), err)
		}
		count = n
		return nil
	}
	retryCfg := retry.DefaultConfig()
	retryCfg.Context = ctx
	retryCfg.Logger = m.log
	if err := retry.Do(op, retryCfg); err != nil {
		return 0, err
	}
	return count, nil
}

// markDoc is the raw shape of a mark document.
type markDoc struct {
	ID         primitive.ObjectID `bson:"_id"`
	Footprint  float64            `bson:"footprint"`
	Geometries struct {
		Features []struct {
			Geometry struct {
				Type        string        `bson:"type"`
				Coordinates [][][]float64 `bson:"coordinates"`
			} `bson:"geometry"`
		} `bson:"features"`
	} `bson:"geometries"`
	Properties struct {
		Classification string  `bson:"classification"`
		Probability    float64 `bson:"probability"`
	} `bson:"properties"`
}

func (d markDoc) toMark() models.Mark {
	mark := models.Mark{
		ID:             d.ID.Hex(),
		Area:           d.Footprint,
		Classification: d.Properties.Classification,
		Probability:    d.Properties.Probability,
	}
	if mark.Probability == 0 {
		mark.Probability = 1.0
	}
	if len(d.Geometries.Features) > 0 {
		geom := d.Geometries.Features[0].Geometry
		if geom.Type == "Polygon" && len(geom.Coordinates) > 0 {
			ring := geom.Coordinates[0]
			mark.Polygon = make([]models.Point, 0, len(ring))
			for _, vertex := range ring {
				if len(vertex) < 2 {
					// leave a short vertex list for the transform to reject
					mark.Polygon = nil
					break
				}
				mark.Polygon = append(mark.Polygon, models.Point{X: vertex[0], Y: vertex[1]})
			}
		}
	}
	return mark
}

// StreamMarks iterates the unit's marks sorted by _id with a small cursor
// batch size, keeping memory flat regardless of unit size.
func (m *Mongo) StreamMarks(ctx context.Context, key models.UnitKey, fn func(models.Mark) error) error {
	findOpts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetBatchSize(m.cfg.CursorBatchSize).
		SetNoCursorTimeout(true)

	cursor, err := m.marks.Find(ctx, unitFilterMarks(key), findOpts)
	if err != nil {
		return errors.SourceUnavailable(fmt.Sprintf("failed to open mark cursor for %s", key), err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc markDoc
		if err := cursor.Decode(&doc); err != nil {
			return fmt.Errorf("failed to decode mark document: %w", err)
		}
		if err := fn(doc.toMark()); err != nil {
			return err
		}
	}
	if err := cursor.Err(); err != nil {
		return errors.SourceUnavailable(fmt.Sprintf("mark stream for %s interrupted", key), err)
	}
	return nil
}

func unitFilterAnalysis(key models.UnitKey) bson.D {
	return bson.D{
		{Key: "analysis.execution_id", Value: key.ExecutionID},
		{Key: "image.imageid", Value: key.ImageID},
	}
}

func unitFilterMarks(key models.UnitKey) bson.D {
	return bson.D{
		{Key: "provenance.analysis.execution_id", Value: key.ExecutionID},
		{Key: "provenance.image.imageid", Value: key.ImageID},
	}
}
