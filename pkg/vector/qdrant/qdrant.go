// Package qdrant provides a Qdrant vector database driver implementation.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	qd "github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/thinkstream/pkg/logger"
	"github.com/papercomputeco/thinkstream/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection for knowledge chunks.
	DefaultCollectionName = "thinkstream"

	// DefaultPort is Qdrant's gRPC port.
	DefaultPort = 6334

	payloadDocID   = "doc_id"
	payloadContent = "content"
	payloadMeta    = "meta_"
)

// Client is the subset of the Qdrant client the driver uses.
type Client interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qd.CreateCollection) error
	Upsert(ctx context.Context, request *qd.UpsertPoints) (*qd.UpdateResult, error)
	Query(ctx context.Context, request *qd.QueryPoints) ([]*qd.ScoredPoint, error)
	Get(ctx context.Context, request *qd.GetPoints) ([]*qd.RetrievedPoint, error)
	Delete(ctx context.Context, request *qd.DeletePoints) (*qd.UpdateResult, error)
	Close() error
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool

	// CollectionName defaults to DefaultCollectionName.
	CollectionName string
}

// Driver implements vector.Driver using Qdrant over gRPC.
//
// Qdrant point IDs must be UUIDs, so each document ID is mapped to a
// name-based UUID and the original ID is kept in the payload.
type Driver struct {
	client     Client
	collection string
	logger     *slog.Logger

	// ready is set once the collection is known to exist
	ready bool
}

// NewDriver connects to Qdrant. The collection is created on the first Add.
func NewDriver(c Config, log *slog.Logger) (*Driver, error) {
	if c.Host == "" {
		return nil, errors.New("qdrant host is required")
	}
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}

	client, err := qd.NewClient(&qd.Config{
		Host:   c.Host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}

	d := NewDriverWithClient(client, c.CollectionName, log)
	d.logger.Info("connected to Qdrant", "host", c.Host, "port", port, "collection", d.collection)
	return d, nil
}

// NewDriverWithClient wraps an existing client.
func NewDriverWithClient(client Client, collection string, log *slog.Logger) *Driver {
	if collection == "" {
		collection = DefaultCollectionName
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Driver{client: client, collection: collection, logger: log}
}

// PointID maps a document ID to its Qdrant point UUID.
func PointID(docID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(docID)).String()
}

// ensureCollection creates the collection sized for dim if it is missing.
func (d *Driver) ensureCollection(ctx context.Context, dim int) error {
	if d.ready {
		return nil
	}

	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return fmt.Errorf("checking collection %q: %w", d.collection, err)
	}
	if !exists {
		err := d.client.CreateCollection(ctx, &qd.CreateCollection{
			CollectionName: d.collection,
			VectorsConfig: qd.NewVectorsConfig(&qd.VectorParams{
				Size:     uint64(dim),
				Distance: qd.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("creating collection %q: %w", d.collection, err)
		}
		d.logger.Info("created Qdrant collection", "collection", d.collection, "dimension", dim)
	}

	d.ready = true
	return nil
}

func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := d.ensureCollection(ctx, len(docs[0].Embedding)); err != nil {
		return err
	}

	points := make([]*qd.PointStruct, 0, len(docs))
	for _, doc := range docs {
		payload := map[string]any{
			payloadDocID:   doc.ID,
			payloadContent: doc.Content,
		}
		for k, v := range doc.Metadata {
			payload[payloadMeta+k] = v
		}

		points = append(points, &qd.PointStruct{
			Id:      qd.NewIDUUID(PointID(doc.ID)),
			Vectors: qd.NewVectorsDense(doc.Embedding),
			Payload: qd.NewValueMap(payload),
		})
	}

	wait := true
	if _, err := d.client.Upsert(ctx, &qd.UpsertPoints{
		CollectionName: d.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upserting %d points: %w", len(points), err)
	}

	d.logger.Debug("upserted points", "collection", d.collection, "count", len(points))
	return nil
}

func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		return nil, nil
	}

	limit := uint64(topK)
	points, err := d.client.Query(ctx, &qd.QueryPoints{
		CollectionName: d.collection,
		Query:          qd.NewQueryDense(embedding),
		Limit:          &limit,
		WithPayload:    qd.NewWithPayload(true),
		WithVectors:    qd.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying collection %q: %w", d.collection, err)
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, p := range points {
		results = append(results, vector.QueryResult{
			Document: toDocument(p.GetPayload(), p.GetVectors()),
			Score:    p.GetScore(),
		})
	}
	return results, nil
}

func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pointIDs := make([]*qd.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qd.NewIDUUID(PointID(id)))
	}

	points, err := d.client.Get(ctx, &qd.GetPoints{
		CollectionName: d.collection,
		Ids:            pointIDs,
		WithPayload:    qd.NewWithPayload(true),
		WithVectors:    qd.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting points: %w", err)
	}

	docs := make([]vector.Document, 0, len(points))
	for _, p := range points {
		docs = append(docs, toDocument(p.GetPayload(), p.GetVectors()))
	}
	return docs, nil
}

func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qd.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qd.NewIDUUID(PointID(id)))
	}

	wait := true
	if _, err := d.client.Delete(ctx, &qd.DeletePoints{
		CollectionName: d.collection,
		Wait:           &wait,
		Points:         qd.NewPointsSelector(pointIDs...),
	}); err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}
	return nil
}

// Close closes the gRPC connections.
func (d *Driver) Close() error {
	return d.client.Close()
}

func toDocument(payload map[string]*qd.Value, vectors *qd.VectorsOutput) vector.Document {
	doc := vector.Document{
		ID:      payload[payloadDocID].GetStringValue(),
		Content: payload[payloadContent].GetStringValue(),
	}
	for k, v := range payload {
		name, ok := strings.CutPrefix(k, payloadMeta)
		if !ok || name == "" {
			continue
		}
		if doc.Metadata == nil {
			doc.Metadata = make(map[string]string)
		}
		doc.Metadata[name] = v.GetStringValue()
	}

	if out := vectors.GetVector(); out != nil {
		if dense := out.GetDense(); dense != nil {
			doc.Embedding = dense.GetData()
		} else {
			doc.Embedding = out.GetData()
		}
	}
	return doc
}

var _ vector.Driver = (*Driver)(nil)
