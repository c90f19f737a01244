package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/weftware/weft/internal/domain"
	"github.com/weftware/weft/internal/service"
)

const (
	// DefaultCollection is the collection holding fragment embeddings
	DefaultCollection = "fragments"
	// DefaultPort is the Qdrant gRPC port, not the HTTP REST port
	DefaultPort = 6334

	defaultRequestTimeout = 30 * time.Second
	maxMessageSize        = 50 * 1024 * 1024
)

// Config configures the Qdrant index.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	// Dimensions is the embedding width used when the collection has to be
	// created. It must match the configured embedding model.
	Dimensions int
	// RequestTimeout bounds individual calls. Default: 30s.
	RequestTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
}

// Index stores fragment embeddings in a Qdrant collection. It implements
// service.VectorIndex as the alternative to the pgvector-backed index.
type Index struct {
	client     *qdrant.Client
	collection string
	dimensions int
	timeout    time.Duration
}

// NewIndex connects to Qdrant and verifies the server is reachable.
func NewIndex(cfg Config) (*Index, error) {
	cfg.applyDefaults()
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("qdrant index requires embedding dimensions")
	}

	qdrantConfig := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(maxMessageSize),
				grpc.MaxCallSendMsgSize(maxMessageSize),
			),
		},
	}
	if !cfg.UseTLS {
		qdrantConfig.GrpcOptions = append(qdrantConfig.GrpcOptions,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
	}

	client, err := qdrant.NewClient(qdrantConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	idx := &Index{
		client:     client,
		collection: cfg.Collection,
		dimensions: cfg.Dimensions,
		timeout:    cfg.RequestTimeout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant health check failed: %w", err)
	}

	return idx, nil
}

// EnsureCollection creates the collection if it does not exist yet.
func (i *Index) EnsureCollection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	_, err := i.client.GetCollectionInfo(ctx, i.collection)
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); !ok || st.Code() != codes.NotFound {
		return classifyErr("failed to inspect collection", err)
	}

	err = i.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: i.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(i.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return classifyErr("failed to create collection", err)
	}
	return nil
}

// Upsert writes the embedding for a fragment, replacing any previous one.
func (i *Index) Upsert(ctx context.Context, fragmentID string, vector []float32, meta service.VectorMetadata) error {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(fragmentID),
		Vectors: qdrant.NewVectors(vector...),
		Payload: map[string]*qdrant.Value{
			"project":     {Kind: &qdrant.Value_StringValue{StringValue: meta.Project}},
			"source_type": {Kind: &qdrant.Value_StringValue{StringValue: string(meta.SourceType)}},
		},
	}

	_, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: i.collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return classifyErr("failed to upsert embedding", err)
	}
	return nil
}

// Query returns the k nearest fragments, nearest first. Qdrant reports a
// cosine similarity score, so distance is derived as 1 - score.
func (i *Index) Query(ctx context.Context, vector []float32, k int, filter service.VectorFilter) ([]*service.VectorMatch, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	if k <= 0 {
		k = 10
	}

	results, err := i.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		Filter:         buildFilter(filter),
	})
	if err != nil {
		return nil, classifyErr("failed to query embeddings", err)
	}

	matches := make([]*service.VectorMatch, 0, len(results))
	for _, r := range results {
		id := pointIDString(r.Id)
		if id == "" {
			continue
		}
		matches = append(matches, &service.VectorMatch{
			FragmentID: id,
			Distance:   1 - float64(r.Score),
		})
	}
	return matches, nil
}

// Delete removes a fragment's embedding. It returns false when no embedding
// was stored for the fragment.
func (i *Index) Delete(ctx context.Context, fragmentID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	ids := []*qdrant.PointId{qdrant.NewIDUUID(fragmentID)}

	// Qdrant's delete does not report whether the point existed.
	existing, err := i.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: i.collection,
		Ids:            ids,
	})
	if err != nil {
		return false, classifyErr("failed to look up embedding", err)
	}
	if len(existing) == 0 {
		return false, nil
	}

	_, err = i.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: i.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: ids},
			},
		},
	})
	if err != nil {
		return false, classifyErr("failed to delete embedding", err)
	}
	return true, nil
}

// Close closes the underlying gRPC connection.
func (i *Index) Close() error {
	if i.client != nil {
		return i.client.Close()
	}
	return nil
}

func buildFilter(filter service.VectorFilter) *qdrant.Filter {
	var must []*qdrant.Condition
	if filter.Project != "" {
		must = append(must, keywordCondition("project", filter.Project))
	}
	if filter.SourceType != "" {
		must = append(must, keywordCondition("source_type", string(filter.SourceType)))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func keywordCondition(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	return id.GetUuid()
}

// classifyErr maps transport-level gRPC failures to a connection error so
// callers can answer with a service-unavailable status.
func classifyErr(msg string, err error) error {
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded:
			return domain.NewDomainErrorWithCause(domain.ErrCodeConnection, msg, err)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

var _ service.VectorIndex = (*Index)(nil)
