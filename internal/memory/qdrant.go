package memory

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// QdrantConfig holds connection settings for a Qdrant instance.
type QdrantConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

const memoryCollection = "agent_memories"

// QdrantIndex stores episodic memories in a single Qdrant collection,
// scoped per agent through an agent_id payload filter.
type QdrantIndex struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
}

// NewQdrantIndex dials the Qdrant gRPC endpoint.
func NewQdrantIndex(cfg QdrantConfig) (*QdrantIndex, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s: %w", addr, err)
	}
	return &QdrantIndex{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
	}, nil
}

// Init creates the memory collection if it does not already exist.
func (q *QdrantIndex) Init(ctx context.Context, dimension uint64) error {
	_, err := q.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: memoryCollection})
	if err == nil {
		return nil
	}
	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: memoryCollection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     dimension,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", memoryCollection, err)
	}
	return nil
}

// Add appends one memory point for the agent.
func (q *QdrantIndex) Add(ctx context.Context, id, agentID, text, recordedAt string, vector []float32) error {
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: memoryCollection,
		Points: []*pb.PointStruct{
			{
				Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}},
				Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vector}}},
				Payload: map[string]*pb.Value{
					"agent_id":    {Kind: &pb.Value_StringValue{StringValue: agentID}},
					"content":     {Kind: &pb.Value_StringValue{StringValue: text}},
					"recorded_at": {Kind: &pb.Value_StringValue{StringValue: recordedAt}},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upsert memory: %w", err)
	}
	return nil
}

// Query returns the texts of the agent's k nearest memories, best first.
func (q *QdrantIndex) Query(ctx context.Context, agentID string, vector []float32, k int) ([]string, error) {
	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: memoryCollection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		Filter: &pb.Filter{
			Must: []*pb.Condition{
				{
					ConditionOneOf: &pb.Condition_Field{
						Field: &pb.FieldCondition{
							Key: "agent_id",
							Match: &pb.Match{
								MatchValue: &pb.Match_Keyword{Keyword: agentID},
							},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}

	texts := make([]string, 0, len(resp.Result))
	for _, r := range resp.Result {
		if v, ok := r.Payload["content"]; ok {
			if sv, ok := v.Kind.(*pb.Value_StringValue); ok {
				texts = append(texts, sv.StringValue)
			}
		}
	}
	return texts, nil
}

// Close tears down the gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.conn.Close()
}
