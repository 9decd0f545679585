package repository

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const (
	defaultVectorDimension = 1024

	payloadVideoID   = "video_id"
	payloadYouTubeID = "youtube_id"
	payloadTitle     = "title"
	payloadChannel   = "channel_name"
	payloadKeywords  = "keywords"
)

// QdrantConnectionConfig describes how to reach the video index. An APIKey
// implies TLS (Qdrant Cloud).
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string
	UseTLS          bool
	VectorDimension int
}

// VideoPayload is stored next to each video vector.
type VideoPayload struct {
	VideoID     string   `json:"video_id"`
	YouTubeID   string   `json:"youtube_id"`
	Title       string   `json:"title"`
	ChannelName string   `json:"channel_name"`
	Keywords    []string `json:"keywords"`
}

// SearchResult is one scored hit. ID is the video UUID.
type SearchResult struct {
	ID      string
	Score   float32
	Payload *VideoPayload
}

// QdrantRepository is the semantic index of completed videos, one point per
// video keyed by the video's UUID.
type QdrantRepository struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dimension   int
}

func NewQdrantRepository(cfg *QdrantConnectionConfig) (*QdrantRepository, error) {
	dimension := cfg.VectorDimension
	if dimension <= 0 {
		dimension = defaultVectorDimension
	}

	conn, err := grpc.NewClient(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), dialOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantRepository{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  cfg.Collection,
		dimension:   dimension,
	}, nil
}

func dialOptions(cfg *QdrantConnectionConfig) []grpc.DialOption {
	if !cfg.UseTLS && cfg.APIKey == "" {
		return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS13})),
	}
	if cfg.APIKey != "" {
		apiKey := cfg.APIKey
		opts = append(opts, grpc.WithUnaryInterceptor(
			func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
				ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
				return invoker(ctx, method, req, reply, cc, callOpts...)
			}))
	}
	return opts
}

func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

// EnsureCollection creates the collection on first use and refuses to run
// against one built for a different vector size. The keyword payload index
// is (re)declared every time; Qdrant treats that as a no-op when present.
func (r *QdrantRepository) EnsureCollection(ctx context.Context) error {
	info, err := r.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: r.collection})
	if err == nil {
		if size := vectorSize(info.GetResult()); size != 0 && size != uint64(r.dimension) {
			return fmt.Errorf("collection %s has vector size %d, expected %d", r.collection, size, r.dimension)
		}
	} else {
		_, err = r.collections.Create(ctx, &pb.CreateCollection{
			CollectionName: r.collection,
			VectorsConfig: &pb.VectorsConfig{
				Config: &pb.VectorsConfig_Params{
					Params: &pb.VectorParams{
						Size:     uint64(r.dimension),
						Distance: pb.Distance_Cosine,
					},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create collection %s: %w", r.collection, err)
		}
	}

	wait := true
	_, err = r.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: r.collection,
		Wait:           &wait,
		FieldName:      payloadKeywords,
		FieldType:      pb.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to index %s payload: %w", payloadKeywords, err)
	}
	return nil
}

// vectorSize reads the configured dimension of a collection, or 0 if unknown.
func vectorSize(info *pb.CollectionInfo) uint64 {
	vectors := info.GetConfig().GetParams().GetVectorsConfig()
	if single := vectors.GetParams(); single != nil {
		return single.GetSize()
	}
	for _, params := range vectors.GetParamsMap().GetMap() {
		if size := params.GetSize(); size > 0 {
			return size
		}
	}
	return 0
}

// Upsert stores or replaces the vector for one video.
func (r *QdrantRepository) Upsert(ctx context.Context, videoID string, vector []float32, payload *VideoPayload) error {
	id, err := pointID(videoID)
	if err != nil {
		return err
	}

	keywords := make([]*pb.Value, len(payload.Keywords))
	for i, kw := range payload.Keywords {
		keywords[i] = stringValue(kw)
	}

	_, err = r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Points: []*pb.PointStruct{{
			Id: id,
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vector}},
			},
			Payload: map[string]*pb.Value{
				payloadVideoID:   stringValue(payload.VideoID),
				payloadYouTubeID: stringValue(payload.YouTubeID),
				payloadTitle:     stringValue(payload.Title),
				payloadChannel:   stringValue(payload.ChannelName),
				payloadKeywords:  {Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: keywords}}},
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert video %s: %w", videoID, err)
	}
	return nil
}

// Search returns the topK nearest videos. A non-empty keyword restricts hits
// to videos tagged with it.
func (r *QdrantRepository) Search(ctx context.Context, vector []float32, topK int, keyword string) ([]SearchResult, error) {
	req := &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if keyword != "" {
		req.Filter = &pb.Filter{Must: []*pb.Condition{{
			ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
				Key:   payloadKeywords,
				Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: keyword}},
			}},
		}}}
	}

	resp, err := r.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search videos: %w", err)
	}

	results := make([]SearchResult, 0, len(resp.GetResult()))
	for _, hit := range resp.GetResult() {
		results = append(results, SearchResult{
			ID:      hit.GetId().GetUuid(),
			Score:   hit.GetScore(),
			Payload: decodePayload(hit.GetPayload()),
		})
	}
	return results, nil
}

// Delete drops the point for one video. Deleting a missing point succeeds.
func (r *QdrantRepository) Delete(ctx context.Context, videoID string) error {
	id, err := pointID(videoID)
	if err != nil {
		return err
	}
	_, err = r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: []*pb.PointId{id}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete video %s: %w", videoID, err)
	}
	return nil
}

func pointID(videoID string) (*pb.PointId, error) {
	uid, err := uuid.Parse(videoID)
	if err != nil {
		return nil, fmt.Errorf("invalid point ID: %w", err)
	}
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: uid.String()}}, nil
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func decodePayload(payload map[string]*pb.Value) *VideoPayload {
	if payload == nil {
		return nil
	}
	p := &VideoPayload{
		VideoID:     payload[payloadVideoID].GetStringValue(),
		YouTubeID:   payload[payloadYouTubeID].GetStringValue(),
		Title:       payload[payloadTitle].GetStringValue(),
		ChannelName: payload[payloadChannel].GetStringValue(),
	}
	for _, item := range payload[payloadKeywords].GetListValue().GetValues() {
		p.Keywords = append(p.Keywords, item.GetStringValue())
	}
	return p
}
