// Package qdrant stores vectors in a Qdrant server through its REST API.
//
// An index is a collection. Namespaces are a keyword payload field that
// every search filters on, so a query never crosses namespaces.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/httpx"
)

// Ensure Store implements the interface.
var _ driven.VectorBackend = (*Store)(nil)

const (
	service = "qdrant"

	// DefaultURL is the address of a local Qdrant server.
	DefaultURL = "http://localhost:6333"

	namespaceField = "namespace"
	facetLimit     = 1000
)

// pointNamespace seeds point IDs. Qdrant needs UUID point IDs and the same
// record ID may live in several namespaces of one collection.
var pointNamespace = uuid.MustParse("1d6f1f7e-6b0e-5a4f-8f1c-3b2a9c7d4e10")

// Config configures a Store.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Store is a driven.VectorBackend backed by Qdrant.
type Store struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates a Qdrant store.
func New(cfg Config) (*Store, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		base = DefaultURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, &domain.ConfigurationError{Field: "vector.url", Reason: err.Error()}
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Store{baseURL: base, apiKey: cfg.APIKey, client: client}, nil
}

// CreateIndex creates a collection and a keyword index on the namespace field.
func (s *Store) CreateIndex(ctx context.Context, name string, dimension int, metric domain.Metric) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}
	distance, err := distanceFor(metric)
	if err != nil {
		return err
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": distance,
		},
	}
	err = s.do(ctx, http.MethodPut, s.collectionPath(name), body, nil, nil)
	var statusErr *httpx.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
		return fmt.Errorf("create collection %q: %w", name, domain.ErrIndexExists)
	}
	if err != nil {
		return fmt.Errorf("create collection %q: %w", name, err)
	}

	field := map[string]any{
		"field_name":   namespaceField,
		"field_schema": "keyword",
	}
	if err := s.do(ctx, http.MethodPut, s.collectionPath(name)+"/index?wait=true", field, nil, domain.ErrIndexNotFound); err != nil {
		return fmt.Errorf("index namespace field of %q: %w", name, err)
	}
	return nil
}

// ListIndexes returns collection names in lexical order.
func (s *Store) ListIndexes(ctx context.Context) ([]string, error) {
	var resp struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, s.baseURL+"/collections", nil, &resp, nil); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	names := make([]string, 0, len(resp.Result.Collections))
	for _, c := range resp.Result.Collections {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names, nil
}

// DescribeIndex reads the vector size and distance of a collection.
func (s *Store) DescribeIndex(ctx context.Context, name string) (domain.IndexDescription, error) {
	var resp struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, s.collectionPath(name), nil, &resp, domain.ErrIndexNotFound); err != nil {
		return domain.IndexDescription{}, fmt.Errorf("describe collection %q: %w", name, err)
	}

	vectors := resp.Result.Config.Params.Vectors
	return domain.IndexDescription{
		Name:      name,
		Dimension: vectors.Size,
		Metric:    metricFor(vectors.Distance),
	}, nil
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Upsert writes records into namespace and waits until they are searchable.
func (s *Store) Upsert(ctx context.Context, index, namespace string, records []domain.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]point, len(records))
	for i, r := range records {
		points[i] = point{
			ID:     PointID(namespace, r.ID),
			Vector: r.Vector,
			Payload: map[string]any{
				namespaceField:   namespace,
				"record_id":      r.ID,
				"source_id":      r.Metadata.SourceID,
				"sequence_index": r.Metadata.SequenceIndex,
				"format":         string(r.Metadata.Format),
				"text":           r.Metadata.Text,
				"attributes":     r.Metadata.Attributes,
			},
		}
	}

	body := map[string]any{"points": points}
	if err := s.do(ctx, http.MethodPut, s.collectionPath(index)+"/points?wait=true", body, nil, domain.ErrIndexNotFound); err != nil {
		return fmt.Errorf("upsert %d points into %q: %w", len(points), index, err)
	}
	return nil
}

// Query searches namespace for the k nearest points.
func (s *Store) Query(ctx context.Context, index, namespace string, vector []float32, k int) ([]domain.Match, error) {
	if k <= 0 {
		return nil, nil
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
		"filter":       namespaceFilter(namespace),
	}

	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionPath(index)+"/points/search", body, &resp, domain.ErrIndexNotFound); err != nil {
		return nil, fmt.Errorf("search %q: %w", index, err)
	}

	matches := make([]domain.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		meta := metadataFromPayload(r.Payload)
		if meta.Namespace != namespace {
			continue
		}
		matches = append(matches, domain.Match{
			ID:       stringField(r.Payload, "record_id"),
			Score:    r.Score,
			Text:     meta.Text,
			Metadata: meta,
		})
	}
	return matches, nil
}

// Namespaces counts points per namespace with a facet over the namespace field.
func (s *Store) Namespaces(ctx context.Context, index string) ([]domain.NamespaceStats, error) {
	body := map[string]any{
		"key":   namespaceField,
		"limit": facetLimit,
		"exact": true,
	}
	var resp struct {
		Result struct {
			Hits []struct {
				Value any `json:"value"`
				Count int `json:"count"`
			} `json:"hits"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionPath(index)+"/facet", body, &resp, domain.ErrIndexNotFound); err != nil {
		return nil, fmt.Errorf("count namespaces of %q: %w", index, err)
	}

	stats := make([]domain.NamespaceStats, 0, len(resp.Result.Hits))
	for _, h := range resp.Result.Hits {
		name, ok := h.Value.(string)
		if !ok || h.Count == 0 {
			continue
		}
		stats = append(stats, domain.NamespaceStats{Name: name, RecordCount: h.Count})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats, nil
}

// Close releases idle connections.
func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// PointID returns the Qdrant point ID of a record in namespace.
func PointID(namespace, recordID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(namespace+"|"+recordID)).String()
}

func (s *Store) collectionPath(name string) string {
	return s.baseURL + "/collections/" + url.PathEscape(name)
}

func (s *Store) do(ctx context.Context, method, u string, body, out any, notFound error) error {
	return httpx.DoJSON(ctx, s.client, httpx.Request{
		Service:  service,
		Method:   method,
		URL:      u,
		Headers:  map[string]string{"api-key": s.apiKey},
		Body:     body,
		NotFound: notFound,
	}, out)
}

func namespaceFilter(namespace string) map[string]any {
	return map[string]any{
		"must": []map[string]any{{
			"key":   namespaceField,
			"match": map[string]any{"value": namespace},
		}},
	}
}

func distanceFor(metric domain.Metric) (string, error) {
	switch metric {
	case domain.MetricCosine, "":
		return "Cosine", nil
	case domain.MetricDotProduct:
		return "Dot", nil
	case domain.MetricEuclidean:
		return "Euclid", nil
	default:
		return "", fmt.Errorf("%w: unknown metric %q", domain.ErrInvalidInput, metric)
	}
}

func metricFor(distance string) domain.Metric {
	switch strings.ToLower(distance) {
	case "dot":
		return domain.MetricDotProduct
	case "euclid":
		return domain.MetricEuclidean
	default:
		return domain.MetricCosine
	}
}

func metadataFromPayload(p map[string]any) domain.RecordMetadata {
	meta := domain.RecordMetadata{
		Namespace: stringField(p, namespaceField),
		SourceID:  stringField(p, "source_id"),
		Format:    domain.Format(stringField(p, "format")),
		Text:      stringField(p, "text"),
	}
	// JSON numbers decode as float64.
	if v, ok := p["sequence_index"].(float64); ok {
		meta.SequenceIndex = int(v)
	}
	if attrs, ok := p["attributes"].(map[string]any); ok && len(attrs) > 0 {
		meta.Attributes = make(map[string]string, len(attrs))
		for k, v := range attrs {
			if value, ok := v.(string); ok {
				meta.Attributes[k] = value
			}
		}
	}
	return meta
}

func stringField(p map[string]any, key string) string {
	v, _ := p[key].(string)
	return v
}
