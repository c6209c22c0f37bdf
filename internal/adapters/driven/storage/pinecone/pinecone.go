// Package pinecone stores vectors in Pinecone serverless indexes through the
// REST control and data planes.
package pinecone

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/httpx"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// Ensure Store implements the interfaces.
var (
	_ driven.VectorBackend = (*Store)(nil)
	_ driven.IndexWaiter   = (*Store)(nil)
)

const (
	service = "pinecone"

	// DefaultBaseURL is the Pinecone control plane.
	DefaultBaseURL = "https://api.pinecone.io"

	// DefaultAPIVersion is sent in the X-Pinecone-API-Version header.
	DefaultAPIVersion = "2025-01"

	defaultReadyPoll    = 2 * time.Second
	defaultReadyTimeout = 5 * time.Minute

	// attributePrefix marks record attributes in the flat metadata map.
	attributePrefix = "attr_"
)

// Config configures a Store.
type Config struct {
	APIKey     string
	APIVersion string
	BaseURL    string
	Timeout    time.Duration

	// Cloud and Region place indexes created by CreateIndex.
	Cloud  string
	Region string

	// ReadyPoll is the interval between readiness checks in WaitReady.
	ReadyPoll time.Duration

	// ReadyTimeout bounds WaitReady.
	ReadyTimeout time.Duration

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Store is a driven.VectorBackend backed by Pinecone.
// Data plane hosts are looked up once per index and cached.
type Store struct {
	cfg    Config
	client *http.Client

	mu    sync.RWMutex
	hosts map[string]string
}

// New creates a Pinecone store.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &domain.ConfigurationError{Field: "vector.api_key", Reason: "missing Pinecone API key"}
	}
	if strings.TrimSpace(cfg.APIVersion) == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Cloud == "" {
		cfg.Cloud = "aws"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.ReadyPoll <= 0 {
		cfg.ReadyPoll = defaultReadyPoll
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Store{cfg: cfg, client: client, hosts: make(map[string]string)}, nil
}

type indexDescription struct {
	Name      string `json:"name"`
	Host      string `json:"host"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

// CreateIndex requests a serverless index. Pinecone provisions it in the
// background; WaitReady blocks until it can serve data requests.
func (s *Store) CreateIndex(ctx context.Context, name string, dimension int, metric domain.Metric) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}
	if metric == "" {
		metric = domain.MetricCosine
	}
	if !metric.IsValid() {
		return fmt.Errorf("%w: unknown metric %q", domain.ErrInvalidInput, metric)
	}

	body := map[string]any{
		"name":      name,
		"dimension": dimension,
		"metric":    string(metric),
		"spec": map[string]any{
			"serverless": map[string]any{
				"cloud":  s.cfg.Cloud,
				"region": s.cfg.Region,
			},
		},
	}
	err := s.control(ctx, http.MethodPost, "/indexes", body, nil)
	var statusErr *httpx.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
		return fmt.Errorf("create index %q: %w", name, domain.ErrIndexExists)
	}
	if err != nil {
		return fmt.Errorf("create index %q: %w", name, err)
	}
	return nil
}

// WaitReady polls the index until it reports ready with a data plane host,
// for at most Config.ReadyTimeout.
func (s *Store) WaitReady(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadyTimeout)
	defer cancel()

	ticker := time.NewTicker(s.cfg.ReadyPoll)
	defer ticker.Stop()

	for {
		desc, err := s.describe(ctx, name)
		if err != nil && !errors.Is(err, domain.ErrIndexNotFound) {
			return err
		}
		if err == nil && desc.Status.Ready && desc.Host != "" {
			s.cacheHost(name, desc.Host)
			return nil
		}
		logger.Debug("Pinecone index %q is not ready yet", name)
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for index %q: %w", name, ctx.Err())
		case <-ticker.C:
		}
	}
}

// ListIndexes returns index names in lexical order.
func (s *Store) ListIndexes(ctx context.Context) ([]string, error) {
	var resp struct {
		Indexes []indexDescription `json:"indexes"`
	}
	if err := s.control(ctx, http.MethodGet, "/indexes", nil, &resp); err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}

	names := make([]string, 0, len(resp.Indexes))
	for _, idx := range resp.Indexes {
		names = append(names, idx.Name)
		if idx.Host != "" {
			s.cacheHost(idx.Name, idx.Host)
		}
	}
	sort.Strings(names)
	return names, nil
}

// DescribeIndex returns the dimension and metric of an index.
func (s *Store) DescribeIndex(ctx context.Context, name string) (domain.IndexDescription, error) {
	desc, err := s.describe(ctx, name)
	if err != nil {
		return domain.IndexDescription{}, err
	}
	return domain.IndexDescription{
		Name:      name,
		Dimension: desc.Dimension,
		Metric:    domain.Metric(desc.Metric),
	}, nil
}

func (s *Store) describe(ctx context.Context, name string) (*indexDescription, error) {
	var desc indexDescription
	if err := s.control(ctx, http.MethodGet, "/indexes/"+url.PathEscape(name), nil, &desc); err != nil {
		return nil, fmt.Errorf("describe index %q: %w", name, err)
	}
	if desc.Host != "" {
		s.cacheHost(name, desc.Host)
	}
	return &desc, nil
}

type vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Upsert writes records into namespace.
func (s *Store) Upsert(ctx context.Context, index, namespace string, records []domain.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	vectors := make([]vector, len(records))
	for i, r := range records {
		metadata := map[string]any{
			"source_id":      r.Metadata.SourceID,
			"sequence_index": r.Metadata.SequenceIndex,
			"format":         string(r.Metadata.Format),
			"text":           r.Metadata.Text,
		}
		for k, v := range r.Metadata.Attributes {
			metadata[attributePrefix+k] = v
		}
		vectors[i] = vector{ID: r.ID, Values: r.Vector, Metadata: metadata}
	}

	body := map[string]any{"vectors": vectors, "namespace": namespace}
	if err := s.data(ctx, index, "/vectors/upsert", body, nil); err != nil {
		return fmt.Errorf("upsert %d vectors into %q: %w", len(vectors), index, err)
	}
	return nil
}

// Query returns the k nearest vectors of namespace.
func (s *Store) Query(ctx context.Context, index, namespace string, vec []float32, k int) ([]domain.Match, error) {
	if k <= 0 {
		return nil, nil
	}
	body := map[string]any{
		"namespace":       namespace,
		"vector":          vec,
		"topK":            k,
		"includeMetadata": true,
	}

	var resp struct {
		Namespace string `json:"namespace"`
		Matches   []struct {
			ID       string         `json:"id"`
			Score    float64        `json:"score"`
			Metadata map[string]any `json:"metadata"`
		} `json:"matches"`
	}
	if err := s.data(ctx, index, "/query", body, &resp); err != nil {
		return nil, fmt.Errorf("query %q: %w", index, err)
	}

	matches := make([]domain.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		meta := domain.RecordMetadata{Namespace: namespace}
		meta.SourceID, _ = m.Metadata["source_id"].(string)
		meta.Text, _ = m.Metadata["text"].(string)
		if f, ok := m.Metadata["format"].(string); ok {
			meta.Format = domain.Format(f)
		}
		if seq, ok := m.Metadata["sequence_index"].(float64); ok {
			meta.SequenceIndex = int(seq)
		}
		for k, v := range m.Metadata {
			name, ok := strings.CutPrefix(k, attributePrefix)
			value, isString := v.(string)
			if !ok || !isString {
				continue
			}
			if meta.Attributes == nil {
				meta.Attributes = make(map[string]string)
			}
			meta.Attributes[name] = value
		}
		matches = append(matches, domain.Match{ID: m.ID, Score: m.Score, Text: meta.Text, Metadata: meta})
	}
	return matches, nil
}

// Namespaces reads per-namespace vector counts from the index stats.
func (s *Store) Namespaces(ctx context.Context, index string) ([]domain.NamespaceStats, error) {
	var resp struct {
		Namespaces map[string]struct {
			VectorCount int `json:"vectorCount"`
		} `json:"namespaces"`
	}
	if err := s.data(ctx, index, "/describe_index_stats", map[string]any{}, &resp); err != nil {
		return nil, fmt.Errorf("describe stats of %q: %w", index, err)
	}

	stats := make([]domain.NamespaceStats, 0, len(resp.Namespaces))
	for name, ns := range resp.Namespaces {
		if ns.VectorCount == 0 {
			continue
		}
		stats = append(stats, domain.NamespaceStats{Name: name, RecordCount: ns.VectorCount})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats, nil
}

// Close releases idle connections.
func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Store) headers() map[string]string {
	return map[string]string{
		"Api-Key":                s.cfg.APIKey,
		"X-Pinecone-API-Version": s.cfg.APIVersion,
	}
}

func (s *Store) control(ctx context.Context, method, path string, body, out any) error {
	return httpx.DoJSON(ctx, s.client, httpx.Request{
		Service:  service,
		Method:   method,
		URL:      s.cfg.BaseURL + path,
		Headers:  s.headers(),
		Body:     body,
		NotFound: domain.ErrIndexNotFound,
	}, out)
}

func (s *Store) data(ctx context.Context, index, path string, body, out any) error {
	host, err := s.host(ctx, index)
	if err != nil {
		return err
	}
	err = httpx.DoJSON(ctx, s.client, httpx.Request{
		Service:  service,
		Method:   http.MethodPost,
		URL:      host + path,
		Headers:  s.headers(),
		Body:     body,
		NotFound: domain.ErrIndexNotFound,
	}, out)
	if errors.Is(err, domain.ErrIndexNotFound) {
		s.forgetHost(index)
	}
	return err
}

func (s *Store) host(ctx context.Context, index string) (string, error) {
	s.mu.RLock()
	host, ok := s.hosts[index]
	s.mu.RUnlock()
	if ok {
		return host, nil
	}

	desc, err := s.describe(ctx, index)
	if err != nil {
		return "", err
	}
	if desc.Host == "" {
		return "", fmt.Errorf("%w: index %q has no host yet", domain.ErrTransient, index)
	}
	return normalizeHost(desc.Host), nil
}

func (s *Store) cacheHost(index, host string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hosts[index] = normalizeHost(host)
}

func (s *Store) forgetHost(index string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hosts, index)
}

// normalizeHost turns the bare host Pinecone reports into a base URL.
func normalizeHost(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "https://" + host
}
