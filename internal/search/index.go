package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"trustline/portal-backend/internal/config"
	"trustline/portal-backend/internal/users"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// NewClient builds an Elasticsearch client from configuration.
func NewClient(cfg config.SearchConfig) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return client, nil
}

// ProfileIndex reads and writes the profile index. It satisfies
// users.ProfileIndexer.
type ProfileIndex struct {
	client *elasticsearch.Client
	index  string
	logger *zap.Logger
}

func NewProfileIndex(client *elasticsearch.Client, index string, logger *zap.Logger) *ProfileIndex {
	return &ProfileIndex{client: client, index: index, logger: logger}
}

// EnsureIndex creates the index with its mapping when it does not exist yet.
func (p *ProfileIndex) EnsureIndex(ctx context.Context) error {
	res, err := p.client.Indices.Exists([]string{p.index}, p.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = p.client.Indices.Create(p.index,
		p.client.Indices.Create.WithContext(ctx),
		p.client.Indices.Create.WithBody(strings.NewReader(profileMapping)),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("create index", res)
	}

	p.logger.Info("Created profile index", zap.String("index", p.index))
	return nil
}

func (p *ProfileIndex) IndexProfile(ctx context.Context, user *users.User) error {
	body, err := json.Marshal(profileFromUser(user))
	if err != nil {
		return err
	}

	res, err := p.client.Index(p.index, bytes.NewReader(body),
		p.client.Index.WithContext(ctx),
		p.client.Index.WithDocumentID(user.ID.String()),
	)
	if err != nil {
		return fmt.Errorf("failed to index profile: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index profile", res)
	}
	return nil
}

// RemoveProfile deletes a profile document; a missing document is not an error.
func (p *ProfileIndex) RemoveProfile(ctx context.Context, id string) error {
	res, err := p.client.Delete(p.index, id, p.client.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete profile", res)
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source Profile `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a full text query over name, headline and location, filtered
// by industry and minimum trust score. Best matches come first, then higher
// scores.
func (p *ProfileIndex) Search(ctx context.Context, q Query) (*Result, error) {
	q.Limit = clampLimit(q.Limit)
	if q.Offset < 0 {
		q.Offset = 0
	}

	body, err := json.Marshal(buildQuery(q))
	if err != nil {
		return nil, err
	}

	res, err := p.client.Search(
		p.client.Search.WithContext(ctx),
		p.client.Search.WithIndex(p.index),
		p.client.Search.WithBody(bytes.NewReader(body)),
		p.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search profiles: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("search profiles", res)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	result := &Result{
		Items:  make([]Profile, 0, len(parsed.Hits.Hits)),
		Total:  parsed.Hits.Total.Value,
		Limit:  q.Limit,
		Offset: q.Offset,
	}
	for _, h := range parsed.Hits.Hits {
		result.Items = append(result.Items, h.Source)
	}
	return result, nil
}

func buildQuery(q Query) map[string]any {
	var must []any
	if text := strings.TrimSpace(q.Text); text != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":     text,
				"fields":    []string{"name^3", "headline^2", "location"},
				"fuzziness": "AUTO",
			},
		})
	} else {
		must = append(must, map[string]any{"match_all": map[string]any{}})
	}

	filter := []any{}
	if q.Industry != "" {
		filter = append(filter, map[string]any{"term": map[string]any{"industry": q.Industry}})
	}
	if q.MinScore > 0 {
		filter = append(filter, map[string]any{"range": map[string]any{"trust_score": map[string]any{"gte": q.MinScore}}})
	}

	return map[string]any{
		"from": q.Offset,
		"size": q.Limit,
		"query": map[string]any{
			"bool": map[string]any{"must": must, "filter": filter},
		},
		"sort": []any{"_score", map[string]any{"trust_score": "desc"}},
	}
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}

func responseError(op string, res *esapi.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	return fmt.Errorf("failed to %s: %s: %s", op, res.Status(), strings.TrimSpace(string(msg)))
}
