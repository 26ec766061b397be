package submitissuereport

import (
	"context"
	"encoding/json"
	"fmt"

	"birdwatch-support/internal/common/errors"
	"birdwatch-support/internal/models"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// IssueIndexer makes a stored report searchable.
type IssueIndexer interface {
	IndexIssue(ctx context.Context, report *models.IssueReport) error
}

// IssueSearcher finds indexed reports.
type IssueSearcher interface {
	SearchIssues(ctx context.Context, q string, limit int) (*models.IssueSearchResult, error)
}

// DocumentStore is satisfied by *database.ElasticsearchClient.
type DocumentStore interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
	Search(ctx context.Context, index string, query map[string]interface{}) (map[string]interface{}, error)
}

// IssueIndex keeps issue reports in an Elasticsearch index keyed by issue id.
type IssueIndex struct {
	store DocumentStore
	index string
}

func NewIssueIndex(store DocumentStore, index string) *IssueIndex {
	return &IssueIndex{store: store, index: index}
}

func (i *IssueIndex) IndexIssue(ctx context.Context, report *models.IssueReport) error {
	return i.store.IndexDocument(ctx, i.index, report.ID, report)
}

// SearchIssues matches q against case number, reporter and description,
// newest first. An empty q lists the latest reports.
func (i *IssueIndex) SearchIssues(ctx context.Context, q string, limit int) (*models.IssueSearchResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	res, err := i.store.Search(ctx, i.index, searchQuery(q, limit))
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(i.index, err)
	}
	out, err := decodeHits(res)
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(i.index, err)
	}
	return out, nil
}

func searchQuery(q string, limit int) map[string]interface{} {
	query := map[string]interface{}{"match_all": map[string]interface{}{}}
	if q != "" {
		query = map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q,
				"fields": []string{"caseNumber^3", "reporterEmail^2", "description"},
			},
		}
	}
	return map[string]interface{}{
		"query": query,
		"size":  limit,
		"sort":  []interface{}{map[string]interface{}{"reportedAt": map[string]interface{}{"order": "desc"}}},
	}
}

// decodeHits reads hits.total.value and hits.hits[]._source.
func decodeHits(res map[string]interface{}) (*models.IssueSearchResult, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	var body struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.IssueReport `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode hits: %w", err)
	}

	out := &models.IssueSearchResult{Total: body.Hits.Total.Value, Issues: make([]models.IssueReport, 0, len(body.Hits.Hits))}
	for _, h := range body.Hits.Hits {
		out.Issues = append(out.Issues, h.Source)
	}
	return out, nil
}
