package submitissuereport

import (
	"context"
	goerrors "errors"
	"testing"

	"birdwatch-support/internal/common/errors"
	"birdwatch-support/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) IndexDocument(ctx context.Context, index, id string, doc interface{}) error {
	return m.Called(ctx, index, id, doc).Error(0)
}

func (m *MockDocumentStore) Search(ctx context.Context, index string, query map[string]interface{}) (map[string]interface{}, error) {
	args := m.Called(ctx, index, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

func TestIssueIndex_IndexIssue(t *testing.T) {
	store := new(MockDocumentStore)
	report := &models.IssueReport{ID: "issue-1", CaseNumber: "BW-1"}
	store.On("IndexDocument", mock.Anything, "issues", "issue-1", report).Return(nil)

	require.NoError(t, NewIssueIndex(store, "issues").IndexIssue(context.Background(), report))
	store.AssertExpectations(t)
}

func TestIssueIndex_SearchIssues(t *testing.T) {
	store := new(MockDocumentStore)
	store.On("Search", mock.Anything, "issues", mock.MatchedBy(func(q map[string]interface{}) bool {
		mm, ok := q["query"].(map[string]interface{})["multi_match"].(map[string]interface{})
		return ok && mm["query"] == "login" && q["size"] == 100
	})).Return(map[string]interface{}{
		"hits": map[string]interface{}{
			"total": map[string]interface{}{"value": 1},
			"hits": []interface{}{
				map[string]interface{}{"_source": map[string]interface{}{
					"id":            "issue-1",
					"caseNumber":    "BW-20261018-ABCDEFGHJK",
					"reporterEmail": testReporter,
					"description":   "App crashes on login",
					"status":        "open",
					"reportedAt":    "2026-10-18T14:05:00Z",
				}},
			},
		},
	}, nil)

	result, err := NewIssueIndex(store, "issues").SearchIssues(context.Background(), "login", 500)

	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "BW-20261018-ABCDEFGHJK", result.Issues[0].CaseNumber)
	assert.Equal(t, fixedNow, result.Issues[0].ReportedAt.UTC())
}

func TestIssueIndex_SearchEmptyQueryListsLatest(t *testing.T) {
	q := searchQuery("", defaultSearchLimit)

	_, ok := q["query"].(map[string]interface{})["match_all"]
	assert.True(t, ok)
	assert.Equal(t, 20, q["size"])
}

func TestIssueIndex_SearchError(t *testing.T) {
	store := new(MockDocumentStore)
	store.On("Search", mock.Anything, "issues", mock.Anything).Return(nil, goerrors.New("index_not_found_exception"))

	_, err := NewIssueIndex(store, "issues").SearchIssues(context.Background(), "x", 0)

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSearchQueryFailed, errors.FromError(err).Code)
}
