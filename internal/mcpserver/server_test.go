package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/files"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEngine struct {
	OnQuery  func(ctx context.Context, question string) commonModels.Answer
	OnSearch func(ctx context.Context, question string, k int) []commonModels.SearchResult
	k        int
}

func (m *mockEngine) Query(ctx context.Context, question string) commonModels.Answer {
	if m.OnQuery != nil {
		return m.OnQuery(ctx, question)
	}
	return commonModels.Answer{}
}

func (m *mockEngine) Search(ctx context.Context, question string, k int) []commonModels.SearchResult {
	if m.OnSearch != nil {
		return m.OnSearch(ctx, question, k)
	}
	return []commonModels.SearchResult{}
}

func (m *mockEngine) K() int { return m.k }

type mockFiles struct {
	list []files.FileInfo
	err  error
}

func (m *mockFiles) List() ([]files.FileInfo, error) { return m.list, m.err }

func results() []commonModels.SearchResult {
	return []commonModels.SearchResult{
		{Index: 1, Filename: "france.txt", Chunk: "Paris is the capital of France.", Score: 0.05},
		{Index: 2, Filename: "guide.pdf", Page: commonModels.IntPtr(2), Chunk: "Lyon", Score: 0.4},
	}
}

func TestNew_ValidatesPorts(t *testing.T) {
	_, err := New(&Ports{Files: &mockFiles{}})
	assert.ErrorIs(t, err, ErrMissingEngine)

	_, err = New(&Ports{Engine: &mockEngine{}})
	assert.ErrorIs(t, err, ErrMissingFiles)

	_, err = New(nil)
	assert.ErrorIs(t, err, ErrMissingEngine)

	s, err := New(&Ports{Engine: &mockEngine{}, Files: &mockFiles{}})
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestHandleAsk(t *testing.T) {
	var asked string
	engine := &mockEngine{OnQuery: func(ctx context.Context, question string) commonModels.Answer {
		asked = question
		return commonModels.Answer{Text: "Paris", Results: results(), UsedModel: true}
	}}
	s, err := New(&Ports{Engine: engine, Files: &mockFiles{}})
	require.NoError(t, err)

	_, out, err := s.handleAsk(context.Background(), nil, AskInput{Question: "  capital of France?  "})
	require.NoError(t, err)
	assert.Equal(t, "capital of France?", asked)
	assert.Equal(t, "Paris", out.Answer)
	assert.True(t, out.UsedModel)
	require.Len(t, out.Sources, 2)
	assert.Equal(t, 2, *out.Sources[1].Page)

	_, _, err = s.handleAsk(context.Background(), nil, AskInput{Question: " "})
	assert.Error(t, err)
}

func TestHandleSearch(t *testing.T) {
	var gotK int
	engine := &mockEngine{k: 4, OnSearch: func(ctx context.Context, question string, k int) []commonModels.SearchResult {
		gotK = k
		return results()[:1]
	}}
	s, err := New(&Ports{Engine: engine, Files: &mockFiles{}})
	require.NoError(t, err)

	_, out, err := s.handleSearch(context.Background(), nil, SearchInput{Query: "paris"})
	require.NoError(t, err)
	assert.Equal(t, 4, gotK, "k defaults to the configured value")
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, "france.txt", out.Results[0].Filename)

	_, _, err = s.handleSearch(context.Background(), nil, SearchInput{Query: "paris", K: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, gotK)
}

func TestHandleListFiles(t *testing.T) {
	mod := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s, err := New(&Ports{Engine: &mockEngine{}, Files: &mockFiles{list: []files.FileInfo{{Name: "a.md", Size: 12, ModTime: mod}}}})
	require.NoError(t, err)

	_, out, err := s.handleListFiles(context.Background(), nil, ListFilesInput{})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "2024-05-01T12:00:00Z", out.Files[0].ModTime)

	s, err = New(&Ports{Engine: &mockEngine{}, Files: &mockFiles{err: errors.New("permission denied")}})
	require.NoError(t, err)
	_, _, err = s.handleListFiles(context.Background(), nil, ListFilesInput{})
	assert.Error(t, err)
}

func TestSession_CallsTools(t *testing.T) {
	ctx := context.Background()
	engine := &mockEngine{k: 4, OnQuery: func(ctx context.Context, question string) commonModels.Answer {
		return commonModels.Answer{Text: "Paris", Results: results()}
	}}
	s, err := New(&Ports{Engine: engine, Files: &mockFiles{}})
	require.NoError(t, err)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := s.Connect(ctx, serverTransport)
	require.NoError(t, err)
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer cs.Close()

	tools, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"ask", "search", "list_files"}, names)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: "ask", Arguments: map[string]any{"question": "capital of France?"}})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out AskOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "Paris", out.Answer)
	assert.Len(t, out.Sources, 2)

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{Name: "ask", Arguments: map[string]any{"question": ""}})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
