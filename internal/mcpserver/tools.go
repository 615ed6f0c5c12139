package mcpserver

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var errEmptyQuestion = errors.New("question must not be empty")

type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the indexed documents"`
}

type AskOutput struct {
	Answer    string         `json:"answer"`
	Sources   []SourceOutput `json:"sources"`
	UsedModel bool           `json:"used_model"`
}

type SearchInput struct {
	Query string `json:"query" jsonschema:"the text to find similar passages for"`
	K     int    `json:"k,omitempty" jsonschema:"maximum number of passages to return"`
}

type SearchOutput struct {
	Results []SourceOutput `json:"results"`
	Count   int            `json:"count"`
}

type SourceOutput struct {
	Index    int     `json:"index"`
	Filename string  `json:"filename"`
	Page     *int    `json:"page,omitempty"`
	Chunk    string  `json:"chunk"`
	Score    float64 `json:"score"`
}

type ListFilesInput struct{}

type ListFilesOutput struct {
	Files []FileOutput `json:"files"`
	Count int          `json:"count"`
}

type FileOutput struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime string `json:"mod_time"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the indexed documents and cite the passages used",
	}, s.handleAsk)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Find the indexed passages most similar to a query, closest first",
	}, s.handleSearch)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_files",
		Description: "List the documents available for indexing",
	}, s.handleListFiles)
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, AskOutput{}, errEmptyQuestion
	}
	answer := s.ports.Engine.Query(ctx, question)
	s.logger.Info("Answered", "results", len(answer.Results), "usedModel", answer.UsedModel)
	return nil, AskOutput{
		Answer:    answer.Text,
		Sources:   toSources(answer.Results),
		UsedModel: answer.UsedModel,
	}, nil
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, SearchOutput{}, errEmptyQuestion
	}
	k := input.K
	if k <= 0 {
		k = s.ports.Engine.K()
	}
	results := toSources(s.ports.Engine.Search(ctx, query, k))
	return nil, SearchOutput{Results: results, Count: len(results)}, nil
}

func (s *Server) handleListFiles(_ context.Context, _ *mcp.CallToolRequest, _ ListFilesInput) (*mcp.CallToolResult, ListFilesOutput, error) {
	list, err := s.ports.Files.List()
	if err != nil {
		return nil, ListFilesOutput{}, err
	}
	out := ListFilesOutput{Files: make([]FileOutput, len(list)), Count: len(list)}
	for i, f := range list {
		out.Files[i] = FileOutput{Name: f.Name, Size: f.Size, ModTime: f.ModTime.UTC().Format(time.RFC3339)}
	}
	return nil, out, nil
}

func toSources(results []commonModels.SearchResult) []SourceOutput {
	out := make([]SourceOutput, len(results))
	for i, r := range results {
		out[i] = SourceOutput{Index: r.Index, Filename: r.Filename, Page: r.Page, Chunk: r.Chunk, Score: r.Score}
	}
	return out
}
