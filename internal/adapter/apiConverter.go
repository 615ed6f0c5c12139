package adapter

import (
	"fmt"

	"github.com/akolanti/docqa/internal/api"
	"github.com/akolanti/docqa/internal/app"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/jobModel"
	"github.com/akolanti/docqa/internal/files"
	"github.com/akolanti/docqa/internal/rag/ingest"
)

func ToChatResponse(chatId string, answer commonModels.Answer) api.ChatResponse {
	return api.ChatResponse{
		ChatId:    chatId,
		Answer:    answer.Text,
		Sources:   ToSources(answer.Results),
		UsedModel: answer.UsedModel,
	}
}

func ToSources(results []commonModels.SearchResult) []api.Source {
	sources := make([]api.Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, api.Source{
			Index:    r.Index,
			Filename: r.Filename,
			Page:     r.Page,
			Chunk:    r.Chunk,
			Score:    r.Score,
		})
	}
	return sources
}

// ToChatTurn keeps only the source labels; chunks are not stored with the history.
func ToChatTurn(question string, answer commonModels.Answer) jobModel.ChatTurn {
	labels := make([]string, 0, len(answer.Results))
	for _, r := range answer.Results {
		label := r.Filename
		if r.Page != nil {
			label = fmt.Sprintf("%s (page %d)", r.Filename, *r.Page)
		}
		labels = append(labels, label)
	}
	return jobModel.ChatTurn{
		Question:  question,
		Answer:    answer.Text,
		Sources:   labels,
		UsedModel: answer.UsedModel,
	}
}

func ToChatHistoryResponse(chatId string, turns []jobModel.ChatTurn) api.ChatHistoryResponse {
	out := api.ChatHistoryResponse{ChatId: chatId, Turns: make([]api.ChatTurn, 0, len(turns))}
	for _, t := range turns {
		out.Turns = append(out.Turns, api.ChatTurn{
			Question:  t.Question,
			Answer:    t.Answer,
			Sources:   t.Sources,
			UsedModel: t.UsedModel,
			Time:      t.Time,
		})
	}
	return out
}

func ToIngestResponse(report ingest.Report) api.IngestResponse {
	res := api.IngestResponse{
		Id:         report.RunId,
		Status:     string(report.Status),
		StatusURL:  fmt.Sprintf("ingest/%s", report.RunId),
		Documents:  report.Documents,
		Chunks:     report.Chunks,
		Version:    report.Version,
		DurationMs: report.Duration.Milliseconds(),
	}
	for _, f := range report.Failures {
		res.Failures = append(res.Failures, f.Error())
	}
	return res
}

func ToIngestRunResponse(run jobModel.IngestRun) api.IngestRunResponse {
	return api.IngestRunResponse{
		Id:           run.Id,
		Trigger:      run.Trigger,
		Status:       string(run.Status),
		CurrentStep:  string(run.CurrentStep),
		Documents:    run.Documents,
		Chunks:       run.Chunks,
		LoadFailures: run.LoadFailures,
		Warning:      run.Warning,
		Error:        run.Error,
		Backend:      run.Backend,
		Version:      run.CollectionVer,
		StartTime:    run.CreatedTime,
		EndTime:      run.EndTime,
	}
}

func ToFileResponse(f files.FileInfo) api.FileResponse {
	return api.FileResponse{Name: f.Name, Size: f.Size, ModTime: f.ModTime}
}

func ToFileListResponse(dir string, list []files.FileInfo) api.FileListResponse {
	out := api.FileListResponse{Directory: dir, Files: make([]api.FileResponse, 0, len(list))}
	for _, f := range list {
		out.Files = append(out.Files, ToFileResponse(f))
	}
	return out
}

func ToStatusResponse(st app.Status) api.StatusResponse {
	res := api.StatusResponse{
		Backend:        st.Backend,
		BackendKind:    st.BackendKind,
		Available:      st.Available,
		EmbeddingModel: st.EmbeddingModel,
		LLMConfigured:  st.LLMConfigured,
		LLMProvider:    st.LLMProvider,
		DocsDir:        st.DocsDir,
	}
	if m := st.Collection; m != nil {
		res.Collection = &api.CollectionResponse{
			Name:           m.Name,
			EmbeddingModel: m.EmbeddingModel,
			Dimension:      m.Dimension,
			ChunkSize:      m.ChunkSize,
			ChunkOverlap:   m.ChunkOverlap,
			Version:        m.Version,
			ChunkCount:     m.ChunkCount,
			CreatedAt:      m.CreatedAt,
		}
	}
	if st.LastRun != nil {
		run := ToIngestRunResponse(*st.LastRun)
		res.LastRun = &run
	}
	return res
}

func ErrorBody(id, traceId, message string, code int) api.ErrorResponse {
	return api.ErrorResponse{
		Id:      id,
		TraceId: traceId,
		Error: api.OutgoingError{
			Code:    code,
			Message: message,
			Retry:   code == 409 || code == 429 || code == 503,
		},
	}
}
