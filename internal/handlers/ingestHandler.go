package handlers

import (
	"net/http"
	"path/filepath"

	"github.com/akolanti/docqa/internal/adapter"
	"github.com/akolanti/docqa/internal/adapter/utils"
	"github.com/akolanti/docqa/internal/api"
	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/jobModel"
	"github.com/akolanti/docqa/internal/files"
	"github.com/akolanti/docqa/internal/rag/ingest"
)

// PostIngestHandler godoc
// @Summary      Re-index the documents directory
// @Description  Rebuilds the collection from the documents directory and waits for the run to finish. Documents that fail to load are listed and skipped.
// @Tags         Ingestion
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  api.IngestResponse
// @Failure      409  {object}  api.ErrorResponse  "A run is already in progress"
// @Failure      500  {object}  api.ErrorResponse  "Embedding or store failure, the previous collection is kept"
// @Router       /ingest [post]
func (h *Handler) PostIngestHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.logger.WithTrace(ctx, config.TRACE_ID_KEY)
	if !validateContext(ctx, log) {
		return
	}
	runId := utils.GetNewUUID()
	report, err := h.app.TryReindex(ctx, jobModel.TriggerManual, runId, traceId(ctx))
	if err != nil {
		log.Warn("Re-index failed", "runId", runId, "error", err)
		writeError(w, r, runId, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToIngestResponse(report))
}

// GetIngestHandler godoc
// @Summary      Get an ingestion run
// @Description  Returns the recorded state of an ingestion run.
// @Tags         Ingestion
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Run ID"
// @Success      200  {object}  api.IngestRunResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /ingest/{id} [get]
func (h *Handler) GetIngestHandler(w http.ResponseWriter, r *http.Request) {
	id := utils.GetChiURLParam(r, "id")
	run, found := h.app.Runs.GetRun(r.Context(), id)
	if !found {
		WriteErrorResponse(w, r, http.StatusNotFound, id, "Ingestion run not found")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToIngestRunResponse(run))
}

// ListFilesHandler godoc
// @Summary      List documents
// @Description  Lists the supported files in the documents directory, sorted by name.
// @Tags         Files
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  api.FileListResponse
// @Router       /files [get]
func (h *Handler) ListFilesHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Files.List()
	if err != nil {
		h.logger.WithTrace(r.Context(), config.TRACE_ID_KEY).Error("Could not list files", "error", err)
		writeError(w, r, "", err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToFileListResponse(h.app.Files.Dir(), list))
}

// UploadFileHandler godoc
// @Summary      Upload a document
// @Description  Saves a .pdf, .txt or .md file into the documents directory, overwriting a file of the same name, then re-indexes.
// @Tags         Files
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        document_name  formData  string  false  "File name to store under, defaults to the uploaded name"
// @Param        document       formData  file    true   "The file to upload"
// @Success      201  {object}  api.FileChangeResponse
// @Failure      400  {object}  api.ErrorResponse  "Missing file or invalid name"
// @Failure      413  {object}  api.ErrorResponse
// @Failure      415  {object}  api.ErrorResponse
// @Router       /files [post]
func (h *Handler) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.logger.WithTrace(ctx, config.TRACE_ID_KEY)
	if !validateContext(ctx, log) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(config.MaxUploadSize); err != nil {
		WriteErrorResponse(w, r, http.StatusBadRequest, "", "File too large or bad request")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	fileReader, header, err := r.FormFile("document")
	if err != nil {
		WriteErrorResponse(w, r, http.StatusBadRequest, "", "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	name := r.FormValue("document_name")
	if name == "" {
		name = filepath.Base(header.Filename)
	}

	info, err := h.app.Files.Save(name, fileReader)
	if err != nil {
		log.Warn("Upload rejected", "name", name, "error", err)
		writeError(w, r, name, err)
		return
	}
	log.Info("File uploaded", "name", info.Name, "size", info.Size)

	report, err := h.app.Reindex(ctx, jobModel.TriggerUpload, utils.GetNewUUID(), traceId(ctx))
	writeJsonResponse(w, http.StatusCreated, fileChange(info, report, err))
}

// DeleteFileHandler godoc
// @Summary      Delete a document
// @Description  Removes a file from the documents directory, then re-indexes.
// @Tags         Files
// @Produce      json
// @Security     BearerAuth
// @Param        name  path      string  true  "File name"
// @Success      200   {object}  api.FileChangeResponse
// @Failure      400   {object}  api.ErrorResponse  "Invalid name"
// @Failure      404   {object}  api.ErrorResponse
// @Router       /files/{name} [delete]
func (h *Handler) DeleteFileHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.logger.WithTrace(ctx, config.TRACE_ID_KEY)
	name := utils.GetChiURLParam(r, "name")

	if err := h.app.Files.Delete(name); err != nil {
		log.Warn("Delete rejected", "name", name, "error", err)
		writeError(w, r, name, err)
		return
	}
	log.Info("File deleted", "name", name)

	report, err := h.app.Reindex(ctx, jobModel.TriggerDelete, utils.GetNewUUID(), traceId(ctx))
	writeJsonResponse(w, http.StatusOK, fileChange(files.FileInfo{Name: name}, report, err))
}

// fileChange reports a file operation that succeeded even when the
// re-index after it did not.
func fileChange(info files.FileInfo, report ingest.Report, err error) api.FileChangeResponse {
	res := api.FileChangeResponse{File: adapter.ToFileResponse(info), Ingest: adapter.ToIngestResponse(report)}
	if err != nil {
		_, message := httpError(err)
		if message == "Internal error" {
			message = "Re-index failed, the previous collection is kept"
		}
		res.Ingest.Error = message
		if res.Ingest.Status == "" {
			res.Ingest.Status = string(jobModel.RunStatusError)
		}
	}
	return res
}
