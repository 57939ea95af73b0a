package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/starford/codex/internal/ingest"
	"github.com/starford/codex/internal/source"
)

const (
	// maxUploadParts bounds the number of files in one upload.
	maxUploadParts = 32
	// multipartMemory is the part of a form kept in memory; the rest spills to disk.
	multipartMemory = 32 << 20
)

// Upload handles POST /api/ingest.
//
//	@Summary		Ingest uploaded files
//	@Description	Each "file" part is validated, decoded, deduplicated, and chunked independently.
//	@Tags			ingest
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Files to ingest (repeatable)"
//	@Success		200		{object}	IngestResponse
//	@Failure		400		{object}	errResponse
//	@Failure		413		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ingest [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	maxItem := h.svc.Ingestor().Policy().MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, 4*maxItem)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody(fmt.Sprintf("request too large (max %d bytes)", mbe.Limit)))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody("invalid multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("at least one 'file' part is required"))
		return
	}
	if len(files) > maxUploadParts {
		writeJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("too many files (max %d)", maxUploadParts)))
		return
	}

	items := make([]ingest.Item, len(files))
	for i, fh := range files {
		items[i] = ingest.Item{
			Name:   fh.Filename,
			Source: "upload:" + fh.Filename,
			Size:   fh.Size,
			Ref:    strconv.Itoa(i),
		}
	}

	results := h.svc.IngestWith(r.Context(), partFetcher(files, maxItem), items)
	writeJSON(w, http.StatusOK, IngestResponse{Results: ingest.Reports(results)})
}

// partFetcher resolves an item Ref (the part index) to the part's bytes.
// Parts are only opened after the item passed validation.
func partFetcher(files []*multipart.FileHeader, maxBytes int64) source.Fetcher {
	return source.FetcherFunc(func(_ context.Context, ref string) ([]byte, error) {
		i, err := strconv.Atoi(ref)
		if err != nil || i < 0 || i >= len(files) {
			return nil, &source.TransportError{Status: "unknown part"}
		}
		f, err := files[i].Open()
		if err != nil {
			return nil, &source.TransportError{Status: "read failed", Err: err}
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
		if err != nil {
			return nil, &source.TransportError{Status: "read failed", Err: err}
		}
		return data, nil
	})
}

// IngestRemote handles POST /api/ingest/remote.
//
//	@Summary		Ingest documents fetched from URLs
//	@Tags			ingest
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RemoteIngestRequest	true	"Items to fetch"
//	@Success		200		{object}	IngestResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ingest/remote [post]
func (h *Handler) IngestRemote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req RemoteIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("items are required"))
		return
	}
	if len(req.Items) > maxUploadParts {
		writeJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("too many items (max %d)", maxUploadParts)))
		return
	}

	items := make([]ingest.Item, len(req.Items))
	for i, it := range req.Items {
		if strings.TrimSpace(it.URL) == "" {
			writeJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("items[%d].url is required", i)))
			return
		}
		items[i] = ingest.Item{
			Name:   it.Name,
			Source: it.Source,
			Title:  it.Title,
			Size:   it.Size,
			Ref:    it.URL,
		}
	}

	results := h.svc.Ingest(r.Context(), items)
	writeJSON(w, http.StatusOK, IngestResponse{Results: ingest.Reports(results)})
}
