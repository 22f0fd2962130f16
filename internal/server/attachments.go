package server

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"ideaflow/internal/domain"
	"ideaflow/internal/engine"
)

const (
	multipartMemory   = 1 << 20
	multipartOverhead = 1 << 20
)

func registerAttachments(api huma.API, router chi.Router, basePath string, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-attachments",
		Method:      http.MethodGet,
		Path:        "/ideas/{id}/attachments",
		Summary:     "List an idea's attachments",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *ideaPath) (*struct {
		Body []AttachmentResponse `json:"body"`
	}, error) {
		items, err := e.ListAttachments(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]AttachmentResponse, 0, len(items))
		for _, a := range items {
			out = append(out, attachmentResponse(e, a))
		}
		return &struct {
			Body []AttachmentResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-attachment",
		Method:      http.MethodGet,
		Path:        "/attachments/{id}",
		Summary:     "Attachment metadata",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *ideaPath) (*struct {
		Body AttachmentResponse `json:"body"`
	}, error) {
		a, err := e.GetAttachment(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AttachmentResponse `json:"body"`
		}{Body: attachmentResponse(e, a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-attachment",
		Method:        http.MethodDelete,
		Path:          "/attachments/{id}",
		Summary:       "Delete an attachment and its stored file",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *ideaPath) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteAttachment(ctx, input.ID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reconcile-attachments",
		Method:      http.MethodPost,
		Path:        "/attachments/reconcile",
		Summary:     "Repair drift between attachment rows and stored files",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.ReconcileReport `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		report, err := e.ReconcileAttachments(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.ReconcileReport `json:"body"`
		}{Body: report}, nil
	})

	// Multipart upload and binary download bypass huma's JSON codec.
	router.Post(path.Join(basePath, "ideas/{id}/attachments"), uploadHandler(e))
	router.Get(path.Join(basePath, "attachments/{id}/download"), downloadHandler(e))
}

func attachmentResponse(e engine.Engine, a domain.Attachment) AttachmentResponse {
	resp := AttachmentResponse{Attachment: a}
	if e.Store != nil {
		resp.URL = e.Store.URL(a.StoragePath)
	}
	return resp
}

func uploadHandler(e engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, authErr := actorIDFromContext(r.Context())
		if authErr != nil {
			respondStatusError(w, authErr)
			return
		}
		file, header, ok := multipartFile(w, r, e.Config.Uploads.MaxBytes)
		if !ok {
			return
		}
		defer file.Close()
		a, err := e.UploadAttachment(r.Context(), engine.UploadInput{
			IdeaID:      chi.URLParam(r, "id"),
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
			UploaderID:  actorID,
		})
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		writeJSON(w, http.StatusCreated, attachmentResponse(e, a))
	}
}

// multipartFile reads the "file" part of a multipart body capped near maxBytes.
// It writes the error response itself and reports false on failure.
func multipartFile(w http.ResponseWriter, r *http.Request, maxBytes int64) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondStatusError(w, handleError(engine.ErrFileTooLarge))
			return nil, nil, false
		}
		respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "multipart form with a file field is required", nil))
		return nil, nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		r.MultipartForm.RemoveAll()
		respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "file field is required", nil))
		return nil, nil, false
	}
	return multipartCleanup{File: file, form: r.MultipartForm}, header, true
}

// multipartCleanup removes the form's temp files when the part is closed.
type multipartCleanup struct {
	multipart.File
	form *multipart.Form
}

func (m multipartCleanup) Close() error {
	err := m.File.Close()
	m.form.RemoveAll()
	return err
}

func downloadHandler(e engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, rc, err := e.OpenAttachment(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", a.TipoMime)
		w.Header().Set("Content-Length", strconv.FormatInt(a.TamanhoBytes, 10))
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.NomeArquivo}))
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, rc)
	}
}
