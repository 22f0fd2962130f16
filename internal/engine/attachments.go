package engine

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ideaflow/internal/domain"
	"ideaflow/internal/events"
	"ideaflow/internal/storage"
)

const (
	attachmentPrefix   = "anexos/"
	suffixAlphabet     = "0123456789abcdefghijklmnopqrstuvwxyz"
	suffixLen          = 6
	maxPathAttempts    = 3
	reconcileGraceTime = 5 * time.Minute
)

type UploadInput struct {
	IdeaID      string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
	UploaderID  string
}

func randomSuffix() string {
	buf := make([]byte, suffixLen)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano()%2176782336, 36)
	}
	for i, b := range buf {
		buf[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return string(buf)
}

func (e Engine) suffix() string {
	if e.Suffix != nil {
		return e.Suffix()
	}
	return randomSuffix()
}

// attachmentKey builds anexos/<idea>/<unix millis>_<suffix>[.<ext>].
func (e Engine) attachmentKey(ideaID, fileName string) string {
	key := fmt.Sprintf("%s%s/%d_%s", attachmentPrefix, ideaID, e.now().UnixMilli(), e.suffix())
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), "."); ext != "" {
		key += "." + ext
	}
	return key
}

func normalizeMime(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return mime
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// UploadAttachment stores the blob then its metadata. A failed metadata write
// deletes the blob again.
func (e Engine) UploadAttachment(ctx context.Context, in UploadInput) (domain.Attachment, error) {
	if e.Store == nil {
		return domain.Attachment{}, &BackendError{Op: "upload attachment", Err: errors.New("no object store configured")}
	}
	maxBytes := e.Config.Uploads.MaxBytes
	if in.Size > maxBytes {
		uploads.WithLabelValues("too_large").Inc()
		return domain.Attachment{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, in.Size, maxBytes)
	}
	mime := normalizeMime(in.ContentType)
	if !e.Config.IsAllowedType(mime) {
		uploads.WithLabelValues("unsupported").Inc()
		return domain.Attachment{}, fmt.Errorf("%w: %q", ErrUnsupportedType, in.ContentType)
	}
	name := filepath.Base(strings.TrimSpace(in.FileName))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return domain.Attachment{}, validationf("file name is required")
	}
	if in.Body == nil || in.Size < 0 {
		return domain.Attachment{}, validationf("file body is required")
	}
	if in.UploaderID == "" {
		return domain.Attachment{}, validationf("uploader is required")
	}
	if _, err := e.Repo.GetIdea(ctx, nil, in.IdeaID); err != nil {
		return domain.Attachment{}, backend("get idea", err)
	}

	body := &countingReader{r: io.LimitReader(in.Body, maxBytes+1)}
	var key string
	for attempt := 1; ; attempt++ {
		key = e.attachmentKey(in.IdeaID, name)
		err := e.Store.Put(ctx, key, body, in.Size, mime)
		if err == nil {
			break
		}
		if errors.Is(err, storage.ErrExists) && attempt < maxPathAttempts {
			e.log().WithField("path", key).Warn("attachment path collision, retrying")
			continue
		}
		uploads.WithLabelValues("error").Inc()
		return domain.Attachment{}, backend("store object", err)
	}
	log := e.log().WithFields(logrus.Fields{"idea_id": in.IdeaID, "actor_id": in.UploaderID, "path": key})
	if body.n > maxBytes {
		e.removeObject(ctx, log, key)
		uploads.WithLabelValues("too_large").Inc()
		return domain.Attachment{}, fmt.Errorf("%w: body exceeds %d bytes", ErrFileTooLarge, maxBytes)
	}

	a := domain.Attachment{
		ID:           e.newID(),
		IdeaID:       in.IdeaID,
		NomeArquivo:  name,
		StoragePath:  key,
		TipoMime:     mime,
		TamanhoBytes: body.n,
		UploadedBy:   in.UploaderID,
		CreatedAt:    e.timestamp(),
	}
	err := e.inTx(ctx, "insert attachment", func(tx *sql.Tx) error {
		if err := e.Repo.InsertAttachment(ctx, tx, a); err != nil {
			return backend("insert attachment", err)
		}
		return backend("append event", e.audit().Append(ctx, tx, events.AttachmentUploaded, "attachment", a.ID, in.UploaderID, events.EventPayload{
			"idea_id": in.IdeaID, "path": key, "bytes": a.TamanhoBytes,
		}))
	})
	if err != nil {
		e.removeObject(ctx, log, key)
		uploads.WithLabelValues("error").Inc()
		return domain.Attachment{}, err
	}
	uploads.WithLabelValues("ok").Inc()
	uploadBytes.Observe(float64(a.TamanhoBytes))
	log.WithField("bytes", a.TamanhoBytes).Info("attachment uploaded")
	return a, nil
}

func (e Engine) removeObject(ctx context.Context, log logrus.FieldLogger, key string) {
	if err := e.Store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.WithError(err).Warn("orphan attachment object left behind")
		return
	}
	log.Warn("attachment object removed after failed upload")
}

// DeleteAttachment removes the row and the object. The row delete stays
// uncommitted until the object is gone, so an object failure keeps both.
func (e Engine) DeleteAttachment(ctx context.Context, id, actorID string) error {
	if e.Store == nil {
		return &BackendError{Op: "delete attachment", Err: errors.New("no object store configured")}
	}
	var a domain.Attachment
	err := e.inTx(ctx, "delete attachment", func(tx *sql.Tx) error {
		var err error
		a, err = e.Repo.GetAttachment(ctx, tx, id)
		if err != nil {
			return backend("get attachment", err)
		}
		if a.UploadedBy != actorID {
			idea, err := e.Repo.GetIdea(ctx, tx, a.IdeaID)
			if err != nil {
				return backend("get idea", err)
			}
			if !idea.IsOwnerOrAuthor(actorID) {
				return fmt.Errorf("%w: only the uploader, owner or author may delete an attachment", ErrPermissionDenied)
			}
		}
		if err := e.Repo.DeleteAttachment(ctx, tx, id); err != nil {
			return backend("delete attachment", err)
		}
		if err := e.audit().Append(ctx, tx, events.AttachmentDeleted, "attachment", id, actorID, events.EventPayload{"idea_id": a.IdeaID, "path": a.StoragePath}); err != nil {
			return backend("append event", err)
		}
		if err := e.Store.Delete(ctx, a.StoragePath); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return backend("delete object", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.log().WithFields(logrus.Fields{"idea_id": a.IdeaID, "actor_id": actorID, "path": a.StoragePath}).Info("attachment deleted")
	return nil
}

func (e Engine) ListAttachments(ctx context.Context, ideaID string) ([]domain.Attachment, error) {
	if _, err := e.Repo.GetIdea(ctx, nil, ideaID); err != nil {
		return nil, backend("get idea", err)
	}
	items, err := e.Repo.ListAttachments(ctx, nil, ideaID)
	if err != nil {
		return nil, backend("list attachments", err)
	}
	return items, nil
}

func (e Engine) GetAttachment(ctx context.Context, id string) (domain.Attachment, error) {
	a, err := e.Repo.GetAttachment(ctx, nil, id)
	if err != nil {
		return domain.Attachment{}, backend("get attachment", err)
	}
	return a, nil
}

// OpenAttachment returns the metadata and a reader over the stored bytes.
// The caller closes the reader.
func (e Engine) OpenAttachment(ctx context.Context, id string) (domain.Attachment, io.ReadCloser, error) {
	a, err := e.GetAttachment(ctx, id)
	if err != nil {
		return domain.Attachment{}, nil, err
	}
	rc, err := e.Store.Get(ctx, a.StoragePath)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Attachment{}, nil, notFound("attachment object", a.StoragePath)
	}
	if err != nil {
		return domain.Attachment{}, nil, backend("open object", err)
	}
	return a, rc, nil
}

// AttachmentURL returns the store's public URL, empty when the store has none.
func (e Engine) AttachmentURL(ctx context.Context, id string) (string, error) {
	a, err := e.GetAttachment(ctx, id)
	if err != nil {
		return "", err
	}
	return e.Store.URL(a.StoragePath), nil
}

type ReconcileReport struct {
	RemovedRows    []string `json:"removed_rows"`
	RemovedObjects []string `json:"removed_objects"`
}

// ReconcileAttachments drops rows whose object is gone and objects with no row.
// Objects younger than the grace period are skipped so uploads in flight survive.
func (e Engine) ReconcileAttachments(ctx context.Context, actorID string) (ReconcileReport, error) {
	report := ReconcileReport{RemovedRows: []string{}, RemovedObjects: []string{}}
	if e.Store == nil {
		return report, &BackendError{Op: "reconcile attachments", Err: errors.New("no object store configured")}
	}
	rows, err := e.Repo.ListAttachments(ctx, nil, "")
	if err != nil {
		return report, backend("list attachments", err)
	}
	known := make(map[string]struct{}, len(rows))
	for _, a := range rows {
		known[a.StoragePath] = struct{}{}
		ok, err := e.Store.Exists(ctx, a.StoragePath)
		if err != nil {
			return report, backend("check object", err)
		}
		if ok {
			continue
		}
		err = e.inTx(ctx, "reconcile attachment", func(tx *sql.Tx) error {
			if err := e.Repo.DeleteAttachment(ctx, tx, a.ID); err != nil {
				return backend("delete attachment", err)
			}
			return backend("append event", e.audit().Append(ctx, tx, events.AttachmentReconciled, "attachment", a.ID, actorID, events.EventPayload{
				"path": a.StoragePath, "reason": "missing_object",
			}))
		})
		if err != nil && !errors.Is(err, ErrNotFound) {
			return report, err
		}
		report.RemovedRows = append(report.RemovedRows, a.ID)
	}

	keys, err := e.Store.List(ctx, attachmentPrefix)
	if err != nil {
		return report, backend("list objects", err)
	}
	cutoff := e.now().Add(-reconcileGraceTime).UnixMilli()
	for _, key := range keys {
		if _, ok := known[key]; ok {
			continue
		}
		if ms, ok := keyMillis(key); ok && ms > cutoff {
			continue
		}
		if err := e.Store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return report, backend("delete object", err)
		}
		report.RemovedObjects = append(report.RemovedObjects, key)
	}
	sort.Strings(report.RemovedObjects)
	if len(report.RemovedRows)+len(report.RemovedObjects) > 0 {
		e.log().WithFields(logrus.Fields{
			"rows": len(report.RemovedRows), "objects": len(report.RemovedObjects),
		}).Warn("attachments reconciled")
	}
	return report, nil
}

// keyMillis extracts the upload time encoded in an attachment key.
func keyMillis(key string) (int64, bool) {
	base := key[strings.LastIndex(key, "/")+1:]
	i := strings.Index(base, "_")
	if i <= 0 {
		return 0, false
	}
	ms, err := strconv.ParseInt(base[:i], 10, 64)
	return ms, err == nil
}
