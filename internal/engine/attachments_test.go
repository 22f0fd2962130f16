package engine_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"ideaflow/internal/domain"
	"ideaflow/internal/engine"
	"ideaflow/internal/storage"
)

const mib = 1024 * 1024

func (env testEnv) upload(idea domain.Idea, name, mime string, size int, uploader string) (domain.Attachment, error) {
	return env.Engine.UploadAttachment(env.Ctx, engine.UploadInput{
		IdeaID:      idea.ID,
		FileName:    name,
		ContentType: mime,
		Size:        int64(size),
		Body:        bytes.NewReader(bytes.Repeat([]byte("x"), size)),
		UploaderID:  uploader,
	})
}

func (env testEnv) objects(t *testing.T) []string {
	t.Helper()
	keys, err := env.Store.List(env.Ctx, "anexos/")
	if err != nil {
		t.Fatalf("list objects: %v", err)
	}
	return keys
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	_, err := env.upload(idea, "plano.pdf", "application/pdf", 12*mib, "ana")
	if !errors.Is(err, engine.ErrFileTooLarge) {
		t.Fatalf("expected file too large, got %v", err)
	}
	if keys := env.objects(t); len(keys) != 0 {
		t.Fatalf("nothing should be stored, got %v", keys)
	}
}

func TestUploadRejectsUnderstatedSize(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	_, err := env.Engine.UploadAttachment(env.Ctx, engine.UploadInput{
		IdeaID: idea.ID, FileName: "plano.pdf", ContentType: "application/pdf", Size: 10,
		Body: bytes.NewReader(bytes.Repeat([]byte("x"), 11*mib)), UploaderID: "ana",
	})
	if !errors.Is(err, engine.ErrFileTooLarge) {
		t.Fatalf("expected file too large, got %v", err)
	}
	if keys := env.objects(t); len(keys) != 0 {
		t.Fatalf("oversized body must be removed, got %v", keys)
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	_, err := env.upload(idea, "setup.exe", "application/x-msdownload", mib, "ana")
	if !errors.Is(err, engine.ErrUnsupportedType) {
		t.Fatalf("expected unsupported type, got %v", err)
	}
	items, _ := env.Engine.ListAttachments(env.Ctx, idea.ID)
	if len(items) != 0 {
		t.Fatalf("no metadata expected, got %d", len(items))
	}
}

func TestUploadStoresOneRecord(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	a, err := env.upload(idea, "Plano.PDF", "application/pdf", mib, "bia")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if a.TamanhoBytes != mib || a.TipoMime != "application/pdf" || a.NomeArquivo != "Plano.PDF" || a.UploadedBy != "bia" {
		t.Fatalf("unexpected metadata: %+v", a)
	}
	prefix := "anexos/" + idea.ID + "/"
	if !strings.HasPrefix(a.StoragePath, prefix) || !strings.HasSuffix(a.StoragePath, ".pdf") {
		t.Fatalf("unexpected path %s", a.StoragePath)
	}
	base := strings.TrimSuffix(strings.TrimPrefix(a.StoragePath, prefix), ".pdf")
	parts := strings.SplitN(base, "_", 2)
	if len(parts) != 2 || len(parts[1]) != 6 {
		t.Fatalf("path should be <millis>_<6 chars>: %s", a.StoragePath)
	}
	items, err := env.Engine.ListAttachments(env.Ctx, idea.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != a.ID {
		t.Fatalf("expected exactly one record, got %+v", items)
	}
	if keys := env.objects(t); len(keys) != 1 || keys[0] != a.StoragePath {
		t.Fatalf("expected exactly one object, got %v", keys)
	}

	_, rc, err := env.Engine.OpenAttachment(env.Ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if len(data) != mib {
		t.Fatalf("expected %d bytes, got %d", mib, len(data))
	}
}

func TestUploadUnknownIdea(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.upload(domain.Idea{ID: "missing"}, "a.txt", "text/plain", 10, "ana")
	if !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUploadRetriesPathCollision(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	env.Store.putExists = 2
	if _, err := env.upload(idea, "a.txt", "text/plain", 10, "ana"); err != nil {
		t.Fatalf("expected success on third attempt: %v", err)
	}

	env.Store.putExists = 3
	_, err := env.upload(idea, "b.txt", "text/plain", 10, "ana")
	var be *engine.BackendError
	if !errors.As(err, &be) || !errors.Is(err, storage.ErrExists) {
		t.Fatalf("expected backend error after three collisions, got %v", err)
	}
	items, _ := env.Engine.ListAttachments(env.Ctx, idea.ID)
	if len(items) != 1 {
		t.Fatalf("expected one record, got %d", len(items))
	}
}

func TestUploadRemovesBlobWhenMetadataFails(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	env.Engine.NewID = func() string { return "att-fixed" }
	if _, err := env.upload(idea, "a.txt", "text/plain", 10, "ana"); err != nil {
		t.Fatal(err)
	}
	_, err := env.upload(idea, "b.txt", "text/plain", 10, "ana")
	var be *engine.BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if keys := env.objects(t); len(keys) != 1 {
		t.Fatalf("orphan blob left behind: %v", keys)
	}
}

func TestDeleteAttachmentPermissions(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	a, err := env.upload(idea, "a.txt", "text/plain", 10, "bia")
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteAttachment(env.Ctx, a.ID, "caio"); !errors.Is(err, engine.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	// the idea's author may remove someone else's upload
	if err := env.Engine.DeleteAttachment(env.Ctx, a.ID, "ana"); err != nil {
		t.Fatalf("author delete: %v", err)
	}
	if keys := env.objects(t); len(keys) != 0 {
		t.Fatalf("object not removed: %v", keys)
	}
	if err := env.Engine.DeleteAttachment(env.Ctx, a.ID, "ana"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteAttachmentKeepsRowWhenObjectDeleteFails(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	a, err := env.upload(idea, "a.txt", "text/plain", 10, "ana")
	if err != nil {
		t.Fatal(err)
	}
	env.Store.failDelete = errors.New("bucket offline")
	err = env.Engine.DeleteAttachment(env.Ctx, a.ID, "ana")
	var be *engine.BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if _, err := env.Engine.GetAttachment(env.Ctx, a.ID); err != nil {
		t.Fatalf("row should survive a failed object delete: %v", err)
	}
	env.Store.failDelete = nil
	if err := env.Engine.DeleteAttachment(env.Ctx, a.ID, "ana"); err != nil {
		t.Fatalf("retry delete: %v", err)
	}
}

func TestReconcileAttachments(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	kept, err := env.upload(idea, "kept.txt", "text/plain", 10, "ana")
	if err != nil {
		t.Fatal(err)
	}
	dangling, err := env.upload(idea, "gone.txt", "text/plain", 10, "ana")
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Store.FSStore.Delete(env.Ctx, dangling.StoragePath); err != nil {
		t.Fatal(err)
	}
	orphan := "anexos/" + idea.ID + "/1000_orphan.txt"
	fresh := "anexos/" + idea.ID + "/" + itoa(env.Engine.Now().Add(time.Minute).UnixMilli()) + "_fresh1.txt"
	for _, k := range []string{orphan, fresh} {
		if err := env.Store.Put(context.Background(), k, strings.NewReader("x"), 1, "text/plain"); err != nil {
			t.Fatal(err)
		}
	}

	report, err := env.Engine.ReconcileAttachments(env.Ctx, "ops")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(report.RemovedRows) != 1 || report.RemovedRows[0] != dangling.ID {
		t.Fatalf("unexpected removed rows: %v", report.RemovedRows)
	}
	if len(report.RemovedObjects) != 1 || report.RemovedObjects[0] != orphan {
		t.Fatalf("unexpected removed objects: %v", report.RemovedObjects)
	}
	items, _ := env.Engine.ListAttachments(env.Ctx, idea.ID)
	if len(items) != 1 || items[0].ID != kept.ID {
		t.Fatalf("unexpected attachments after reconcile: %+v", items)
	}
	keys := env.objects(t)
	if len(keys) != 2 {
		t.Fatalf("expected kept and in-flight objects, got %v", keys)
	}
}
