package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"

	"contentops/internal/models"
)

// Tasks fetches the server's whole task map. Each task gets its map key as ID.
func (c *Client) Tasks(ctx context.Context) (map[string]models.Task, error) {
	tasks := make(map[string]models.Task)
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/tasks"}, &tasks); err != nil {
		return nil, fmt.Errorf("fetch tasks: %w", err)
	}
	for id, t := range tasks {
		t.ID = id
		tasks[id] = t
	}
	return tasks, nil
}

// EnqueuePublish starts a publish job for the row at index of sheet.
func (c *Client) EnqueuePublish(ctx context.Context, sheet string, index int) (*models.EnqueueResponse, error) {
	payload := map[string]any{"sheet_name": sheet, "index": index}
	var resp models.EnqueueResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v2/post/publish", payload, &resp); err != nil {
		return nil, fmt.Errorf("enqueue publish: %w", err)
	}
	if resp.TaskID == "" {
		return nil, errors.New("enqueue publish: server returned no task id")
	}
	return &resp, nil
}

// UploadRequest mirrors the upload form: files go to <FolderName>-video or
// <FolderName>-image under ParentID depending on their content type.
type UploadRequest struct {
	ParentID   string
	SheetID    string
	FolderName string
	Topic      string
	Thumbnail  string
	Files      []string
}

// EnqueueUpload posts the files as multipart form data.
func (c *Client) EnqueueUpload(ctx context.Context, req UploadRequest) (*models.EnqueueResponse, error) {
	if len(req.Files) == 0 {
		return nil, errors.New("enqueue upload: no files")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"parentId":   req.ParentID,
		"sheetId":    req.SheetID,
		"folderName": req.FolderName,
		"topic":      req.Topic,
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if req.Thumbnail != "" {
		if err := attachFile(w, "thumbnail", req.Thumbnail); err != nil {
			return nil, err
		}
	}
	for _, path := range req.Files {
		if err := attachFile(w, "files", path); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	var resp models.EnqueueResponse
	err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/api/upload",
		body:        &buf,
		contentType: w.FormDataContentType(),
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("enqueue upload: %w", err)
	}
	if resp.TaskID == "" {
		return nil, errors.New("enqueue upload: server returned no task id")
	}
	return &resp, nil
}

func attachFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek %s: %w", path, err)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filepath.Base(path)))
	h.Set("Content-Type", http.DetectContentType(head[:n]))
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create part %s: %w", path, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy %s: %w", path, err)
	}
	return nil
}
