package research

import (
	"context"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"google.golang.org/genai"

	"geminilab/internal/adapters/gemini"
	"geminilab/pkg/errors"
	"geminilab/pkg/logger"
)

// DefaultPollInterval is how often WaitForProcessing checks the file state
const DefaultPollInterval = 2 * time.Second

// FileProcessor uploads media for analysis and waits until the API can use it
type FileProcessor struct {
	files    gemini.FileService
	interval time.Duration
	log      *logger.Logger
}

// NewFileProcessor creates a processor; a zero interval means DefaultPollInterval
func NewFileProcessor(files gemini.FileService, interval time.Duration) *FileProcessor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &FileProcessor{
		files:    files,
		interval: interval,
		log:      logger.Get().Named("research.files"),
	}
}

// Upload sends the file at path; a missing file is ErrNotFound
func (p *FileProcessor) Upload(ctx context.Context, path string) (*genai.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrNotFound, "file not found: %s", path)
		}
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	if info.IsDir() {
		return nil, errors.NewValidationError("path", "is a directory", path)
	}

	mimeType := DetectMIME(path)
	p.log.Infow("Uploading file", "path", path, "mime_type", mimeType, "size", info.Size())

	file, err := p.files.Upload(ctx, path, mimeType)
	if err != nil {
		return nil, err
	}
	p.log.Infow("Uploaded file", "name", file.Name)
	return file, nil
}

// WaitForProcessing polls until the file is ACTIVE. A FAILED file is
// ErrFileProcessing.
func (p *FileProcessor) WaitForProcessing(ctx context.Context, name string) (*genai.File, error) {
	p.log.Infow("Waiting for file to be processed", "name", name)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		file, err := p.files.Get(ctx, name)
		if err != nil {
			return nil, err
		}

		switch file.State {
		case genai.FileStateActive:
			p.log.Infow("File is active", "name", name)
			return file, nil
		case genai.FileStateFailed:
			return nil, errors.Wrapf(errors.ErrFileProcessing, "file %s failed to process", name)
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "waiting for file %s", name)
		case <-ticker.C:
		}
	}
}

// Delete removes an uploaded file. Failures are logged, not returned.
func (p *FileProcessor) Delete(ctx context.Context, name string) {
	if err := p.files.Delete(ctx, name); err != nil {
		p.log.Warnw("Error deleting file", "name", name, "error", err)
		return
	}
	p.log.Infow("Deleted file", "name", name)
}

// ProcessAudio uploads an audio file as-is and waits until it is usable
func (p *FileProcessor) ProcessAudio(ctx context.Context, path string) (*genai.File, error) {
	file, err := p.Upload(ctx, path)
	if err != nil {
		return nil, errors.Wrap(err, "upload audio")
	}
	return p.WaitForProcessing(ctx, file.Name)
}

// DetectMIME sniffs the file content and falls back to the extension
func DetectMIME(path string) string {
	if m, err := mimetype.DetectFile(path); err == nil && !m.Is("application/octet-stream") {
		mt, _, perr := mime.ParseMediaType(m.String())
		if perr == nil {
			return mt
		}
		return m.String()
	}
	if mt := mime.TypeByExtension(filepath.Ext(path)); mt != "" {
		mt, _, _ = mime.ParseMediaType(mt)
		return mt
	}
	return "application/octet-stream"
}
