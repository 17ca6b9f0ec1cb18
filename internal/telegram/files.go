package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// FileGetter is the part of *bot.Bot used to locate uploaded files.
type FileGetter interface {
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
}

// Files downloads files users sent to the bot.
type Files struct {
	getter FileGetter
	http   *http.Client
	limit  int64
}

// NewFiles creates a downloader. Downloads are bounded by timeout and limit bytes.
func NewFiles(getter FileGetter, timeout time.Duration, limit int64) *Files {
	return &Files{
		getter: getter,
		http:   &http.Client{Timeout: timeout},
		limit:  limit,
	}
}

// Download returns the content of the file with fileID.
func (f *Files) Download(ctx context.Context, fileID string) ([]byte, error) {
	file, err := f.getter.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	if file.FileSize > f.limit {
		return nil, fmt.Errorf("file is %d bytes, limit %d", file.FileSize, f.limit)
	}
	data, err := fetch(ctx, f.http, f.getter.FileDownloadLink(file), f.limit)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	return data, nil
}
