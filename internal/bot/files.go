package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/m3rciful/appealbot/internal/relay"

	tele "gopkg.in/telebot.v4"
)

// FileAPI is the part of *tele.Bot used to download files.
type FileAPI interface {
	FileByID(fileID string) (tele.File, error)
	File(file *tele.File) (io.ReadCloser, error)
}

// Files opens Telegram files for the relay server.
type Files struct {
	api FileAPI
}

var _ relay.FileSource = Files{}

// NewFiles wraps api.
func NewFiles(api FileAPI) Files {
	return Files{api: api}
}

// Open downloads fileID. The name is the base of the Telegram file path, so
// voice notes keep their extension.
func (f Files) Open(_ context.Context, fileID string) (io.ReadCloser, string, error) {
	file, err := f.api.FileByID(fileID)
	if err != nil {
		if isMissingFile(err) {
			return nil, "", fmt.Errorf("%w: %v", relay.ErrFileUnavailable, err)
		}
		return nil, "", fmt.Errorf("file info: %w", err)
	}
	rc, err := f.api.File(&file)
	if err != nil {
		if isMissingFile(err) {
			return nil, "", fmt.Errorf("%w: %v", relay.ErrFileUnavailable, err)
		}
		return nil, "", fmt.Errorf("file download: %w", err)
	}
	var name string
	if file.FilePath != "" {
		name = path.Base(file.FilePath)
	}
	return rc, name, nil
}

func isMissingFile(err error) bool {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) && (apiErr.Code == 400 || apiErr.Code == 404) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "file not found") || strings.Contains(msg, "wrong file_id") || strings.Contains(msg, "invalid file_id")
}
