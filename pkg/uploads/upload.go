// Package uploads stages local files for submission and hands out
// revocable preview references for them.
package uploads

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Common errors.
var (
	ErrUnknownSlot     = errors.New("unknown attachment slot")
	ErrEmptyFile       = errors.New("no file selected")
	ErrPreviewUnknown  = errors.New("preview reference was never issued")
	ErrPreviewReleased = errors.New("preview reference already released")
)

// File is a handle to a staged local file. The session owns it exclusively;
// contents are read only when the submission is encoded or a preview is served.
type File struct {
	Name        string
	ContentType string
	Size        int64

	open func() (io.ReadCloser, error)
}

// Open returns a fresh reader over the file contents.
func (f File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, ErrEmptyFile
	}
	return f.open()
}

// IsZero reports whether f holds no file.
func (f File) IsZero() bool {
	return f.open == nil
}

// FileFromBytes wraps in-memory content.
func FileFromBytes(name, contentType string, data []byte) File {
	if contentType == "" {
		contentType = detectContentType(name, data)
	}
	return File{
		Name:        sanitizeFilename(name),
		ContentType: contentType,
		Size:        int64(len(data)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FileFromPath stages a file on disk. The file is stat'ed now and opened
// again each time its contents are needed.
func FileFromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stage %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("stage %s: is a directory", path)
	}

	head := make([]byte, 512)
	fh, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("stage %s: %w", path, err)
	}
	n, _ := io.ReadFull(fh, head)
	fh.Close()

	return File{
		Name:        sanitizeFilename(path),
		ContentType: detectContentType(path, head[:n]),
		Size:        info.Size(),
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

func detectContentType(name string, head []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return http.DetectContentType(head)
}

// Name length limits, in bytes.
const (
	maxFilename = 255
	maxExt      = 16
)

func sanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	filename = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '\x00' {
			return '_'
		}
		return r
	}, filename)

	if len(filename) > maxFilename {
		ext := filepath.Ext(filename)
		if len(ext) > maxExt {
			ext = ext[:maxExt]
		}
		filename = strings.ToValidUTF8(filename[:maxFilename-len(ext)], "") + strings.ToValidUTF8(ext, "")
	}
	return filename
}
