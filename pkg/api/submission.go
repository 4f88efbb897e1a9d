package api

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strings"

	"github.com/greonxpert/console/pkg/uploads"
)

// Attachment is a named file part of a submission.
type Attachment struct {
	Field string
	File  uploads.File
}

// Submission is the aggregate payload sent by a wizard: scalar fields,
// list fields and file parts.
type Submission struct {
	Fields map[string]string
	Lists  map[string][]string
	Files  []Attachment
}

// NewSubmission returns an empty payload.
func NewSubmission() *Submission {
	return &Submission{
		Fields: make(map[string]string),
		Lists:  make(map[string][]string),
	}
}

// Set stores a scalar field. Blank values are skipped.
func (s *Submission) Set(field, value string) *Submission {
	if strings.TrimSpace(value) == "" {
		return s
	}
	s.Fields[field] = value
	return s
}

// SetList stores a list field. Empty lists are skipped.
func (s *Submission) SetList(field string, values []string) *Submission {
	if len(values) == 0 {
		return s
	}
	s.Lists[field] = append([]string(nil), values...)
	return s
}

// Attach adds a file part.
func (s *Submission) Attach(field string, f uploads.File) *Submission {
	if f.IsZero() {
		return s
	}
	s.Files = append(s.Files, Attachment{Field: field, File: f})
	return s
}

// Encode writes the multipart body. Scalars come first in key order, then
// lists as repeated "name[]" entries, then files. It returns the content
// type including the boundary.
func (s *Submission) Encode(w io.Writer) (string, error) {
	mw := multipart.NewWriter(w)

	for _, k := range sortedKeys(s.Fields) {
		if err := mw.WriteField(k, s.Fields[k]); err != nil {
			return "", err
		}
	}
	for _, k := range sortedKeys(s.Lists) {
		for _, v := range s.Lists[k] {
			if err := mw.WriteField(k+"[]", v); err != nil {
				return "", err
			}
		}
	}
	for _, a := range s.Files {
		if err := writeFile(mw, a); err != nil {
			return "", fmt.Errorf("attach %s: %w", a.Field, err)
		}
	}

	if err := mw.Close(); err != nil {
		return "", err
	}
	return mw.FormDataContentType(), nil
}

func writeFile(mw *multipart.Writer, a Attachment) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, a.Field, a.File.Name))
	ct := a.File.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	rc, err := a.File.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(part, rc)
	return err
}

func (s *Submission) body() (*bytes.Buffer, string, error) {
	buf := new(bytes.Buffer)
	ct, err := s.Encode(buf)
	return buf, ct, err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
