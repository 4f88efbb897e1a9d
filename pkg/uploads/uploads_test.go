package uploads

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_ReplaceReleasesPrevious(t *testing.T) {
	reg := NewPreviewRegistry("/previews/")
	m := NewAttachmentManager(reg, "image", "authorImage", "file")

	first, err := m.Stage("image", FileFromBytes("a.png", "", []byte("a")))
	require.NoError(t, err)

	second, err := m.Stage("image", FileFromBytes("b.png", "", []byte("bb")))
	require.NoError(t, err)

	created, released := reg.Stats()
	assert.Equal(t, 2, created, "exactly one new preview per stage")
	assert.Equal(t, 1, released, "exactly one previous preview released")
	assert.False(t, reg.IsLive(first.ID))
	assert.True(t, reg.IsLive(second.ID))
	assert.Equal(t, "/previews/"+second.ID, second.URL)

	slot, ok := m.Get("image")
	require.True(t, ok)
	assert.Equal(t, "b.png", slot.File.Name)
}

func TestClear_ReleasesOnce(t *testing.T) {
	reg := NewPreviewRegistry("")
	m := NewAttachmentManager(reg, "image")

	p, err := m.Stage("image", FileFromBytes("a.png", "image/png", []byte("a")))
	require.NoError(t, err)

	require.NoError(t, m.Clear("image"))
	require.NoError(t, m.Clear("image"), "clearing an empty slot is a no-op")

	assert.ErrorIs(t, reg.Release(p.ID), ErrPreviewReleased)
	_, released := reg.Stats()
	assert.Equal(t, 1, released)
	assert.Zero(t, reg.Live())
}

func TestClose_ReleasesEverything(t *testing.T) {
	reg := NewPreviewRegistry("")
	m := NewAttachmentManager(reg, "image", "authorImage", "file")

	for _, slot := range []string{"image", "file"} {
		_, err := m.Stage(slot, FileFromBytes(slot+".bin", "", []byte(slot)))
		require.NoError(t, err)
	}
	require.Equal(t, 2, reg.Live())

	require.NoError(t, m.Close())
	assert.Zero(t, reg.Live())
	assert.Empty(t, m.Slots())
}

func TestStage_Errors(t *testing.T) {
	m := NewAttachmentManager(nil, "image")

	_, err := m.Stage("banner", FileFromBytes("x", "", nil))
	assert.ErrorIs(t, err, ErrUnknownSlot)

	_, err = m.Stage("image", File{})
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestSlots_DeclarationOrder(t *testing.T) {
	m := NewAttachmentManager(nil, "image", "authorImage", "file")
	_, _ = m.Stage("file", FileFromBytes("r.pdf", "", []byte("%PDF")))
	_, _ = m.Stage("image", FileFromBytes("i.png", "", []byte("png")))

	slots := m.Slots()
	require.Len(t, slots, 2)
	assert.Equal(t, "image", slots[0].Name)
	assert.Equal(t, "file", slots[1].Name)
}

func TestRegistry_ReleaseUnknown(t *testing.T) {
	reg := NewPreviewRegistry("")
	assert.ErrorIs(t, reg.Release("nope"), ErrPreviewUnknown)
}

func TestRegistry_ServeHTTP(t *testing.T) {
	reg := NewPreviewRegistry("/previews")
	p := reg.Create(FileFromBytes("photo.png", "image/png", []byte("PNGDATA")))

	srv := httptest.NewServer(http.StripPrefix("/previews", reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + p.URL)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "PNGDATA", string(body))

	require.NoError(t, reg.Release(p.ID))

	resp, err = http.Get(srv.URL + p.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFileFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7 fake"), 0o600))

	f, err := FileFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", f.Name)
	assert.Equal(t, "application/pdf", f.ContentType)
	assert.EqualValues(t, 13, f.Size)

	rc, err := f.Open()
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "%PDF-1.7 fake", string(data))

	_, err = FileFromPath(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestFileFromBytes_LongNames(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		wantExt string
	}{
		{"long base", strings.Repeat("r", 300) + ".pdf", ".pdf"},
		{"long extension", "report." + strings.Repeat("x", 300), "." + strings.Repeat("x", 15)},
		{"multibyte", strings.Repeat("é", 200) + ".png", ".png"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var f File
			require.NotPanics(t, func() { f = FileFromBytes(tc.in, "", []byte("x")) })
			assert.LessOrEqual(t, len(f.Name), 255)
			assert.True(t, strings.HasSuffix(f.Name, tc.wantExt), f.Name)
			assert.True(t, utf8.ValidString(f.Name))
		})
	}
}
