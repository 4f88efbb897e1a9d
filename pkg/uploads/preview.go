package uploads

import (
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Preview is a revocable reference used to display a staged file before it
// is uploaded. It must be released exactly once.
type Preview struct {
	ID  string
	URL string
}

// IsZero reports whether p is the empty reference.
func (p Preview) IsZero() bool { return p.ID == "" }

// PreviewRegistry issues preview references and serves their content while
// they are live.
type PreviewRegistry struct {
	base     string
	live     map[string]File
	released map[string]struct{}
	created  int
	mu       sync.RWMutex
}

// NewPreviewRegistry creates a registry whose URLs start with baseURL.
func NewPreviewRegistry(baseURL string) *PreviewRegistry {
	if baseURL == "" {
		baseURL = "/previews/"
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &PreviewRegistry{
		base:     baseURL,
		live:     make(map[string]File),
		released: make(map[string]struct{}),
	}
}

// Create issues a new reference for f.
func (r *PreviewRegistry) Create(f File) Preview {
	id := uuid.NewString()

	r.mu.Lock()
	r.live[id] = f
	r.created++
	r.mu.Unlock()

	return Preview{ID: id, URL: r.base + id}
}

// Release revokes a reference. Releasing twice, or releasing an id that was
// never issued, is reported as an error and changes nothing.
func (r *PreviewRegistry) Release(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.live[id]; ok {
		delete(r.live, id)
		r.released[id] = struct{}{}
		return nil
	}
	if _, ok := r.released[id]; ok {
		return ErrPreviewReleased
	}
	return ErrPreviewUnknown
}

// IsLive reports whether id is currently valid.
func (r *PreviewRegistry) IsLive(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.live[id]
	return ok
}

// Live returns the number of unreleased references.
func (r *PreviewRegistry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.live)
}

// Stats returns how many references were created and released in total.
func (r *PreviewRegistry) Stats() (created, released int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.created, len(r.released)
}

// ServeHTTP serves the file behind a live reference; the id is the last
// path segment. Released or unknown ids yield 404.
func (r *PreviewRegistry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := path.Base(req.URL.Path)

	r.mu.RLock()
	f, ok := r.live[id]
	r.mu.RUnlock()
	if !ok {
		http.NotFound(w, req)
		return
	}

	rc, err := f.Open()
	if err != nil {
		http.Error(w, "preview unavailable", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	w.Header().Set("Cache-Control", "no-store")
	if req.Method == http.MethodHead {
		return
	}
	io.Copy(w, rc)
}
