package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greonxpert/console/pkg/retry"
	"github.com/greonxpert/console/pkg/uploads"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestValidateAccess(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/external-links/{token}/validate", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Password string }
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if chi.URLParam(r, "token") != "abc" || body.Password != "1234" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Wrong password"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"allowedCategories": []string{"Video", "Blog"}, "linkName": "Spring campaign"},
		})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := New(srv.URL)

	ac, err := c.ValidateAccess(context.Background(), "abc", "1234")
	require.NoError(t, err)
	assert.Equal(t, "Spring campaign", ac.Label)
	assert.True(t, ac.Allows("Video"))
	assert.False(t, ac.Allows("Resources"))

	_, err = c.ValidateAccess(context.Background(), "abc", "9999")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindAuthentication))
	assert.Equal(t, "Wrong password", UserMessage(err, "Invalid access code"))
}

func TestValidateAccess_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := New(srv.URL).ValidateAccess(context.Background(), "abc", "1234")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTransport))
	assert.Equal(t, "Invalid access code", UserMessage(err, "Invalid access code"))
}

func TestSubmit_Multipart(t *testing.T) {
	var got struct {
		fields map[string][]string
		file   string
		name   string
		ctype  string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		got.fields = r.MultipartForm.Value
		f, hdr, err := r.FormFile("image")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		f.Close()
		got.file = string(data)
		got.name = hdr.Filename
		got.ctype = hdr.Header.Get("Content-Type")
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "message": "Received"})
	}))
	defer srv.Close()

	sub := NewSubmission().
		Set("category", "Video").
		Set("videoUrl", "https://youtu.be/abc").
		Set("organization", "  ").
		SetList("tags", []string{"Carbon", "ESG"}).
		SetList("speakers", nil).
		Attach("image", uploads.FileFromBytes("cover.png", "image/png", []byte("PNG"))).
		Attach("authorImage", uploads.File{})

	msg, err := New(srv.URL).Submit(context.Background(), ContentSubmitPath("abc"), sub)
	require.NoError(t, err)
	assert.Equal(t, "Received", msg)

	assert.Equal(t, []string{"Video"}, got.fields["category"])
	assert.Equal(t, []string{"Carbon", "ESG"}, got.fields["tags[]"])
	assert.NotContains(t, got.fields, "organization")
	assert.NotContains(t, got.fields, "speakers[]")
	assert.Equal(t, "PNG", got.file)
	assert.Equal(t, "cover.png", got.name)
	assert.Equal(t, "image/png", got.ctype)
}

func TestSubmit_Rejected(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Video URL required"})
	}))
	defer srv.Close()

	_, err := New(srv.URL).Submit(context.Background(), "/x", NewSubmission())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindRejected))
	assert.Equal(t, "Video URL required", UserMessage(err, "Submission failed, please try again."))
	assert.EqualValues(t, 1, calls.Load(), "submissions are never retried")
}

func TestSubmit_SuccessFalseWith200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false})
	}))
	defer srv.Close()

	_, err := New(srv.URL).Submit(context.Background(), "/x", NewSubmission())
	require.Error(t, err)
	assert.Equal(t, "fallback", UserMessage(err, "fallback"))
}

func TestList_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "/stories", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []map[string]any{{"_id": "s1"}}})
	}))
	defer srv.Close()

	c := New(srv.URL, WithRetry(retry.Policy{Attempts: 3, Initial: time.Millisecond}))
	items, err := c.List(context.Background(), "stories")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "s1", items[0]["_id"])
	assert.EqualValues(t, 2, calls.Load())
}

func TestList_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Token expired"})
	}))
	defer srv.Close()

	c := New(srv.URL, WithRetry(retry.Policy{Attempts: 3, Initial: time.Millisecond}))
	_, err := c.List(context.Background(), "stories")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindAuthentication))
	assert.EqualValues(t, 1, calls.Load())
}

func TestError_String(t *testing.T) {
	e := &Error{Kind: KindRejected, Op: "submit", Status: 400, Message: "bad"}
	assert.Equal(t, "submit: rejected (400): bad", e.Error())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
