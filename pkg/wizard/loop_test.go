package wizard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/greonxpert/console/pkg/api"
	"github.com/greonxpert/console/pkg/core"
	"github.com/greonxpert/console/pkg/uploads"
)

// backendServer fakes the REST API. Submissions fail until accept is set.
func backendServer(t *testing.T, accept *atomic.Bool, submits *atomic.Int32) *httptest.Server {
	t.Helper()
	reply := func(w http.ResponseWriter, status int, body map[string]any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}

	r := chi.NewRouter()
	r.Post("/external-links/{token}/validate", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Password string `json:"password"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "1234" {
			reply(w, http.StatusUnauthorized, map[string]any{"success": false})
			return
		}
		reply(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{}})
	})
	r.Post("/external-links/{token}/submit", func(w http.ResponseWriter, r *http.Request) {
		submits.Add(1)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			reply(w, http.StatusBadRequest, map[string]any{"success": false, "message": err.Error()})
			return
		}
		if !accept.Load() {
			reply(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Video URL required"})
			return
		}
		reply(w, http.StatusCreated, map[string]any{"success": true})
	})
	return httptest.NewServer(r)
}

func TestContentWizard_OverLoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))

	var accept atomic.Bool
	var submits atomic.Int32
	srv := backendServer(t, &accept, &submits)
	defer srv.Close()

	client := api.New(srv.URL)
	defer client.CloseIdleConnections()

	reg := uploads.NewPreviewRegistry("/previews/")
	w := NewContentWizard(client, reg)
	loop := core.NewLoop(w)
	ctx := context.Background()
	require.NoError(t, loop.Start(ctx, core.Params{"token": "abc"}, nil))

	state := func(fn func()) {
		require.NoError(t, loop.Call(ctx, func(context.Context) error { fn(); return nil }))
	}
	waitFor := func(cond func() bool) {
		require.Eventually(t, func() bool {
			var ok bool
			state(func() { ok = cond() })
			return ok
		}, 2*time.Second, 5*time.Millisecond)
	}

	require.NoError(t, loop.Send(ctx, EventPaste, map[string]any{"value": "1234"}))
	waitFor(func() bool { return w.Gate().Authenticated() })

	steps := []struct {
		event   string
		payload map[string]any
	}{
		{EventSelectCategory, map[string]any{"value": "Video"}},
		{EventNext, nil},
		{EventField, map[string]any{"name": "title", "value": "Net zero"}},
		{EventField, map[string]any{"name": "description", "value": "Talk"}},
		{EventField, map[string]any{"name": "videoUrl", "value": "https://youtu.be/nz"}},
		{EventNext, nil},
		{EventField, map[string]any{"name": "authorName", "value": "Ana"}},
		{EventField, map[string]any{"name": "email", "value": "ana@greon.io"}},
		{EventStage, map[string]any{"slot": SlotImage, "file": uploads.FileFromBytes("c.png", "", []byte("png"))}},
		{EventSubmit, nil},
	}
	for _, s := range steps {
		require.NoError(t, loop.Send(ctx, s.event, s.payload))
	}

	waitFor(func() bool { return !w.Busy() })
	state(func() {
		assert.Equal(t, StepFinal, w.Machine().Current())
		assert.Equal(t, "Net zero", w.Form().Get("title"))
	})
	f, ok := loop.Flashes().Last(core.FlashError)
	require.True(t, ok)
	assert.Equal(t, "Video URL required", f.Message)

	accept.Store(true)
	require.NoError(t, loop.Send(ctx, EventSubmit, nil))
	waitFor(func() bool { return w.Machine().Done() })
	state(func() {
		assert.Contains(t, w.Confirmation(), "ana@greon.io")
	})
	assert.EqualValues(t, 2, submits.Load())

	require.NoError(t, loop.Stop(core.TerminateNormal))
	assert.Zero(t, reg.Live())
}
