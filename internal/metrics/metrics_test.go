//go:build unit

package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentHandler_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/{slug}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/{slug}", "418"))
	for _, p := range []string{"/a", "/b"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, p, nil))
		require.Equal(t, http.StatusTeapot, rr.Code)
	}
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/{slug}", "418"))
	assert.Equal(t, before+2, after)
}

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(pageSaves.WithLabelValues("save", "error"))
	RecordPageSave("save", errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(pageSaves.WithLabelValues("save", "error")))

	before = testutil.ToFloat64(blocksRendered.WithLabelValues("unknown", "skipped"))
	RecordBlockRender("", "skipped")
	assert.Equal(t, before+1, testutil.ToFloat64(blocksRendered.WithLabelValues("unknown", "skipped")))

	RecordCacheLookup(true)
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(rr.Body.String(), "storefront_cache_lookups_total"))
}
