package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/", "/"},
		{"", "/"},
		{"/health", "/health"},
		{"/api/chores/3f8a3c52-5f0e-4a57-9a5e-6f3b1d1d2a10/complete", "/api/chores/:id/complete"},
		{"/api/spaces/42/points", "/api/spaces/:id/points"},
		{"/api/penalties/settings", "/api/penalties/settings"},
	}
	for _, tt := range tests {
		if got := canonicalPath(tt.in); got != tt.want {
			t.Errorf("canonicalPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInstrumentHandlerCountsRequests(t *testing.T) {
	h := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/brew", "418"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/brew", nil))
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/brew", "418"))

	if after-before != 1 {
		t.Errorf("requests counter delta = %v, want 1", after-before)
	}
}

func TestRecordPenaltyApplied(t *testing.T) {
	before := testutil.ToFloat64(penaltyPoints.WithLabelValues("applied"))
	RecordPenaltyApplied(7)
	after := testutil.ToFloat64(penaltyPoints.WithLabelValues("applied"))
	if after-before != 7 {
		t.Errorf("penalty points delta = %v, want 7", after-before)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordCompletion("completed")
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "hearth_completion_requests_total") {
		t.Error("expected completion counter in exposition output")
	}
}
