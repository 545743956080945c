package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetrics_nil_receiver_is_noop(t *testing.T) {
	var m *Metrics
	m.IncRequests()
	m.IncSelection("started")
	m.ObserveDownload("delivered", time.Second)
	m.SetSessions(map[string]int{"downloading": 1})
}

func TestMetrics_Handler_exposes_domain_series(t *testing.T) {
	m := New()
	m.IncSessionsCreated()
	m.IncSelection("started")
	m.ObserveDownload("delivered", 3*time.Second)
	m.AddBytesDelivered(1024)

	refreshed := false
	srv := httptest.NewServer(m.Handler(func() {
		refreshed = true
		m.SetActiveDownloads(2)
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	out := string(body)

	if !refreshed {
		t.Error("expected updateGauges to run before scrape")
	}
	for _, want := range []string{
		"tube_courier_sessions_created_total 1",
		`tube_courier_selections_total{code="started"} 1`,
		`tube_courier_downloads_finished_total{outcome="delivered"} 1`,
		"tube_courier_bytes_delivered_total 1024",
		"tube_courier_active_downloads 2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in exposition", want)
		}
	}
}

func TestRequestMiddleware_counts_errors(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	rec := httptest.NewRecorder()
	m.Handler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "tube_courier_http_errors_total 1") {
		t.Errorf("expected one error counted:\n%s", rec.Body.String())
	}
}
