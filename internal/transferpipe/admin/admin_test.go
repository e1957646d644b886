package admin

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/metrics"
)

type fixedStatus struct{}

func (fixedStatus) Cursor() uint64  { return 4200 }
func (fixedStatus) InFlight() int64 { return 3 }

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(New(":0", fixedStatus{}, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatal(err)
	}
	if h.Status != "ok" || h.Cursor != 4200 || h.InFlight != 3 {
		t.Errorf("health = %+v", h)
	}
}

func TestHealthzWithoutStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	New(":0", nil, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestMetricsExposesPipelineSeries(t *testing.T) {
	metrics.BlocksListed.Add(0)

	rec := httptest.NewRecorder()
	New(":0", nil, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "transferpipe_blocks_listed_total") {
		t.Errorf("metrics output missing pipeline counter")
	}
}

func TestUnknownRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	New(":0", nil, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New("", nil, nil).serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
