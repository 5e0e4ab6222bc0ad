package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHandlerServesBuildInfo(t *testing.T) {
	m := New("test-version", "go1.23")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "agentmesh_build_info") {
		t.Error("expected agentmesh_build_info in metrics output")
	}
	if !strings.Contains(body, `version="test-version"`) {
		t.Error("expected version label in metrics output")
	}
}

func TestIsolatedRegistriesDoNotCollide(t *testing.T) {
	m1 := New("v1", "go1.23")
	m2 := New("v2", "go1.23")

	m1.ConnectedPeers.Set(3)
	m2.ConnectedPeers.Set(7)

	if v := testutil.ToFloat64(m1.ConnectedPeers); v != 3 {
		t.Errorf("m1 ConnectedPeers = %v", v)
	}
	if v := testutil.ToFloat64(m2.ConnectedPeers); v != 7 {
		t.Errorf("m2 ConnectedPeers = %v", v)
	}
}
