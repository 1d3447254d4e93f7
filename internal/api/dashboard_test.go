package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func getJSON(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr, decodeBody(t, rr)
}

func TestKPIsEndpoint(t *testing.T) {
	ds := testDataset()
	h := NewHandler(testConfig(t, nil), Dependencies{Dataset: ds})

	rr, body := getJSON(t, h, "/v1/kpis")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	kpis := body["kpis"].(map[string]any)
	if kpis["total_operations"] != float64(ds.Len()) {
		t.Fatalf("total_operations = %v", kpis["total_operations"])
	}
	if kpis["active_vehicles"] != float64(ds.KPIs().ActiveVehicles) {
		t.Fatalf("active_vehicles = %v", kpis["active_vehicles"])
	}
}

func TestAggregateEndpoint(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{Dataset: testDataset()})

	for name, want := range map[string]int{
		"risk":              4,
		"traffic-eta":       4,
		"order-status":      5,
		"disruption-series": 14,
		"warehouses":        5,
	} {
		rr, body := getJSON(t, h, "/v1/aggregates/"+name)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", name, rr.Code)
		}
		if data := body["data"].([]any); len(data) != want {
			t.Fatalf("%s len = %d, want %d", name, len(data), want)
		}
	}

	rr, body := getJSON(t, h, "/v1/aggregates/unknown")
	if rr.Code != http.StatusNotFound || body["error_code"] != "AGGREGATE_NOT_FOUND" {
		t.Fatalf("status = %d, body = %v", rr.Code, body)
	}
}

func TestChartEndpoint(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{Dataset: testDataset()})

	rr, body := getJSON(t, h, "/v1/charts/risk")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if body["id"] != "risk" || len(body["labels"].([]any)) != 4 {
		t.Fatalf("chart = %v", body)
	}

	rr, body = getJSON(t, h, "/v1/charts/pie")
	if rr.Code != http.StatusNotFound || body["error_code"] != "CHART_NOT_FOUND" {
		t.Fatalf("status = %d, body = %v", rr.Code, body)
	}
}

func TestOperationsEndpointFiltersAndLimits(t *testing.T) {
	ds := testDataset()
	h := NewHandler(testConfig(t, nil), Dependencies{Dataset: ds})

	rr, body := getJSON(t, h, "/v1/operations")
	if rr.Code != http.StatusOK || body["count"] != float64(50) {
		t.Fatalf("status = %d, count = %v", rr.Code, body["count"])
	}

	rr, body = getJSON(t, h, "/v1/operations?limit=5&filter=delivered")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	want := len(ds.FilterOperations("delivered", 5))
	if body["count"] != float64(want) || body["filter"] != "delivered" {
		t.Fatalf("body = %v, want count %d", body, want)
	}
	for _, raw := range body["operations"].([]any) {
		if raw.(map[string]any)["order_status"] != "Delivered" {
			t.Fatalf("unexpected operation %v", raw)
		}
	}

	for _, limit := range []string{"0", "501", "abc"} {
		rr, body = getJSON(t, h, "/v1/operations?limit="+limit)
		if rr.Code != http.StatusBadRequest || body["error_code"] != "INVALID_LIMIT" {
			t.Fatalf("limit %s: status = %d, body = %v", limit, rr.Code, body)
		}
	}
}

func TestVehicleRoutesEndpoint(t *testing.T) {
	ds := testDataset()
	vehicle := ds.RecentOperations(1)[0].VehicleID
	h := NewHandler(testConfig(t, nil), Dependencies{Dataset: ds})

	rr, body := getJSON(t, h, "/v1/vehicles/"+vehicle+"/routes")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(body["routes"].([]any)) != len(ds.VehicleRoutes(vehicle)) {
		t.Fatalf("routes = %v", body["routes"])
	}
	chart := body["risk_chart"].(map[string]any)
	if chart["kind"] != "radar" {
		t.Fatalf("risk_chart = %v", chart)
	}

	rr, body = getJSON(t, h, "/v1/vehicles/vh-999/routes")
	if rr.Code != http.StatusNotFound || body["error_code"] != "VEHICLE_NOT_FOUND" {
		t.Fatalf("status = %d, body = %v", rr.Code, body)
	}
}
