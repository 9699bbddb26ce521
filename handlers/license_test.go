package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tradelic.app/cloud/internal/config"
	"tradelic.app/cloud/internal/testutil"
	"tradelic.app/cloud/models"
	"tradelic.app/cloud/storage"
)

const testAPIKey = "test-api-key"

func newTestServer(store storage.Storage) *Server {
	return NewServer(store, &config.Config{
		Port:            "8080",
		APIKey:          testAPIKey,
		KeyPrefix:       "TLIC",
		RateLimitMax:    1000,
		RateLimitWindow: time.Minute,
	})
}

func adminRequest(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v\n%s", err, w.Body.String())
	}
	return body
}

func TestRequireAPIKey(t *testing.T) {
	server := newTestServer(testutil.SeedStorage(t))

	// No key at all.
	req := httptest.NewRequest(http.MethodGet, "/api/licenses", nil)
	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", w.Code)
	}

	// Wrong key.
	req = httptest.NewRequest(http.MethodGet, "/api/licenses", nil)
	req.Header.Set("X-API-Key", "wrong")
	w = httptest.NewRecorder()
	server.Router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong key, got %d", w.Code)
	}

	// Bearer token form.
	req = httptest.NewRequest(http.MethodGet, "/api/licenses", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	w = httptest.NewRecorder()
	server.Router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with bearer token, got %d", w.Code)
	}
}

func TestListLicenses(t *testing.T) {
	active := testutil.RawLicense("TLIC-XX-HANDLE01")
	created := testutil.CreatedLicense("TLIC-XX-HANDLE02")
	server := newTestServer(testutil.SeedStorage(t, active, created))

	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, adminRequest(http.MethodGet, "/api/licenses", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	body := decodeBody(t, w)
	if body["success"] != true {
		t.Error("Expected success")
	}
	if body["count"] != float64(2) {
		t.Errorf("Expected count 2, got %v", body["count"])
	}

	licenses := body["licenses"].([]any)
	first := licenses[0].(map[string]any)
	// Derived fields are always present in the listing.
	if _, ok := first["days_left"]; !ok {
		t.Error("Expected derived days_left in response")
	}
	if _, ok := first["urgency"]; !ok {
		t.Error("Expected derived urgency in response")
	}

	// Status filter narrows the listing.
	w = httptest.NewRecorder()
	server.Router.ServeHTTP(w, adminRequest(http.MethodGet, "/api/licenses?status=created", nil))
	body = decodeBody(t, w)
	if body["count"] != float64(1) {
		t.Errorf("Expected count 1 for created filter, got %v", body["count"])
	}
}

func TestGetLicense(t *testing.T) {
	server := newTestServer(testutil.SeedStorage(t, testutil.RawLicense("TLIC-XX-HANDLE03")))

	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, adminRequest(http.MethodGet, "/api/licenses/TLIC-XX-HANDLE03", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	body := decodeBody(t, w)
	lic := body["license"].(map[string]any)
	if lic["license_key"] != "TLIC-XX-HANDLE03" {
		t.Errorf("Expected key in payload, got %v", lic["license_key"])
	}

	w = httptest.NewRecorder()
	server.Router.ServeHTTP(w, adminRequest(http.MethodGet, "/api/licenses/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
	if decodeBody(t, w)["error"] != "LICENSE_NOT_FOUND" {
		t.Error("Expected LICENSE_NOT_FOUND code")
	}
}

func TestCreateLicense(t *testing.T) {
	store := testutil.SeedStorage(t)
	server := newTestServer(store)

	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, adminRequest(http.MethodPost, "/api/licenses", models.CreateLicenseRequest{
		ClientName: "Alice",
		RobotName:  "ScalperPro",
		Months:     6,
	}))
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	key, _ := body["license_key"].(string)
	if key == "" {
		t.Fatal("Expected a generated license key")
	}

	stored := store.Licenses[key]
	if stored.Status != models.StatusCreated {
		t.Errorf("Expected created status, got '%s'", stored.Status)
	}
	if stored.Months != 6 {
		t.Errorf("Expected 6 months, got %d", stored.Months)
	}
	if len(store.Events) != 1 || store.Events[0].Type != models.EventLicenseCreated {
		t.Errorf("Expected a creation event, got %v", store.Events)
	}

	// Missing client name is rejected.
	w = httptest.NewRecorder()
	server.Router.ServeHTTP(w, adminRequest(http.MethodPost, "/api/licenses", models.CreateLicenseRequest{}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty client name, got %d", w.Code)
	}
}

func TestUpdateLicense(t *testing.T) {
	store := testutil.SeedStorage(t, testutil.RawLicense("TLIC-XX-HANDLE04"))
	server := newTestServer(store)

	newName := "Renamed Client"
	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, adminRequest(http.MethodPut, "/api/licenses/TLIC-XX-HANDLE04",
		models.UpdateLicenseRequest{ClientName: &newName}))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if store.Licenses["TLIC-XX-HANDLE04"].ClientName != "Renamed Client" {
		t.Error("Expected name to be updated")
	}

	w = httptest.NewRecorder()
	server.Router.ServeHTTP(w, adminRequest(http.MethodPut, "/api/licenses/missing",
		models.UpdateLicenseRequest{ClientName: &newName}))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestExtendLicense(t *testing.T) {
	expired := testutil.RawLicense("TLIC-XX-HANDLE05")
	expired.Status = models.StatusExpired
	expired.ExpiryDate = models.FormatDate(time.Now().AddDate(0, 0, -10))
	store := testutil.SeedStorage(t, expired)
	server := newTestServer(store)

	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, adminRequest(http.MethodPost, "/api/licenses/TLIC-XX-HANDLE05/extend",
		models.ExtendLicenseRequest{Months: 2}))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	stored := store.Licenses["TLIC-XX-HANDLE05"]
	// Extending an expired license reactivates it, counting from today.
	if stored.Status != models.StatusActive {
		t.Errorf("Expected reactivated status, got '%s'", stored.Status)
	}
	lic := models.NewLicense(stored, time.Now())
	if lic.DaysLeft < 50 || lic.DaysLeft > 62 {
		t.Errorf("Expected roughly two months left, got %d", lic.DaysLeft)
	}

	// Zero months is rejected.
	w = httptest.NewRecorder()
	server.Router.ServeHTTP(w, adminRequest(http.MethodPost, "/api/licenses/TLIC-XX-HANDLE05/extend",
		models.ExtendLicenseRequest{Months: 0}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for zero months, got %d", w.Code)
	}
}

func TestBlockUnblockLicense(t *testing.T) {
	store := testutil.SeedStorage(t, testutil.RawLicense("TLIC-XX-HANDLE06"))
	server := newTestServer(store)

	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, adminRequest(http.MethodPost, "/api/licenses/TLIC-XX-HANDLE06/block",
		models.BlockLicenseRequest{Blocked: true}))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if store.Licenses["TLIC-XX-HANDLE06"].Status != models.StatusBlocked {
		t.Error("Expected blocked status")
	}

	w = httptest.NewRecorder()
	server.Router.ServeHTTP(w, adminRequest(http.MethodPost, "/api/licenses/TLIC-XX-HANDLE06/block",
		models.BlockLicenseRequest{Blocked: false}))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if store.Licenses["TLIC-XX-HANDLE06"].Status != models.StatusActive {
		t.Error("Expected active status after unblock")
	}

	if len(store.Events) != 2 {
		t.Errorf("Expected block and unblock events, got %v", store.Events)
	}
}

func TestDeleteLicense(t *testing.T) {
	store := testutil.SeedStorage(t, testutil.RawLicense("TLIC-XX-HANDLE07"))
	server := newTestServer(store)

	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, adminRequest(http.MethodDelete, "/api/licenses/TLIC-XX-HANDLE07", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if len(store.Licenses) != 0 {
		t.Error("Expected license gone")
	}

	w = httptest.NewRecorder()
	server.Router.ServeHTTP(w, adminRequest(http.MethodDelete, "/api/licenses/TLIC-XX-HANDLE07", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on second delete, got %d", w.Code)
	}
}

func TestStatisticsEndpoint(t *testing.T) {
	server := newTestServer(testutil.SeedStorage(t,
		testutil.RawLicense("TLIC-XX-HANDLE08"),
		testutil.CreatedLicense("TLIC-XX-HANDLE09")))

	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, adminRequest(http.MethodGet, "/api/statistics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	body := decodeBody(t, w)
	stats := body["statistics"].(map[string]any)
	if stats["total"] != float64(2) {
		t.Errorf("Expected total 2, got %v", stats["total"])
	}
	if _, ok := stats["health_score"]; !ok {
		t.Error("Expected health score in statistics")
	}
}

func TestHealth(t *testing.T) {
	server := newTestServer(testutil.SeedStorage(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if decodeBody(t, w)["status"] != "healthy" {
		t.Error("Expected healthy status")
	}
}
