package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
)

func TestClientCreateRecordSuccess(t *testing.T) {
	t.Parallel()

	var gotBody recordsRequest
	var gotPath, gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")

		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"records":[{"id":"recABC123","fields":{}}]}`))
	}))
	defer server.Close()

	c, err := NewClient(server.URL+"/v0", "pat-secret", "appBase", "Outbound Shipments")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	recordID, err := c.CreateRecord(context.Background(), Fields{"Tracking number": "9400"})
	if err != nil {
		t.Fatalf("CreateRecord() unexpected error: %v", err)
	}
	if recordID != "recABC123" {
		t.Fatalf("recordID = %q, want recABC123", recordID)
	}

	if gotPath != "/v0/appBase/Outbound%20Shipments" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer pat-secret" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if len(gotBody.Records) != 1 || gotBody.Records[0].Fields["Tracking number"] != "9400" {
		t.Fatalf("request body = %+v", gotBody)
	}
	if !gotBody.Typecast {
		t.Fatal("typecast should be enabled")
	}
}

func TestClientCreateRecordStatusClassification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		statusCode    int
		wantTransient bool
	}{
		{name: "too many requests is transient", statusCode: http.StatusTooManyRequests, wantTransient: true},
		{name: "unprocessable entity is permanent", statusCode: http.StatusUnprocessableEntity, wantTransient: false},
		{name: "unauthorized is permanent", statusCode: http.StatusUnauthorized, wantTransient: false},
		{name: "service unavailable is transient", statusCode: http.StatusServiceUnavailable, wantTransient: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.statusCode)
				_, _ = w.Write([]byte(`{"error":{"type":"INVALID_VALUE_FOR_COLUMN","message":"bad cell"}}`))
			}))
			defer server.Close()

			c, err := NewClient(server.URL, "pat", "appBase", "Shipments")
			if err != nil {
				t.Fatalf("NewClient() error = %v", err)
			}

			_, err = c.CreateRecord(context.Background(), Fields{"Name": "x"})
			if err == nil {
				t.Fatal("expected error")
			}

			if got := IsTransient(err); got != tc.wantTransient {
				t.Fatalf("IsTransient() = %v, want %v", got, tc.wantTransient)
			}

			var requestErr *RequestError
			if !errors.As(err, &requestErr) {
				t.Fatalf("expected RequestError, got %T", err)
			}
			if requestErr.StatusCode != tc.statusCode {
				t.Fatalf("RequestError.StatusCode = %d, want %d", requestErr.StatusCode, tc.statusCode)
			}
			if requestErr.Type != "INVALID_VALUE_FOR_COLUMN" || requestErr.Message != "bad cell" {
				t.Fatalf("RequestError = %+v", requestErr)
			}
		})
	}
}

func TestClientCreateRecordTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := resty.New()
	client.SetTimeout(30 * time.Millisecond)

	c, err := NewClientWithResty(server.URL, "pat", "appBase", "Shipments", client)
	if err != nil {
		t.Fatalf("NewClientWithResty() error = %v", err)
	}

	_, err = c.CreateRecord(context.Background(), Fields{"Name": "x"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTransient(err) {
		t.Fatalf("IsTransient() = false, want true (err=%v)", err)
	}
}

func TestClientCreateRecordMissingID(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"records":[]}`))
	}))
	defer server.Close()

	c, err := NewClient(server.URL, "pat", "appBase", "Shipments")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = c.CreateRecord(context.Background(), Fields{"Name": "x"})
	if err == nil {
		t.Fatal("expected error for missing record id")
	}
	if IsTransient(err) {
		t.Fatal("missing record id should be permanent")
	}
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		apiURL string
		key    string
		base   string
		table  string
	}{
		{name: "missing url", key: "k", base: "b", table: "t"},
		{name: "relative url", apiURL: "api.airtable.com", key: "k", base: "b", table: "t"},
		{name: "missing key", apiURL: "https://api.airtable.com/v0", base: "b", table: "t"},
		{name: "missing base", apiURL: "https://api.airtable.com/v0", key: "k", table: "t"},
		{name: "missing table", apiURL: "https://api.airtable.com/v0", key: "k", base: "b"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if _, err := NewClient(tc.apiURL, tc.key, tc.base, tc.table); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	if IsTransient(nil) {
		t.Fatal("nil should not be transient")
	}
	if !IsTransient(context.DeadlineExceeded) {
		t.Fatal("deadline exceeded should be transient")
	}
	if IsTransient(context.Canceled) {
		t.Fatal("canceled should not be transient")
	}
	if IsTransient(errors.New("boom")) {
		t.Fatal("plain error should not be transient")
	}
}

func TestClientUpdateRecord(t *testing.T) {
	t.Parallel()

	var gotBody recordsRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s, want PATCH", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"records":[{"id":"recABC","fields":{}}]}`))
	}))
	defer server.Close()

	c, err := NewClient(server.URL, "pat", "appBase", "Shipments")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if err := c.UpdateRecord(context.Background(), "recABC", Fields{"Status": "Shipped"}); err != nil {
		t.Fatalf("UpdateRecord() error = %v", err)
	}
	if len(gotBody.Records) != 1 || gotBody.Records[0].ID != "recABC" || gotBody.Records[0].Fields["Status"] != "Shipped" {
		t.Fatalf("request body = %+v", gotBody)
	}

	if err := c.UpdateRecord(context.Background(), "", Fields{"Status": "Shipped"}); err == nil {
		t.Fatal("expected error for missing record id")
	}
}

func TestClientUpdateRecordNotFoundIsPermanent(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"MODEL_ID_NOT_FOUND","message":"record not found"}}`))
	}))
	defer server.Close()

	c, err := NewClient(server.URL, "pat", "appBase", "Shipments")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	err = c.UpdateRecord(context.Background(), "recGONE", Fields{"Status": "Shipped"})
	if err == nil {
		t.Fatal("expected error")
	}
	if IsTransient(err) {
		t.Fatalf("404 should be permanent, err = %v", err)
	}
}

func TestClientFindRecordID(t *testing.T) {
	t.Parallel()

	var gotFormula, gotMax string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		gotFormula = r.URL.Query().Get("filterByFormula")
		gotMax = r.URL.Query().Get("maxRecords")

		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(gotFormula, "9400") {
			_, _ = w.Write([]byte(`{"records":[{"id":"recFOUND","fields":{}}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"records":[]}`))
	}))
	defer server.Close()

	c, err := NewClient(server.URL, "pat", "appBase", "Shipments")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	id, found, err := c.FindRecordID(context.Background(), ColumnTrackingNumber, "9400")
	if err != nil {
		t.Fatalf("FindRecordID() error = %v", err)
	}
	if !found || id != "recFOUND" {
		t.Fatalf("FindRecordID() = %q, %v, want recFOUND, true", id, found)
	}
	if gotFormula != "{Tracking number}='9400'" || gotMax != "1" {
		t.Fatalf("query = %q / %q", gotFormula, gotMax)
	}

	_, found, err = c.FindRecordID(context.Background(), ColumnTrackingNumber, "1Z00")
	if err != nil {
		t.Fatalf("FindRecordID() error = %v", err)
	}
	if found {
		t.Fatal("FindRecordID() found = true, want false")
	}
}

func TestEqualsFormulaEscapesQuotes(t *testing.T) {
	t.Parallel()

	got := EqualsFormula("Tracking number", `O'Brien\1`)
	want := `{Tracking number}='O\'Brien\\1'`
	if got != want {
		t.Fatalf("EqualsFormula() = %s, want %s", got, want)
	}
}
