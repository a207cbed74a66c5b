package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/contentkit/schemaload/internal/domain"
	"github.com/contentkit/schemaload/internal/retry"
)

// fastRetry keeps test failures from waiting out backoff delays
func fastRetry() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 1
	return cfg
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *HTTPClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewHTTPClientWithRetry(Options{
		BaseURL:  srv.URL,
		Username: "admin",
		Password: "admin",
	}, fastRetry())
	if err != nil {
		t.Fatalf("NewHTTPClientWithRetry() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return srv, client
}

func TestHTTPClient_WriteDocuments(t *testing.T) {
	var gotPayload []documentPayload
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/ping":
			w.WriteHeader(http.StatusOK)
		case "/v1/documents":
			if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
				t.Errorf("bad payload: %v", err)
			}
			resp := writeResponse{}
			for _, doc := range gotPayload {
				ok := doc.URI != "/schemas/bad.xsd"
				errMsg := ""
				if !ok {
					errMsg = "XDMP-VALIDATEERR: schema is not valid"
				}
				resp.Results = append(resp.Results, struct {
					URI   string `json:"uri"`
					OK    bool   `json:"ok"`
					Error string `json:"error,omitempty"`
				}{URI: doc.URI, OK: ok, Error: errMsg})
			}
			json.NewEncoder(w).Encode(resp)
		default:
			http.NotFound(w, r)
		}
	})

	ops := []domain.WriteOperation{
		{URI: "/schemas/good.xsd", Content: []byte("<xs:schema/>"), Metadata: domain.Metadata{Collections: []string{"schemas"}}},
		{URI: "/schemas/bad.xsd", Content: []byte("<broken")},
	}

	failures, err := client.WriteDocuments(context.Background(), ops)
	if err != nil {
		t.Fatalf("WriteDocuments() error = %v", err)
	}
	if len(failures) != 1 {
		t.Fatalf("expected 1 rejected operation, got %d", len(failures))
	}
	if failures[0].URI != "/schemas/bad.xsd" {
		t.Errorf("expected /schemas/bad.xsd rejected, got %s", failures[0].URI)
	}
	if !strings.Contains(failures[0].Cause.Error(), "XDMP-VALIDATEERR") {
		t.Errorf("expected verbatim store message, got %v", failures[0].Cause)
	}

	if len(gotPayload) != 2 {
		t.Fatalf("expected 2 documents in payload, got %d", len(gotPayload))
	}
	if gotPayload[0].Collections[0] != "schemas" {
		t.Errorf("metadata lost in payload: %+v", gotPayload[0])
	}
}

func TestHTTPClient_EvalFailureIsVerbatim(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/ping":
			w.WriteHeader(http.StatusOK)
		case "/v1/eval":
			http.Error(w, "TDE-INVALIDTEMPLATE: template has no context", http.StatusBadRequest)
		default:
			http.NotFound(w, r)
		}
	})

	err := client.Eval(context.Background(), EvalRequest{
		Script:   "declareUpdate();",
		Database: "schemas-content",
	})
	if err == nil {
		t.Fatal("expected Eval to fail")
	}
	if !strings.Contains(err.Error(), "TDE-INVALIDTEMPLATE: template has no context") {
		t.Errorf("expected verbatim remote message, got %v", err)
	}
}

func TestHTTPClient_Capabilities(t *testing.T) {
	t.Run("supported", func(t *testing.T) {
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/v1/ping":
				w.WriteHeader(http.StatusOK)
			case "/v1/capabilities":
				json.NewEncoder(w).Encode(Capabilities{AtomicBatchInsert: true})
			default:
				http.NotFound(w, r)
			}
		})

		caps, err := client.Capabilities(context.Background())
		if err != nil {
			t.Fatalf("Capabilities() error = %v", err)
		}
		if !caps.AtomicBatchInsert {
			t.Error("expected atomic batch insert support")
		}
	})

	t.Run("endpoint missing on old store", func(t *testing.T) {
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/v1/ping" {
				w.WriteHeader(http.StatusOK)
				return
			}
			http.NotFound(w, r)
		})

		caps, err := client.Capabilities(context.Background())
		if err != nil {
			t.Fatalf("Capabilities() error = %v", err)
		}
		if caps.AtomicBatchInsert {
			t.Error("missing endpoint must report no support, not an error")
		}
	})
}

func TestHTTPClient_UnreachableStore(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPClientWithRetry(Options{BaseURL: url}, fastRetry())
	if err == nil {
		t.Fatal("expected connection failure")
	}
}

func TestHTTPClient_BasicAuth(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "admin" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestStatusErrorIsNotFound(t *testing.T) {
	err := error(&statusError{code: http.StatusNotFound, body: "no such endpoint"})
	var se *statusError
	if !errors.As(err, &se) || se.code != http.StatusNotFound {
		t.Fatalf("statusError lost through errors.As: %v", err)
	}
}
