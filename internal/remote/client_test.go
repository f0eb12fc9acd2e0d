package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		var req parseRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotBody = req.Body
		w.Write([]byte(`{"data":[{"index":0,"0":"hola","1":"hello"}]}`))
	}))
	defer srv.Close()

	rows, err := NewClient(srv.URL, time.Second).Parse(context.Background(), []byte("xlsx-bytes"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if gotBody != base64.StdEncoding.EncodeToString([]byte("xlsx-bytes")) {
		t.Errorf("body = %q, want base64 of the input", gotBody)
	}
	if len(rows) != 1 || rows[0].Values()[0] != "hola" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestParseWrappedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`"{\"data\":[{\"index\":3,\"w\":\"x\"}]}"`))
	}))
	defer srv.Close()

	rows, err := NewClient(srv.URL, time.Second).Parse(context.Background(), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 1 || rows[0].Index != 3 {
		t.Errorf("rows = %+v", rows)
	}
}

func TestParseFailures(t *testing.T) {
	testCases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>"))
			},
		},
		{
			name: "slow endpoint",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(300 * time.Millisecond)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			_, err := NewClient(srv.URL, 100*time.Millisecond).Parse(context.Background(), []byte("x"))
			if !errors.Is(err, ErrParseFailed) {
				t.Errorf("Expected ErrParseFailed, got %v", err)
			}
		})
	}

	if _, err := NewClient("", 0).Parse(context.Background(), nil); !errors.Is(err, ErrParseFailed) {
		t.Errorf("Expected ErrParseFailed without an endpoint, got %v", err)
	}
}
