package llamaguard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/crimson-sun/warden/internal/classifier"
	"github.com/crimson-sun/warden/internal/model"
)

func TestParse(t *testing.T) {
	tests := []struct {
		reply    string
		want     string
		wantConf float64
	}{
		{"safe", "safe", exactConfidence},
		{"Safe", "safe", exactConfidence},
		{"  safe\n", "safe", exactConfidence},
		{"unsafe\nS1", "S1", exactConfidence},
		{"Unsafe\nS14", "S14", exactConfidence},
		{"unsafe\ns7", "S7", exactConfidence},
		{"unsafe", "unsafe", looseConfidence},
		{"unsafe, no category applies", "unsafe", looseConfidence},
		{"I think this is fine", "unknown", looseConfidence},
	}
	for _, tt := range tests {
		got, conf := parse(tt.reply)
		if got != tt.want || conf != tt.wantConf {
			t.Errorf("parse(%q) = (%q, %v), want (%q, %v)", tt.reply, got, conf, tt.want, tt.wantConf)
		}
	}
}

func guardServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": reply},
		})
	}))
}

func TestClassify(t *testing.T) {
	srv := guardServer(t, "unsafe\nS10")
	defer srv.Close()

	g, err := New(classifier.Settings{Name: "lg-1", Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	v, err := g.Classify(context.Background(), "some hateful text")
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if v.RawCategory != "S10" {
		t.Errorf("RawCategory = %q, want S10", v.RawCategory)
	}
	if v.Confidence != exactConfidence {
		t.Errorf("Confidence = %v", v.Confidence)
	}
}

func TestClassifyTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	g, _ := New(classifier.Settings{Endpoint: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := g.Classify(ctx, "text")
	var cerr *model.ClassifierError
	if !errors.As(err, &cerr) {
		t.Fatalf("Classify() error = %v, want ClassifierError", err)
	}
	if cerr.Kind != model.ErrTimeout {
		t.Errorf("Kind = %v, want timeout", cerr.Kind)
	}
}

func TestClassifyUnavailable(t *testing.T) {
	srv := guardServer(t, "safe")
	srv.Close() // connection refused

	g, _ := New(classifier.Settings{Endpoint: srv.URL})
	_, err := g.Classify(context.Background(), "text")
	var cerr *model.ClassifierError
	if !errors.As(err, &cerr) {
		t.Fatalf("Classify() error = %v, want ClassifierError", err)
	}
	if cerr.Kind != model.ErrUnavailable {
		t.Errorf("Kind = %v, want unavailable", cerr.Kind)
	}
}

func TestClassifyEmptyReply(t *testing.T) {
	srv := guardServer(t, "   ")
	defer srv.Close()

	g, _ := New(classifier.Settings{Endpoint: srv.URL})
	_, err := g.Classify(context.Background(), "text")
	var cerr *model.ClassifierError
	if !errors.As(err, &cerr) || cerr.Kind != model.ErrInvalidResponse {
		t.Fatalf("Classify() error = %v, want invalid_response", err)
	}
}
