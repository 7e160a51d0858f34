package enrichment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MossHollow/InterludeEngine/internal/models"
)

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Error("Expected error when base URL is not set")
	}
}

func TestCheckStatusPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status/w_abc" {
			t.Errorf("Expected path /status/w_abc, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"pending"}`))
	}))
	defer srv.Close()

	client, err := NewClient(WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("Expected no error creating client, got %v", err)
	}
	result, err := client.CheckStatus(context.Background(), "w_abc")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Status != models.WorkStatusPending {
		t.Errorf("Expected pending status, got %s", result.Status)
	}
	if result.Payload != nil {
		t.Errorf("Expected no payload while pending, got %+v", result.Payload)
	}
}

func TestCheckStatusComplete(t *testing.T) {
	body := `{"status":"complete","payload":{"emotion":"anxious","sentiment":-0.4,"poem":"a short poem","dialogue":[["i1","r1","a1"],["i2","r2","a2"],["i3","r3","a3"]]}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	client, err := NewClient(WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("Expected no error creating client, got %v", err)
	}
	result, err := client.CheckStatus(context.Background(), "w_abc")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Status != models.WorkStatusComplete {
		t.Errorf("Expected complete status, got %s", result.Status)
	}
	if result.Payload == nil {
		t.Fatal("Expected payload on completion")
	}
	if result.Payload.Emotion != models.EmotionAnxious {
		t.Errorf("Expected anxious emotion, got %s", result.Payload.Emotion)
	}
	if len(result.Payload.Dialogue) != 3 {
		t.Fatalf("Expected 3 dialogue tuples, got %d", len(result.Payload.Dialogue))
	}
	if result.Payload.Dialogue[0].InnerVoice != "i1" || result.Payload.Dialogue[2].Amuse != "a3" {
		t.Errorf("Dialogue tuples decoded incorrectly: %+v", result.Payload.Dialogue)
	}
}

func TestCheckStatusEmptyWorkID(t *testing.T) {
	client, err := NewClient(WithBaseURL("http://localhost:1"))
	if err != nil {
		t.Fatalf("Expected no error creating client, got %v", err)
	}
	if _, err := client.CheckStatus(context.Background(), ""); err != models.ErrEmptyWorkID {
		t.Errorf("Expected ErrEmptyWorkID, got %v", err)
	}
}

func TestCheckStatusServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, _ := NewClient(WithBaseURL(srv.URL))
	if _, err := client.CheckStatus(context.Background(), "w_abc"); err == nil {
		t.Error("Expected error for 500 response")
	}
}

func TestCheckStatusMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client, _ := NewClient(WithBaseURL(srv.URL))
	if _, err := client.CheckStatus(context.Background(), "w_abc"); err == nil {
		t.Error("Expected error for malformed body")
	}
}

func TestCheckStatusUnknownStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"exploded"}`))
	}))
	defer srv.Close()

	client, _ := NewClient(WithBaseURL(srv.URL))
	if _, err := client.CheckStatus(context.Background(), "w_abc"); err == nil {
		t.Error("Expected error for unknown work status")
	}
}

func TestCheckStatusEscapesWorkID(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Write([]byte(`{"status":"pending"}`))
	}))
	defer srv.Close()

	client, _ := NewClient(WithBaseURL(srv.URL))
	if _, err := client.CheckStatus(context.Background(), "w/../../etc"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if gotPath == "/status/w/../../etc" {
		t.Errorf("Expected escaped work ID in path, got %s", gotPath)
	}
}
