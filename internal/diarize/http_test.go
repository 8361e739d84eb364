package diarize

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDecodeTurns_TurnsShape(t *testing.T) {
	raw := []byte(`{"turns":[{"start":2.5,"end":4.0,"speaker":"SPEAKER_01"},{"start":0.0,"end":2.5,"speaker":"SPEAKER_00"}]}`)
	turns, err := decodeTurns(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	// Turns come back sorted regardless of wire order.
	if turns[0].Speaker != "SPEAKER_00" || turns[0].StartTime != 0 {
		t.Errorf("first turn: got %+v", turns[0])
	}
	if turns[1].Speaker != "SPEAKER_01" || turns[1].EndTime != 4.0 {
		t.Errorf("second turn: got %+v", turns[1])
	}
}

func TestDecodeTurns_SegmentsShape(t *testing.T) {
	raw := []byte(`{"segments":[{"start_time":1.0,"end_time":3.0,"speaker_label":"SPEAKER_00"}]}`)
	turns, err := decodeTurns(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("got %d turns, want 1", len(turns))
	}
	if turns[0] != (Turn{StartTime: 1.0, EndTime: 3.0, Speaker: "SPEAKER_00"}) {
		t.Errorf("got %+v", turns[0])
	}
}

func TestDecodeTurns_Malformed(t *testing.T) {
	if _, err := decodeTurns([]byte("not json")); err == nil {
		t.Error("expected error for malformed response")
	}
}

func TestHTTPClient_Diarize(t *testing.T) {
	var gotMin, gotMax, gotThreshold string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing audio file part: %v", err)
		}
		gotMin = r.FormValue("min_speakers")
		gotMax = r.FormValue("max_speakers")
		gotThreshold = r.FormValue("clustering_threshold")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"turns":[{"start":0,"end":1.5,"speaker":"SPEAKER_00"}]}`))
	}))
	defer server.Close()

	client, err := NewHTTPClient(HTTPConfig{Endpoint: server.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	turns, err := client.Diarize(context.Background(), make([]byte, 3200), Options{
		MinSpeakers:         1,
		MaxSpeakers:         4,
		ClusteringThreshold: 0.55,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 1 || turns[0].Speaker != "SPEAKER_00" {
		t.Errorf("got %+v", turns)
	}
	if gotMin != "1" || gotMax != "4" || gotThreshold != "0.55" {
		t.Errorf("tuning fields: min=%q max=%q threshold=%q", gotMin, gotMax, gotThreshold)
	}
}

func TestHTTPClient_EmptyAudioSkipsRequest(t *testing.T) {
	client, err := NewHTTPClient(HTTPConfig{Endpoint: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	turns, err := client.Diarize(context.Background(), nil, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if turns != nil {
		t.Errorf("got %+v, want nil", turns)
	}
}

func TestHTTPClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewHTTPClient(HTTPConfig{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.Diarize(context.Background(), make([]byte, 320), Options{}); err == nil {
		t.Error("expected error for 503 response")
	}
}

func TestNewHTTPClient_RequiresEndpoint(t *testing.T) {
	if _, err := NewHTTPClient(HTTPConfig{}); err == nil {
		t.Error("expected error for empty endpoint")
	}
}
