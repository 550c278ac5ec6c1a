package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"

	"github.com/kbukum/whisper-server/engine"
)

func TestLoadRequiresAPIKey(t *testing.T) {
	b := NewBackend(Config{}, afero.NewMemMapFs(), nil)
	if b.IsAvailable(context.Background()) {
		t.Error("backend without key reported available")
	}
	if _, err := b.Load(context.Background(), engine.Spec{ID: "whisper-1"}); err == nil {
		t.Error("expected Load to fail without api key")
	}
}

func TestTranscribe(t *testing.T) {
	var gotModel, gotLanguage, gotFormat string
	var gotAudio []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("bad multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		gotLanguage = r.FormValue("language")
		gotFormat = r.FormValue("response_format")
		f, _, err := r.FormFile("file")
		if err == nil {
			gotAudio, _ = io.ReadAll(f)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"text":     " bonjour ",
			"language": "french",
			"duration": 2.5,
			"segments": []map[string]any{{"id": 0, "start": 0.0, "end": 2.5, "text": "bonjour"}},
		})
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/scratch/a.wav", []byte("RIFF...."), 0o600)

	b, err := Factory(fs, nil)(map[string]any{"api_key": "sk-test", "base_url": srv.URL + "/v1"})
	if err != nil {
		t.Fatal(err)
	}
	eng, err := b.Load(context.Background(), engine.Spec{ID: "whisper-1"})
	if err != nil {
		t.Fatal(err)
	}

	res, err := eng.Transcribe(context.Background(), "/scratch/a.wav", engine.DeterministicParams("fr", 2))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "bonjour" || res.Duration != 2.5 || len(res.Segments) != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if gotModel != "whisper-1" || gotLanguage != "fr" || gotFormat != "verbose_json" {
		t.Errorf("unexpected request model=%q language=%q format=%q", gotModel, gotLanguage, gotFormat)
	}
	if string(gotAudio) != "RIFF...." {
		t.Errorf("server received %q", gotAudio)
	}
	if err := eng.Close(); err != nil {
		t.Error(err)
	}
}

func TestModelOverride(t *testing.T) {
	b := NewBackend(Config{APIKey: "k", Model: "whisper-large-v3"}, afero.NewMemMapFs(), nil)
	eng, err := b.Load(context.Background(), engine.Spec{ID: "whisper-small"})
	if err != nil {
		t.Fatal(err)
	}
	if eng.(*Engine).model != "whisper-large-v3" {
		t.Errorf("model override ignored")
	}
}

func TestTranscribeMissingFile(t *testing.T) {
	b := NewBackend(Config{APIKey: "k"}, afero.NewMemMapFs(), nil)
	eng, _ := b.Load(context.Background(), engine.Spec{ID: "whisper-1"})
	if _, err := eng.Transcribe(context.Background(), "/nope.wav", engine.Params{}); err == nil {
		t.Error("expected error for missing file")
	}
}
