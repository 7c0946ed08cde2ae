// internal/api/client_test.go
package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:5000", "secret123")

	if c == nil {
		t.Fatal("New returned nil")
	}
	if c.baseURL != "http://localhost:5000" {
		t.Errorf("expected baseURL=http://localhost:5000, got %s", c.baseURL)
	}
	if c.apiKey != "secret123" {
		t.Errorf("expected apiKey=secret123, got %s", c.apiKey)
	}
	if c.httpClient == nil {
		t.Error("httpClient is nil")
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:5000/", "secret")
	if c.baseURL != "http://localhost:5000" {
		t.Errorf("expected trailing slash trimmed, got %s", c.baseURL)
	}
}

func TestHealthcheck_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthcheck" {
			t.Errorf("expected path /healthcheck, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(server.URL, "")
	err := c.Healthcheck()
	if err != nil {
		t.Errorf("Healthcheck failed: %v", err)
	}
}

func TestHealthcheck_ServerDown(t *testing.T) {
	c := New("http://localhost:59999", "") // unlikely to be listening
	err := c.Healthcheck()
	if err == nil {
		t.Error("expected error for unreachable server")
	}
}

func TestHealthcheck_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(server.URL, "")
	err := c.Healthcheck()
	if err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestUpload_Success(t *testing.T) {
	var receivedSecret, receivedFilename, receivedEpisodeID string
	var receivedScene, receivedOutcome string
	var receivedDuration string
	var receivedFileContent []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/episodes/add" {
			t.Errorf("expected path /api/v1/episodes/add, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}

		err := r.ParseMultipartForm(10 << 20)
		if err != nil {
			t.Fatalf("failed to parse multipart form: %v", err)
		}

		receivedSecret = r.FormValue("secret")
		receivedFilename = r.FormValue("filename")
		receivedEpisodeID = r.FormValue("episodeId")
		receivedScene = r.FormValue("sceneName")
		receivedDuration = r.FormValue("duration")
		receivedOutcome = r.FormValue("outcome")

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("failed to get file: %v", err)
		}
		defer file.Close()

		receivedFileContent = make([]byte, 1024)
		n, _ := file.Read(receivedFileContent)
		receivedFileContent = receivedFileContent[:n]

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	// Create temp file
	tmpDir := t.TempDir()
	testFile := tmpDir + "/ep-upload.jsonl"
	if err := os.WriteFile(testFile, []byte("test content"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	c := New(server.URL, "mysecret")
	meta := UploadMetadata{
		EpisodeID: "ep-upload",
		SceneName: "head_on",
		Duration:  12.5,
		Outcome:   "hit",
	}

	err := c.Upload(testFile, meta)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if receivedSecret != "mysecret" {
		t.Errorf("expected secret=mysecret, got %s", receivedSecret)
	}
	if receivedFilename != "ep-upload.jsonl" {
		t.Errorf("expected filename=ep-upload.jsonl, got %s", receivedFilename)
	}
	if receivedEpisodeID != "ep-upload" {
		t.Errorf("expected episodeId=ep-upload, got %s", receivedEpisodeID)
	}
	if receivedScene != "head_on" {
		t.Errorf("expected sceneName=head_on, got %s", receivedScene)
	}
	if receivedDuration != "12.500000" {
		t.Errorf("expected duration=12.500000, got %s", receivedDuration)
	}
	if receivedOutcome != "hit" {
		t.Errorf("expected outcome=hit, got %s", receivedOutcome)
	}
	if string(receivedFileContent) != "test content" {
		t.Errorf("expected file content 'test content', got '%s'", string(receivedFileContent))
	}
}

func TestUpload_FileNotFound(t *testing.T) {
	c := New("http://localhost:5000", "secret")
	err := c.Upload("/nonexistent/file.jsonl", UploadMetadata{})
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestUpload_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	tmpDir := t.TempDir()
	testFile := tmpDir + "/ep.jsonl"
	_ = os.WriteFile(testFile, []byte("content"), 0644)

	c := New(server.URL, "wrong-secret")
	err := c.Upload(testFile, UploadMetadata{})
	if err == nil {
		t.Error("expected error for 403 response")
	}
}
