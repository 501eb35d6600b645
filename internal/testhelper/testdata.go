// Package testhelper provides testdata fixtures and fake remote APIs for
// tests that exercise report generation end to end.
package testhelper

import (
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/agentstation/procreport/pkg/constants"
)

// UpdateTestdata is the global flag for updating golden files.
var UpdateTestdata = flag.Bool("update", false, "update testdata files")

// LoadTestdata loads a file from the caller's testdata directory.
func LoadTestdata(t testing.TB, filename string) []byte {
	t.Helper()

	testdataPath := filepath.Join("testdata", filename)
	data, err := os.ReadFile(testdataPath) //nolint:gosec // Test file paths are controlled
	if err != nil {
		t.Fatalf("Failed to load testdata file %s: %v", testdataPath, err)
	}
	return data
}

// LoadJSON loads and unmarshals JSON from a testdata file.
func LoadJSON(t testing.TB, filename string, v any) {
	t.Helper()

	if err := json.Unmarshal(LoadTestdata(t, filename), v); err != nil {
		t.Fatalf("Failed to unmarshal JSON from testdata file %s: %v", filename, err)
	}
}

// CompareWithTestdata compares actual with a golden file. Line endings in
// the golden file are normalised to CRLF before comparison so fixtures stay
// readable in editors. With -update the golden file is rewritten.
func CompareWithTestdata(t testing.TB, filename string, actual string) {
	t.Helper()

	if *UpdateTestdata {
		path := filepath.Join("testdata", filename)
		normalised := strings.ReplaceAll(actual, "\r\n", "\n")
		if err := os.WriteFile(path, []byte(normalised), constants.FilePermissions); err != nil {
			t.Fatalf("Failed to save testdata file %s: %v", path, err)
		}
		t.Logf("Updated testdata file: %s", path)
		return
	}

	expected := strings.ReplaceAll(string(LoadTestdata(t, filename)), "\r\n", "\n")
	expected = strings.ReplaceAll(expected, "\n", "\r\n")
	if actual != expected {
		t.Errorf("Data does not match testdata file %s\nActual:\n%s\nExpected:\n%s", filename, actual, expected)
	}
}

// Server is a fake aggregator/spec/backend API serving canned bodies.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]route
	requests map[string]int
}

type route struct {
	status int
	body   []byte
}

// NewServer starts a fake API. Unknown paths answer 404. The server is
// closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		routes:   make(map[string]route),
		requests: make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Handle registers a JSON body for path.
func (s *Server) Handle(path string, body []byte) *Server {
	return s.HandleStatus(path, http.StatusOK, body)
}

// HandleStatus registers a body with an explicit status code for path.
func (s *Server) HandleStatus(path string, status int, body []byte) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = route{status: status, body: body}
	return s
}

// HandleFile registers a testdata file as the body for path.
func (s *Server) HandleFile(t testing.TB, path, filename string) *Server {
	t.Helper()
	return s.Handle(path, LoadTestdata(t, filename))
}

// Requests returns how often path has been requested.
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

// URLFor returns the absolute URL of path on this server.
func (s *Server) URLFor(path string) string {
	return s.Server.URL + path
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests[r.URL.Path]++
	rt, ok := s.routes[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rt.status)
	_, _ = w.Write(rt.body)
}
