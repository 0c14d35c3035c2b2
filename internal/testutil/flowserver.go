package testutil

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
)

// RecordedRequest is a request received by a FlowServer.
type RecordedRequest struct {
	Header http.Header
	Query  url.Values
	Body   []byte

	// Set for multipart/form-data requests.
	Files  map[string][]byte
	Fields map[string]string
}

// FlowServer is a scripted fake of the job-control API.
// Paths without a handler answer 404.
type FlowServer struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	requests map[string][]RecordedRequest
}

// NewFlowServer starts a fake server that is closed when the test ends.
func NewFlowServer(tb testing.TB) *FlowServer {
	tb.Helper()
	s := &FlowServer{
		handlers: make(map[string]http.HandlerFunc),
		requests: make(map[string][]RecordedRequest),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	tb.Cleanup(s.Close)
	return s
}

func (s *FlowServer) serve(w http.ResponseWriter, r *http.Request) {
	rec := record(r)

	s.mu.Lock()
	s.requests[r.URL.Path] = append(s.requests[r.URL.Path], rec)
	h := s.handlers[r.URL.Path]
	s.mu.Unlock()

	if h == nil {
		http.NotFound(w, r)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(rec.Body))
	h(w, r)
}

func record(r *http.Request) RecordedRequest {
	body, _ := io.ReadAll(r.Body)
	rec := RecordedRequest{
		Header: r.Header.Clone(),
		Query:  r.URL.Query(),
		Body:   body,
	}

	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return rec
	}
	rec.Files = make(map[string][]byte)
	rec.Fields = make(map[string]string)
	mr := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		data, _ := io.ReadAll(part)
		if part.FileName() != "" {
			rec.Files[part.FormName()] = data
			rec.Fields[part.FormName()+".filename"] = part.FileName()
		} else {
			rec.Fields[part.FormName()] = string(data)
		}
		part.Close()
	}
	return rec
}

// Handle registers h for path.
func (s *FlowServer) Handle(path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[path] = h
}

// HandleJSON answers every request to path with body encoded as JSON.
func (s *FlowServer) HandleJSON(path string, body any) {
	s.HandleSequence(path, body)
}

// HandleSequence answers successive requests to path with bodies in order,
// repeating the last one. A []byte body is written verbatim as an archive;
// use json.RawMessage for literal JSON.
func (s *FlowServer) HandleSequence(path string, bodies ...any) {
	var (
		mu sync.Mutex
		n  int
	)
	s.Handle(path, func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		i := min(n, len(bodies)-1)
		n++
		mu.Unlock()
		writeBody(w, bodies[i])
	})
}

// HandleStatus answers every request to path with the given HTTP status.
func (s *FlowServer) HandleStatus(path string, status int) {
	s.Handle(path, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	})
}

// HandleJobStatuses scripts the job query endpoint to report the given
// statuses in order, repeating the last one.
func (s *FlowServer) HandleJobStatuses(statuses ...string) {
	bodies := make([]any, len(statuses))
	for i, st := range statuses {
		bodies[i] = Envelope(0, []map[string]any{{"f_job_id": "job", "f_status": st}})
	}
	s.HandleSequence("/v1/job/query", bodies...)
}

// HandleRunningTasks answers the task query endpoint with running tasks for
// the given components.
func (s *FlowServer) HandleRunningTasks(components ...string) {
	tasks := make([]map[string]any, len(components))
	for i, c := range components {
		tasks[i] = map[string]any{"f_component_name": c, "f_status": "running"}
	}
	s.HandleJSON("/v1/job/task/query", Envelope(0, tasks))
}

// Calls returns how many requests path received.
func (s *FlowServer) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests[path])
}

// Requests returns the requests path received.
func (s *FlowServer) Requests(path string) []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests[path]...)
}

// LastRequest returns the most recent request to path.
func (s *FlowServer) LastRequest(tb testing.TB, path string) RecordedRequest {
	tb.Helper()
	reqs := s.Requests(path)
	if len(reqs) == 0 {
		tb.Fatalf("no request received on %s", path)
	}
	return reqs[len(reqs)-1]
}

// Envelope builds a response document with a return code and data.
// A nil data omits the field.
func Envelope(retcode int, data any) map[string]any {
	env := map[string]any{"retcode": retcode, "retmsg": "success"}
	if retcode != 0 {
		env["retmsg"] = "failed"
	}
	if data != nil {
		env["data"] = data
	}
	return env
}

// TarGz builds a gzip-compressed tar archive from name/content pairs.
func TarGz(tb testing.TB, files map[string]string) []byte {
	tb.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	gzWriter := gzip.NewWriter(&buf)
	tarWriter := tar.NewWriter(gzWriter)
	for _, name := range names {
		content := files[name]
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		if err := tarWriter.WriteHeader(hdr); err != nil {
			tb.Fatalf("write tar header: %v", err)
		}
		if _, err := tarWriter.Write([]byte(content)); err != nil {
			tb.Fatalf("write tar entry: %v", err)
		}
	}
	if err := tarWriter.Close(); err != nil {
		tb.Fatalf("close tar: %v", err)
	}
	if err := gzWriter.Close(); err != nil {
		tb.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}

func writeBody(w http.ResponseWriter, body any) {
	if raw, ok := body.([]byte); ok {
		w.Header().Set("Content-Type", "application/gzip")
		_, _ = w.Write(raw)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
