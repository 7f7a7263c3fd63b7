//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode"

	"github.com/cloo-solutions/studyforge/internal/api/handlers"
	"github.com/cloo-solutions/studyforge/internal/jobs"
	"github.com/cloo-solutions/studyforge/internal/logger"
	"github.com/cloo-solutions/studyforge/internal/provider"
	"github.com/cloo-solutions/studyforge/internal/repository"
	"github.com/cloo-solutions/studyforge/internal/server"
	"github.com/cloo-solutions/studyforge/internal/service"
	"github.com/cloo-solutions/studyforge/internal/storage"
	"github.com/cloo-solutions/studyforge/internal/testutil"
	"github.com/cloo-solutions/studyforge/internal/vectorindex"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	embeddingDims = 32
	snapshotKey   = "index/e2e.gob"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	ObjectStoreC *testutil.ObjectStoreContainer
	Pool         *pgxpool.Pool
	S3Client     *storage.S3Client
	Index        *vectorindex.Index
	IndexWorker  *jobs.IndexWorker
	LLM          *fakeLLM
	ServerURL    string
	ServerCloser func()
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv starts Postgres and an object store, wires the full pipeline
// against a fake embedder and a fake OpenAI-compatible provider, and serves it.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewObjectStoreContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.ObjectStoreAccessKey,
		SecretAccessKey: testutil.ObjectStoreSecretKey,
		Bucket:          "studyforge-e2e",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	env := &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		ObjectStoreC: s3C,
		Pool:         pool,
		S3Client:     s3Client,
		LLM:          newFakeLLM(),
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}
	env.ServerURL, env.ServerCloser = env.startServer(port)

	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.LLM != nil {
		e.LLM.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.ObjectStoreC != nil {
		e.ObjectStoreC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

func (e *E2ETestEnv) newIndex() *vectorindex.Index {
	return vectorindex.New(hashEmbedder{}, vectorindex.NewS3Store(e.S3Client, snapshotKey),
		repository.NewVectorRecordRepository(e.Pool), vectorindex.Config{
			Dimensions: embeddingDims,
			Locker:     repository.NewIndexLock(e.Pool),
		})
}

func (e *E2ETestEnv) startServer(port int) (string, func()) {
	t := e.T
	log := logger.Nop()

	documents := repository.NewDocumentRepository(e.Pool)
	segments := repository.NewSegmentRepository(e.Pool)
	vectors := repository.NewVectorRecordRepository(e.Pool)
	artifacts := repository.NewArtifactRepository(e.Pool)

	e.Index = e.newIndex()
	if err := e.Index.Load(e.Ctx); err != nil {
		t.Fatalf("failed to load index: %v", err)
	}

	t.Setenv("E2E_LLM_KEY", "sk-e2e")
	gateway, err := provider.Build(&provider.FileConfig{
		Providers: []provider.Spec{
			{Name: "down", BaseURL: "http://127.0.0.1:1/v1", APIKeyEnv: "E2E_LLM_KEY", Model: "none", Timeout: time.Second},
			{Name: "fake", BaseURL: e.LLM.URL() + "/v1", APIKeyEnv: "E2E_LLM_KEY", Model: "fake-1", Timeout: 5 * time.Second},
		},
	}, os.Getenv, log)
	if err != nil {
		t.Fatalf("failed to build gateway: %v", err)
	}

	documentSvc := service.NewDocumentService(repository.NewTxRunner(e.Pool), documents, segments, e.Index,
		service.SegmentConfig{TargetChunkSize: 200, Overlap: 40}, log)
	indexSvc := service.NewIndexService(documents, segments, vectors, e.Index, log)
	retriever := service.NewRetriever(hashEmbedder{}, e.Index, segments, vectors, service.RetrievalConfig{}, log)
	generator := service.NewGenerator(documents, retriever, gateway, artifacts, service.DefaultGeneratorConfig(), log)
	e.IndexWorker = jobs.NewIndexWorker(repository.NewIndexJobRepository(e.Pool), indexSvc, log)

	router := server.NewRouter(server.RouterConfig{
		Logger:          log,
		MaxBodyBytes:    1 << 20,
		MaxUploadBytes:  4 << 20,
		DocumentHandler: handlers.NewDocumentHandler(documentSvc),
		SearchHandler:   handlers.NewSearchHandler(retriever),
		ArtifactHandler: handlers.NewArtifactHandler(generator, service.NewArtifactService(artifacts, documents)),
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

// NewIndexWorker builds an index worker over ix, standing in for a second
// studyd process such as `studyd ingest --index`.
func (e *E2ETestEnv) NewIndexWorker(ix *vectorindex.Index) *jobs.IndexWorker {
	log := logger.Nop()
	indexSvc := service.NewIndexService(repository.NewDocumentRepository(e.Pool), repository.NewSegmentRepository(e.Pool),
		repository.NewVectorRecordRepository(e.Pool), ix, log)
	return jobs.NewIndexWorker(repository.NewIndexJobRepository(e.Pool), indexSvc, log)
}

// ProcessIndexJobs runs one pass of the index worker.
func (e *E2ETestEnv) ProcessIndexJobs() {
	if err := e.IndexWorker.ProcessJobs(e.Ctx); err != nil {
		e.T.Fatalf("failed to process index jobs: %v", err)
	}
}

// BuildBinaries builds the study and studyd binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "studyforge-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"study", "studyd"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// RunStudy runs the study CLI against the test server
func (e *E2ETestEnv) RunStudy(workDir string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "study"), args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), "STUDYFORGE_API_URL="+e.ServerURL)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	Status int
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) *APIResponse {
	return e.doRequest(http.MethodGet, path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}) *APIResponse {
	return e.doRequest(http.MethodPost, path, body)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) *APIResponse {
	return e.doRequest(http.MethodDelete, path, nil)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) *APIResponse {
	e.T.Helper()

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			e.T.Fatalf("failed to marshal body: %v", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		e.T.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	apiResp := &APIResponse{Status: resp.StatusCode}
	respBody, _ := io.ReadAll(resp.Body)
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, apiResp); err != nil {
			e.T.Fatalf("%s %s: unparseable response %q", method, path, respBody)
		}
	}
	return apiResp
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// hashEmbedder maps words into a fixed number of buckets so texts sharing
// words score higher. The last component keeps every vector non-zero.
type hashEmbedder struct{}

func (hashEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, embeddingDims)
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%(embeddingDims-1)]++
	}
	vec[embeddingDims-1] = 0.1
	return vec, nil
}

// fakeLLM serves /v1/chat/completions with canned JSON for each artifact kind.
type fakeLLM struct {
	srv   *httptest.Server
	calls atomic.Int64
}

func newFakeLLM() *fakeLLM {
	f := &fakeLLM{}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeLLM) URL() string { return f.srv.URL }

func (f *fakeLLM) Close() { f.srv.Close() }

func (f *fakeLLM) handle(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
		http.NotFound(w, r)
		return
	}
	n := f.calls.Add(1)

	var req struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var prompt strings.Builder
	for _, m := range req.Messages {
		prompt.WriteString(m.Content)
	}

	content := `[]`
	switch p := prompt.String(); {
	case strings.Contains(p, "multiple-choice"):
		content = `[{"question":"What caches translations?","options":["TLB","MMU","Disk","Heap"],` +
			`"correct_index":0,"explanation":"The TLB caches page table entries.","difficulty":"easy"}]`
	case strings.Contains(p, "flashcards"):
		content = "Here you go:\n```json\n" +
			`{"flashcards":[{"question":"What does a page table map?","answer":"Virtual pages to physical frames.","topic":"paging"}]}` +
			"\n```"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":      fmt.Sprintf("chatcmpl-%d", n),
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "fake-1",
		"choices": []map[string]interface{}{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
}
