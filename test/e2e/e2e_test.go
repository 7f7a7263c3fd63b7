//go:build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lectureNotes = `# Virtual memory

Paging splits memory into fixed-size pages. A page table maps virtual pages to physical frames.

# Translation lookaside buffer

The TLB caches recent page table entries so most translations avoid a memory access.

# Page replacement

When memory is full the kernel evicts a page. LRU approximations such as the clock algorithm are common.`

type documentData struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason"`
}

func ingest(t *testing.T, env *E2ETestEnv, name, text string) documentData {
	t.Helper()
	resp := env.Post("/documents", map[string]string{"name": name, "text": text})
	require.Equal(t, http.StatusCreated, resp.Status, resp.Error)

	var doc documentData
	require.NoError(t, json.Unmarshal(resp.Data, &doc))
	return doc
}

func TestE2E_DocumentLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	doc := ingest(t, env, "os-notes.md", lectureNotes)
	assert.Equal(t, "segmented", doc.Status)

	resp := env.Post("/documents/"+doc.ID+"/artifacts", map[string]string{"kind": "flashcards"})
	assert.Equal(t, http.StatusConflict, resp.Status, "generation must wait for indexing")

	env.ProcessIndexJobs()

	resp = env.Get("/documents/" + doc.ID)
	require.Equal(t, http.StatusOK, resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, &doc))
	assert.Equal(t, "ready", doc.Status)

	resp = env.Get("/documents/" + doc.ID + "/segments")
	require.Equal(t, http.StatusOK, resp.Status)
	var segments []struct {
		SequenceIndex int `json:"sequence_index"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &segments))
	require.NotEmpty(t, segments)
	for i, s := range segments {
		assert.Equal(t, i, s.SequenceIndex)
	}

	resp = env.Get("/documents?status=ready")
	require.Equal(t, http.StatusOK, resp.Status)
	var list struct {
		Items []documentData `json:"items"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Len(t, list.Items, 1)

	assert.Equal(t, http.StatusNoContent, env.Delete("/documents/"+doc.ID).Status)
	assert.Equal(t, http.StatusNotFound, env.Get("/documents/"+doc.ID).Status)
}

func TestE2E_EmptyDocumentFails(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	doc := ingest(t, env, "blank.txt", "   \n\n  ")
	assert.Equal(t, "failed", doc.Status)
	assert.Equal(t, "no extractable text", doc.FailureReason)
}

func TestE2E_SearchIsScopedToDocument(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	osDoc := ingest(t, env, "os-notes.md", lectureNotes)
	bioDoc := ingest(t, env, "bio.md", "# Cells\n\nMitochondria produce energy for the cell through respiration.")
	env.ProcessIndexJobs()

	resp := env.Get("/documents/" + osDoc.ID + "/search?" + url.Values{"q": {"what does the TLB cache"}, "k": {"2"}}.Encode())
	require.Equal(t, http.StatusOK, resp.Status, resp.Error)

	var search struct {
		Results []struct {
			Score   float32 `json:"score"`
			Segment struct {
				Text string `json:"text"`
			} `json:"segment"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &search))
	require.NotEmpty(t, search.Results)
	assert.LessOrEqual(t, len(search.Results), 2)
	assert.Contains(t, search.Results[0].Segment.Text, "TLB")
	for _, r := range search.Results {
		assert.NotContains(t, r.Segment.Text, "Mitochondria")
	}

	resp = env.Get("/documents/" + bioDoc.ID + "/search?q=TLB")
	require.Equal(t, http.StatusOK, resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, &search))
	for _, r := range search.Results {
		assert.NotContains(t, r.Segment.Text, "TLB")
	}
}

func TestE2E_GenerateWithFallback(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	doc := ingest(t, env, "os-notes.md", lectureNotes)
	env.ProcessIndexJobs()

	resp := env.Post("/documents/"+doc.ID+"/artifacts", map[string]interface{}{"kind": "flashcards", "num_items": 1})
	require.Equal(t, http.StatusCreated, resp.Status, resp.Error)

	var artifact struct {
		ID        string          `json:"id"`
		Kind      string          `json:"kind"`
		ItemCount int             `json:"item_count"`
		Payload   json.RawMessage `json:"payload"`
		Metadata  struct {
			Provider string `json:"provider"`
			Attempts []struct {
				Provider string `json:"provider"`
				Outcome  string `json:"outcome"`
			} `json:"attempts"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &artifact))
	assert.Equal(t, "flashcards", artifact.Kind)
	assert.Equal(t, 1, artifact.ItemCount)
	assert.Equal(t, "fake", artifact.Metadata.Provider)
	require.Len(t, artifact.Metadata.Attempts, 2)
	assert.Equal(t, "down", artifact.Metadata.Attempts[0].Provider)
	assert.NotEqual(t, "success", artifact.Metadata.Attempts[0].Outcome)
	assert.Equal(t, "success", artifact.Metadata.Attempts[1].Outcome)

	var cards []map[string]string
	require.NoError(t, json.Unmarshal(artifact.Payload, &cards))
	require.Len(t, cards, 1)
	assert.Equal(t, "paging", cards[0]["topic"])

	resp = env.Post("/documents/"+doc.ID+"/artifacts", map[string]interface{}{"kind": "quiz", "num_items": 1})
	require.Equal(t, http.StatusCreated, resp.Status, resp.Error)
	var quiz struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &quiz))

	resp = env.Post("/artifacts/"+quiz.ID+"/answers", map[string]int{"question_index": 0, "selected": 0})
	require.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"correct":true}`, string(resp.Data))

	resp = env.Post("/artifacts/"+artifact.ID+"/answers", map[string]int{"question_index": 0, "selected": 0})
	assert.Equal(t, http.StatusConflict, resp.Status, "flashcards cannot be answered")

	resp = env.Get("/documents/" + doc.ID + "/artifacts")
	require.Equal(t, http.StatusOK, resp.Status)
	var list struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Len(t, list.Items, 2)
	assert.Equal(t, quiz.ID, list.Items[0].ID, "newest first")
}

func TestE2E_IndexSnapshotSurvivesRestart(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	ingest(t, env, "os-notes.md", lectureNotes)
	env.ProcessIndexJobs()
	require.NoError(t, env.Index.Persist(env.Ctx))
	want := env.Index.Len()
	require.Positive(t, want)

	restarted := env.newIndex()
	require.NoError(t, restarted.Load(env.Ctx))
	assert.Equal(t, want, restarted.Len())
}

func TestE2E_AdminIndexingWhileServing(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	ingest(t, env, "bio.md", "# Cells\n\nMitochondria produce energy for the cell through respiration.")
	env.ProcessIndexJobs()
	served := env.Index.Len()
	require.Positive(t, served)

	doc := ingest(t, env, "os-notes.md", lectureNotes)
	admin := env.newIndex()
	require.NoError(t, admin.Load(env.Ctx))
	require.NoError(t, env.NewIndexWorker(admin).ProcessJobs(env.Ctx))

	resp := env.Get("/documents/" + doc.ID)
	require.Equal(t, http.StatusOK, resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, &doc))
	require.Equal(t, "ready", doc.Status)

	resp = env.Get("/documents/" + doc.ID + "/search?" + url.Values{"q": {"TLB"}}.Encode())
	require.Equal(t, http.StatusOK, resp.Status, resp.Error)
	var search struct {
		Results []json.RawMessage `json:"results"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &search))
	assert.NotEmpty(t, search.Results, "server must see vectors written by another process")

	require.NoError(t, env.Index.Persist(env.Ctx))
	restarted := env.newIndex()
	require.NoError(t, restarted.Load(env.Ctx))
	assert.Equal(t, admin.Len(), restarted.Len())
	assert.Greater(t, restarted.Len(), served)
	assert.Len(t, restarted.RecordsForDocument(doc.ID), len(admin.RecordsForDocument(doc.ID)))
}

func TestE2E_CLIWorkflow(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.BuildBinaries()

	workDir := t.TempDir()
	notes := filepath.Join(workDir, "lecture.md")
	require.NoError(t, os.WriteFile(notes, []byte(lectureNotes), 0600))

	out, err := env.RunStudy(workDir, "add", notes, "--output")
	require.NoError(t, err, out)
	var doc documentData
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "segmented", doc.Status)

	env.ProcessIndexJobs()

	out, err = env.RunStudy(workDir, "search", doc.ID, "page replacement")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Found")

	out, err = env.RunStudy(workDir, "generate", doc.ID, "--kind", "flashcards", "-n", "1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "flashcards")
	assert.Contains(t, out, "Provider: fake")

	out, err = env.RunStudy(workDir, "generate", doc.ID, "--kind", "essay")
	assert.Error(t, err)
	assert.Contains(t, out, "invalid artifact kind")

	out, err = env.RunStudy(workDir, "artifacts", "list", doc.ID)
	require.NoError(t, err, out)
	assert.Contains(t, out, "flashcards")
}
