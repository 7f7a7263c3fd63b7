package provider

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/studyforge/internal/domain"
)

const chainFile = `
providers:
  - name: groq
    base_url: https://api.groq.com/openai/v1
    api_key_env: TEST_GROQ_KEY
    model: llama-3.1-70b-versatile
    timeout: 30s
    max_retries: 1
  - name: deepseek
    base_url: https://api.deepseek.com/v1
    api_key_env: TEST_DEEPSEEK_KEY
    model: deepseek-chat
  - name: ollama
    base_url: http://localhost:11434/v1
    model: llama3.1
chains:
  default: [groq, ollama]
  quiz: [deepseek, groq]
`

func envFrom(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestParseFile(t *testing.T) {
	fc, err := ParseFile([]byte(chainFile))

	require.NoError(t, err)
	require.Len(t, fc.Providers, 3)
	assert.Equal(t, 30*time.Second, fc.Providers[0].Timeout)
	assert.Equal(t, 1, fc.Providers[0].MaxRetries)
	assert.Equal(t, []string{"deepseek", "groq"}, fc.Chains["quiz"])
}

func TestParseFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no providers", "providers: []"},
		{"missing model", "providers:\n  - name: a\n"},
		{"duplicate", "providers:\n  - {name: a, model: m}\n  - {name: a, model: m}\n"},
		{"unknown provider in chain", "providers:\n  - {name: a, model: m}\nchains:\n  default: [b]\n"},
		{"provider repeated in chain", "providers:\n  - {name: a, model: m}\nchains:\n  default: [a, a]\n"},
		{"provider repeated in kind chain", "providers:\n  - {name: a, model: m}\n  - {name: b, model: m}\nchains:\n  quiz: [a, b, a]\n"},
		{"unknown kind", "providers:\n  - {name: a, model: m}\nchains:\n  essay: [a]\n"},
		{"not yaml", "providers: [:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFile([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(chainFile), 0o600))

	fc, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, fc.Providers, 3)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBuild_SkipsProvidersWithoutKeys(t *testing.T) {
	fc, err := ParseFile([]byte(chainFile))
	require.NoError(t, err)

	gw, err := Build(fc, envFrom(map[string]string{"TEST_GROQ_KEY": "g"}), nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"groq", "ollama"}, gw.Chain(domain.ArtifactKindFlashcards))
	assert.Equal(t, []string{"groq"}, gw.Chain(domain.ArtifactKindQuiz))
}

func TestBuild_KindChainFallsBackToDefaultWhenEmpty(t *testing.T) {
	fc, err := ParseFile([]byte(chainFile))
	require.NoError(t, err)

	gw, err := Build(fc, envFrom(nil), nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"ollama"}, gw.Chain(domain.ArtifactKindQuiz))
}

func TestDefaultFileConfig_Order(t *testing.T) {
	fc := DefaultFileConfig(EnvDefaults{OllamaBaseURL: "http://localhost:11434/", Timeout: 45 * time.Second})

	require.NoError(t, fc.Validate())
	names := make([]string, 0, len(fc.Providers))
	for _, p := range fc.Providers {
		names = append(names, p.Name)
		assert.Equal(t, 45*time.Second, p.Timeout)
	}
	assert.Equal(t, []string{"gemini", "groq", "deepseek", "openai", "ollama"}, names)
	assert.Equal(t, "http://localhost:11434/v1", fc.Providers[4].BaseURL)

	gw, err := Build(fc, envFrom(map[string]string{
		"STUDYFORGE_DEEPSEEK_API_KEY": "d",
		"STUDYFORGE_OPENAI_API_KEY":   "o",
	}), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"deepseek", "openai", "ollama"}, gw.Chain(domain.ArtifactKindPlan))
}

func TestDefaultFileConfig_NoOllama(t *testing.T) {
	fc := DefaultFileConfig(EnvDefaults{})

	assert.Len(t, fc.Providers, 4)
}

func TestDefaultFileConfig_KindPreferences(t *testing.T) {
	fc := DefaultFileConfig(EnvDefaults{OllamaBaseURL: "http://localhost:11434"})
	require.NoError(t, fc.Validate())

	assert.Equal(t, []string{"deepseek", "groq", "gemini", "openai", "ollama"}, fc.Chains["quiz"])
	assert.Equal(t, []string{"groq", "gemini", "deepseek", "openai", "ollama"}, fc.Chains["flashcards"])
	assert.Equal(t, []string{"groq", "gemini", "deepseek", "openai", "ollama"}, fc.Chains["plan"])
	assert.Equal(t, []string{"gemini", "groq", "deepseek", "openai", "ollama"}, fc.Chains["chat_answer"])

	all := map[string]string{
		"STUDYFORGE_GEMINI_API_KEY":   "g",
		"STUDYFORGE_GROQ_API_KEY":     "q",
		"STUDYFORGE_DEEPSEEK_API_KEY": "d",
		"STUDYFORGE_OPENAI_API_KEY":   "o",
	}
	gw, err := Build(fc, envFrom(all), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"deepseek", "groq", "gemini", "openai", "ollama"}, gw.Chain(domain.ArtifactKindQuiz))
	assert.Equal(t, []string{"gemini", "groq", "deepseek", "openai", "ollama"}, gw.Chain(domain.ArtifactKindChatAnswer))
}
