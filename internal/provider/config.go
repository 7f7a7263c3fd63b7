package provider

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/cloo-solutions/studyforge/internal/logger"
)

// DefaultChainKey names the chain used for kinds without their own entry
const DefaultChainKey = "default"

// Spec describes one provider in the chain file.
type Spec struct {
	Name             string        `yaml:"name"`
	BaseURL          string        `yaml:"base_url"`
	APIKeyEnv        string        `yaml:"api_key_env"`
	Model            string        `yaml:"model"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	StructuredOutput bool          `yaml:"structured_output"`
}

// FileConfig is the provider chain file.
//
//	providers:
//	  - name: groq
//	    base_url: https://api.groq.com/openai/v1
//	    api_key_env: STUDYFORGE_GROQ_API_KEY
//	    model: llama-3.1-70b-versatile
//	    timeout: 30s
//	chains:
//	  default: [gemini, groq, deepseek, openai, ollama]
//	  quiz: [deepseek, groq]
type FileConfig struct {
	Providers []Spec              `yaml:"providers"`
	Chains    map[string][]string `yaml:"chains"`
}

// LoadFile reads and validates a provider chain file.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provider file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile decodes and validates provider chain YAML.
func ParseFile(data []byte) (*FileConfig, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse provider file: %w", err)
	}
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	return &fc, nil
}

// Validate checks provider names are unique and every chain refers to known
// providers and kinds, naming each provider at most once.
func (fc *FileConfig) Validate() error {
	if len(fc.Providers) == 0 {
		return fmt.Errorf("provider file lists no providers")
	}
	known := make(map[string]bool, len(fc.Providers))
	for i, p := range fc.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider %d: name is required", i)
		}
		if p.Model == "" {
			return fmt.Errorf("provider %s: model is required", p.Name)
		}
		if known[p.Name] {
			return fmt.Errorf("provider %s: duplicate name", p.Name)
		}
		if p.Timeout < 0 || p.MaxRetries < 0 {
			return fmt.Errorf("provider %s: timeout and max_retries must not be negative", p.Name)
		}
		known[p.Name] = true
	}
	for key, names := range fc.Chains {
		if key != DefaultChainKey && !domain.IsValidArtifactKind(domain.ArtifactKind(key)) {
			return fmt.Errorf("chain %q: unknown artifact kind", key)
		}
		seen := make(map[string]bool, len(names))
		for _, name := range names {
			if !known[name] {
				return fmt.Errorf("chain %q: unknown provider %q", key, name)
			}
			if seen[name] {
				return fmt.Errorf("chain %q: provider %q listed more than once", key, name)
			}
			seen[name] = true
		}
	}
	return nil
}

// EnvDefaults configures the chain built when no provider file is given.
type EnvDefaults struct {
	OllamaBaseURL string
	Timeout       time.Duration
}

// kindPreferences puts the providers each artifact kind does best with at
// the front of its chain; the rest follow in default order.
var kindPreferences = map[domain.ArtifactKind][]string{
	domain.ArtifactKindQuiz:       {"deepseek", "groq"},
	domain.ArtifactKindFlashcards: {"groq"},
	domain.ArtifactKindPlan:       {"groq"},
	domain.ArtifactKindChatAnswer: {"gemini"},
}

// DefaultFileConfig returns the built-in providers: gemini, groq, deepseek,
// openai, then ollama when a base URL is set. The default chain tries them in
// that order and each kind's chain starts with its preferred providers.
// Providers whose key variable is empty are skipped by Build.
func DefaultFileConfig(env EnvDefaults) *FileConfig {
	fc := &FileConfig{
		Providers: []Spec{
			{
				Name:      "gemini",
				BaseURL:   "https://generativelanguage.googleapis.com/v1beta/openai/",
				APIKeyEnv: "STUDYFORGE_GEMINI_API_KEY",
				Model:     "gemini-1.5-flash",
			},
			{
				Name:      "groq",
				BaseURL:   "https://api.groq.com/openai/v1",
				APIKeyEnv: "STUDYFORGE_GROQ_API_KEY",
				Model:     "llama-3.1-70b-versatile",
			},
			{
				Name:      "deepseek",
				BaseURL:   "https://api.deepseek.com/v1",
				APIKeyEnv: "STUDYFORGE_DEEPSEEK_API_KEY",
				Model:     "deepseek-chat",
			},
			{
				Name:             "openai",
				APIKeyEnv:        "STUDYFORGE_OPENAI_API_KEY",
				Model:            "gpt-4o-mini",
				StructuredOutput: true,
			},
		},
	}
	if env.OllamaBaseURL != "" {
		fc.Providers = append(fc.Providers, Spec{
			Name:    "ollama",
			BaseURL: strings.TrimRight(env.OllamaBaseURL, "/") + "/v1",
			Model:   "llama3.1",
		})
	}
	order := make([]string, len(fc.Providers))
	for i := range fc.Providers {
		fc.Providers[i].Timeout = env.Timeout
		fc.Providers[i].MaxRetries = 1
		order[i] = fc.Providers[i].Name
	}

	fc.Chains = make(map[string][]string, len(kindPreferences))
	for kind, preferred := range kindPreferences {
		chain := slices.Clone(preferred)
		for _, name := range order {
			if !slices.Contains(chain, name) {
				chain = append(chain, name)
			}
		}
		fc.Chains[string(kind)] = chain
	}
	return fc
}

// Build turns a chain file into a Gateway. getenv resolves api_key_env; a
// provider whose key variable is set but empty is left out of every chain.
func Build(fc *FileConfig, getenv func(string) string, log *logger.Logger) (*Gateway, error) {
	if log == nil {
		log = logger.Nop()
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := fc.Validate(); err != nil {
		return nil, err
	}

	members := make(map[string]Member, len(fc.Providers))
	order := make([]string, 0, len(fc.Providers))
	for _, spec := range fc.Providers {
		apiKey := ""
		if spec.APIKeyEnv != "" {
			apiKey = getenv(spec.APIKeyEnv)
			if apiKey == "" {
				log.Debug("provider disabled, key not set", "provider", spec.Name, "env", spec.APIKeyEnv)
				continue
			}
		}
		members[spec.Name] = Member{
			Provider: NewOpenAICompatible(CompatConfig{
				Name:             spec.Name,
				BaseURL:          spec.BaseURL,
				APIKey:           apiKey,
				Model:            spec.Model,
				MaxRetries:       spec.MaxRetries,
				StructuredOutput: spec.StructuredOutput,
			}),
			Timeout: spec.Timeout,
		}
		order = append(order, spec.Name)
	}

	resolve := func(names []string) []Member {
		chain := make([]Member, 0, len(names))
		for _, name := range names {
			if m, ok := members[name]; ok {
				chain = append(chain, m)
			}
		}
		return chain
	}

	defaultNames := order
	if names, ok := fc.Chains[DefaultChainKey]; ok {
		defaultNames = names
	}
	defaultChain := resolve(defaultNames)

	chains := make(map[domain.ArtifactKind][]Member)
	for key, names := range fc.Chains {
		if key == DefaultChainKey {
			continue
		}
		chains[domain.ArtifactKind(key)] = resolve(names)
	}

	if len(defaultChain) == 0 {
		log.Warn("no generation provider is configured, generation will fail")
	}
	gw := NewGateway(defaultChain, chains, log)
	for _, kind := range domain.ArtifactKinds {
		log.Info("provider chain", "kind", kind, "providers", strings.Join(gw.Chain(kind), ","))
	}
	return gw, nil
}
