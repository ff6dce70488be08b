// Package config assembles run settings from defaults, an optional YAML
// file, .env and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tbsynth/internal/artifact"
	llmclient "tbsynth/internal/llm/client"
)

// DefaultFile is read when present and no explicit file is given.
const DefaultFile = "tbsynth.yaml"

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Loop      LoopConfig      `yaml:"loop"`
	Toolchain ToolchainConfig `yaml:"toolchain"`
	Artifact  ArtifactConfig  `yaml:"artifact"`
	Parallel  int             `yaml:"parallel"`
}

type LLMConfig struct {
	Provider      string        `yaml:"provider"`
	Model         string        `yaml:"model"`
	Project       string        `yaml:"project"`
	Location      string        `yaml:"location"`
	OpenAIBaseURL string        `yaml:"openai_base_url"`
	RPS           float64       `yaml:"rps"`
	Burst         int           `yaml:"burst"`
	Retries       int           `yaml:"retries"`
	RetryBase     time.Duration `yaml:"retry_base"`
	LogPrompts    bool          `yaml:"log_prompts"`

	// Secrets come from the environment only.
	GeminiAPIKey string `yaml:"-"`
	OpenAIAPIKey string `yaml:"-"`
	GroqAPIKey   string `yaml:"-"`
}

type LoopConfig struct {
	MaxIterations     int  `yaml:"max_iterations"`
	SkipContractCheck bool `yaml:"skip_contract_check"`
	LegacyExtract     bool `yaml:"legacy_extract"`
}

type ToolchainConfig struct {
	Iverilog       string        `yaml:"iverilog"`
	VVP            string        `yaml:"vvp"`
	Flags          []string      `yaml:"flags"`
	IncludeDirs    []string      `yaml:"include_dirs"`
	CompileTimeout time.Duration `yaml:"compile_timeout"`
	SimTimeout     time.Duration `yaml:"sim_timeout"`
	CacheSize      int           `yaml:"cache_size"`
}

type ArtifactConfig struct {
	Backend   string `yaml:"backend"`
	Dir       string `yaml:"dir"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
	DSN       string `yaml:"-"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  llmclient.ProviderGemini,
			Retries:   3,
			RetryBase: 2 * time.Second,
		},
		Loop: LoopConfig{MaxIterations: 10},
		Toolchain: ToolchainConfig{
			Iverilog:       "iverilog",
			VVP:            "vvp",
			Flags:          []string{"-g2012"},
			CompileTimeout: 60 * time.Second,
			SimTimeout:     2 * time.Minute,
			CacheSize:      128,
		},
		Artifact: ArtifactConfig{Region: "us-east-1", Bucket: "tbsynth-artifacts", UseSSL: true},
		Parallel: 1,
	}
}

// Load builds a Config. path names a YAML file; when empty DefaultFile is
// used if it exists. A .env file in the working directory is honoured.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultFile
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	l := &c.LLM
	l.Provider = firstNonEmpty(env("LLM_PROVIDER"), l.Provider)
	l.Model = firstNonEmpty(env("LLM_MODEL"), l.Model)
	l.Project = firstNonEmpty(env("GOOGLE_CLOUD_PROJECT"), l.Project)
	l.Location = firstNonEmpty(env("GOOGLE_CLOUD_LOCATION"), l.Location)
	l.OpenAIBaseURL = firstNonEmpty(env("OPENAI_BASE_URL"), l.OpenAIBaseURL)
	l.GeminiAPIKey = firstNonEmpty(env("GEMINI_API_KEY"), env("GOOGLE_API_KEY"))
	l.OpenAIAPIKey = env("OPENAI_API_KEY")
	l.GroqAPIKey = env("GROQ_API_KEY")
	errs = append(errs,
		envFloat("LLM_RPS", &l.RPS),
		envInt("LLM_BURST", &l.Burst),
		envInt("LLM_RETRIES", &l.Retries),
		envDuration("LLM_RETRY_BASE", &l.RetryBase),
		envBool("LLM_LOG_PROMPTS", &l.LogPrompts),
		envInt("TB_MAX_ITERATIONS", &c.Loop.MaxIterations),
		envBool("TB_SKIP_CONTRACT_CHECK", &c.Loop.SkipContractCheck),
		envBool("TB_LEGACY_EXTRACT", &c.Loop.LegacyExtract),
		envInt("TB_PARALLEL", &c.Parallel),
	)

	t := &c.Toolchain
	t.Iverilog = firstNonEmpty(env("IVERILOG_BIN"), t.Iverilog)
	t.VVP = firstNonEmpty(env("VVP_BIN"), t.VVP)
	if raw := env("IVERILOG_INCLUDE"); raw != "" {
		t.IncludeDirs = splitList(raw)
	}
	errs = append(errs,
		envDuration("COMPILE_TIMEOUT", &t.CompileTimeout),
		envDuration("SIM_TIMEOUT", &t.SimTimeout),
		envInt("VALIDATE_CACHE_SIZE", &t.CacheSize),
	)

	a := &c.Artifact
	a.Backend = firstNonEmpty(env("ARTIFACT_BACKEND"), a.Backend)
	a.Dir = firstNonEmpty(env("ARTIFACT_DIR"), a.Dir)
	a.Endpoint = firstNonEmpty(env("ARTIFACT_S3_ENDPOINT"), env("ARTIFACT_MINIO_ENDPOINT"), a.Endpoint)
	a.Region = firstNonEmpty(env("ARTIFACT_S3_REGION"), a.Region)
	a.Bucket = firstNonEmpty(env("ARTIFACT_S3_BUCKET"), a.Bucket)
	a.AccessKey = firstNonEmpty(env("ARTIFACT_S3_ACCESS_KEY"), env("MINIO_ROOT_USER"))
	a.SecretKey = firstNonEmpty(env("ARTIFACT_S3_SECRET_KEY"), env("MINIO_ROOT_PASSWORD"))
	a.DSN = env("DATABASE_URL")
	errs = append(errs, envBool("ARTIFACT_S3_USE_SSL", &a.UseSSL))

	return errors.Join(errs...)
}

// Validate rejects settings no run could use.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.LLM.Provider) {
	case llmclient.ProviderGemini, llmclient.ProviderVertex, llmclient.ProviderOpenAI, llmclient.ProviderGroq, llmclient.ProviderFake:
	default:
		errs = append(errs, fmt.Errorf("config: unknown LLM_PROVIDER %q", c.LLM.Provider))
	}
	if c.LLM.RPS < 0 {
		errs = append(errs, fmt.Errorf("config: LLM_RPS must not be negative"))
	}
	if c.LLM.Retries < 1 {
		errs = append(errs, fmt.Errorf("config: LLM_RETRIES must be at least 1"))
	}
	if c.Loop.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("config: TB_MAX_ITERATIONS must be at least 1"))
	}
	if c.Parallel < 1 {
		errs = append(errs, fmt.Errorf("config: parallel must be at least 1"))
	}
	if c.Toolchain.CompileTimeout <= 0 || c.Toolchain.SimTimeout <= 0 {
		errs = append(errs, fmt.Errorf("config: toolchain timeouts must be positive"))
	}
	return errors.Join(errs...)
}

// Provider maps the LLM settings onto the client catalog.
func (c *Config) Provider() llmclient.ProviderConfig {
	return llmclient.ProviderConfig{
		Provider:      strings.ToLower(c.LLM.Provider),
		Model:         c.LLM.Model,
		GeminiAPIKey:  c.LLM.GeminiAPIKey,
		Project:       c.LLM.Project,
		Location:      c.LLM.Location,
		OpenAIAPIKey:  c.LLM.OpenAIAPIKey,
		OpenAIBaseURL: c.LLM.OpenAIBaseURL,
		GroqAPIKey:    c.LLM.GroqAPIKey,
	}
}

// Store maps the artifact settings onto artifact.Open. Without a backend
// or directory, testbenches go next to the problem they belong to.
func (c *Config) Store(problemsDir string) artifact.Config {
	a := c.Artifact
	return artifact.Config{
		Backend: firstNonEmpty(a.Backend, artifact.BackendDisk),
		Dir:     firstNonEmpty(a.Dir, problemsDir),
		DSN:     a.DSN,
		S3: artifact.S3Config{
			Endpoint:  a.Endpoint,
			Region:    a.Region,
			AccessKey: a.AccessKey,
			SecretKey: a.SecretKey,
			Bucket:    a.Bucket,
			UseSSL:    a.UseSSL,
		},
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envInt(key string, dst *int) error {
	raw := env(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("config: %s=%q: %w", key, raw, err)
	}
	*dst = v
	return nil
}

func envFloat(key string, dst *float64) error {
	raw := env(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("config: %s=%q: %w", key, raw, err)
	}
	*dst = v
	return nil
}

func envBool(key string, dst *bool) error {
	raw := env(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("config: %s=%q: %w", key, raw, err)
	}
	*dst = v
	return nil
}

// envDuration accepts Go durations ("90s") or bare seconds ("90").
func envDuration(key string, dst *time.Duration) error {
	raw := env(key)
	if raw == "" {
		return nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: %s=%q: %w", key, raw, err)
	}
	*dst = v
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == os.PathListSeparator }) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
