package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RosterMember is one selectable speaker: a stable key offered by the
// speaker gate plus the voice used when the pipeline synthesizes their
// lines.
type RosterMember struct {
	Key         string `yaml:"key"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	VoiceID     string `yaml:"voice_id"`
}

// Config holds the pipeline's tunables. Zero values are filled in by
// ApplyDefaults; Load reads a YAML file and applies them.
type Config struct {
	// MaxRetries is the retry budget shared by all quality-gated
	// stages. A stage that has failed MaxRetries+1 attempts is done.
	MaxRetries int `yaml:"max_retries"`

	// QualityThreshold is the minimum passing assessment score.
	QualityThreshold float64 `yaml:"quality_threshold"`

	// OutputDir is the base directory for per-run artifacts.
	OutputDir string `yaml:"output_dir"`

	// VideoResolution is the render frame size ("1080x1920" or
	// "720x1280").
	VideoResolution string `yaml:"video_resolution"`

	// VideoFPS is the render frame rate.
	VideoFPS int `yaml:"video_fps"`

	// SpeechConcurrency bounds parallel speech synthesis calls.
	SpeechConcurrency int `yaml:"speech_concurrency"`

	// ImageConcurrency bounds parallel image generation calls.
	ImageConcurrency int `yaml:"image_concurrency"`

	// Roster is the speaker set offered by the speaker gate.
	Roster []RosterMember `yaml:"roster"`

	// DefaultVoice covers roster members with no voice configured.
	DefaultVoice string `yaml:"default_voice"`

	// DefaultHost is the roster key used when a speaker decision names
	// no host. Defaults to the first roster member.
	DefaultHost string `yaml:"default_host"`

	// MaxSteps bounds a single run's total dispatch steps.
	MaxSteps int `yaml:"max_steps"`

	// StoreDriver selects the checkpoint backend: "sqlite", "mysql",
	// or "memory".
	StoreDriver string `yaml:"store_driver"`

	// StoreDSN is the SQLite file path or MySQL DSN.
	StoreDSN string `yaml:"store_dsn"`

	// ReasoningModel and CreativeModel override the provider default
	// model names.
	ReasoningModel string `yaml:"reasoning_model"`
	CreativeModel  string `yaml:"creative_model"`

	// TrendGeo is the Google Trends region code.
	TrendGeo string `yaml:"trend_geo"`

	// BlobContainer is the container published artifacts land in.
	BlobContainer string `yaml:"blob_container"`

	// LogJSON switches event logging to JSONL.
	LogJSON bool `yaml:"log_json"`
}

// ApplyDefaults fills unset fields with working values.
func (c *Config) ApplyDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.QualityThreshold == 0 {
		c.QualityThreshold = 0.7
	}
	if c.OutputDir == "" {
		c.OutputDir = "./output"
	}
	if c.VideoResolution == "" {
		c.VideoResolution = "1080x1920"
	}
	if c.VideoFPS == 0 {
		c.VideoFPS = 30
	}
	if c.SpeechConcurrency == 0 {
		c.SpeechConcurrency = 2
	}
	if c.ImageConcurrency == 0 {
		c.ImageConcurrency = 4
	}
	if c.MaxSteps == 0 {
		c.MaxSteps = 100
	}
	if c.StoreDriver == "" {
		c.StoreDriver = "sqlite"
	}
	if c.StoreDSN == "" && c.StoreDriver == "sqlite" {
		c.StoreDSN = "./podshorts.db"
	}
	if c.TrendGeo == "" {
		c.TrendGeo = "US"
	}
	if c.BlobContainer == "" {
		c.BlobContainer = "podshorts"
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.QualityThreshold < 0 || c.QualityThreshold > 1 {
		return fmt.Errorf("quality_threshold %v outside [0,1]", c.QualityThreshold)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative: %d", c.MaxRetries)
	}
	if len(c.Roster) == 0 {
		return fmt.Errorf("roster cannot be empty")
	}
	if c.DefaultHost == "" {
		c.DefaultHost = c.Roster[0].Key
	}
	if _, ok := c.member(c.DefaultHost); !ok {
		return fmt.Errorf("default_host %q not in roster", c.DefaultHost)
	}
	return nil
}

// Load reads a YAML config file and applies defaults.
func Load(path string) (Config, error) {
	var cfg Config

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// member looks up a roster entry by key.
func (c *Config) member(key string) (RosterMember, bool) {
	for _, m := range c.Roster {
		if m.Key == key {
			return m, true
		}
	}
	return RosterMember{}, false
}

// ResolveVoices maps the selected speakers' tags (host, participant_N)
// to voice identifiers, falling back to DefaultVoice for members with
// no voice configured. Resolved once, at the media stage boundary.
func (c *Config) ResolveVoices(sel *SpeakerSelection) map[string]string {
	voices := make(map[string]string)
	if sel == nil {
		voices["host"] = c.DefaultVoice
		return voices
	}

	hostVoice := c.DefaultVoice
	if m, ok := c.member(sel.Host); ok && m.VoiceID != "" {
		hostVoice = m.VoiceID
	}
	voices["host"] = hostVoice

	for i, key := range sel.Participants {
		voice := c.DefaultVoice
		if m, ok := c.member(key); ok && m.VoiceID != "" {
			voice = m.VoiceID
		}
		voices[fmt.Sprintf("participant_%d", i+1)] = voice
	}
	return voices
}
