package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("defaults fill every zero field", func(t *testing.T) {
		var cfg Config
		cfg.ApplyDefaults()

		if cfg.MaxRetries != 2 || cfg.QualityThreshold != 0.7 {
			t.Errorf("retry defaults = %d/%v", cfg.MaxRetries, cfg.QualityThreshold)
		}
		if cfg.VideoResolution != "1080x1920" || cfg.VideoFPS != 30 {
			t.Errorf("video defaults = %s/%d", cfg.VideoResolution, cfg.VideoFPS)
		}
		if cfg.StoreDriver != "sqlite" || cfg.StoreDSN != "./podshorts.db" {
			t.Errorf("store defaults = %s/%s", cfg.StoreDriver, cfg.StoreDSN)
		}
		if cfg.SpeechConcurrency != 2 || cfg.ImageConcurrency != 4 || cfg.MaxSteps != 100 {
			t.Errorf("concurrency defaults = %d/%d/%d", cfg.SpeechConcurrency, cfg.ImageConcurrency, cfg.MaxSteps)
		}
	})

	t.Run("defaults keep explicit values", func(t *testing.T) {
		cfg := Config{MaxRetries: 5, StoreDriver: "memory"}
		cfg.ApplyDefaults()
		if cfg.MaxRetries != 5 {
			t.Errorf("max retries = %d", cfg.MaxRetries)
		}
		if cfg.StoreDSN != "" {
			t.Errorf("memory driver must not get a sqlite DSN, got %q", cfg.StoreDSN)
		}
	})

	t.Run("validate", func(t *testing.T) {
		roster := []RosterMember{{Key: "ava", Name: "Ava"}}
		tests := []struct {
			name    string
			cfg     Config
			wantErr string
		}{
			{"valid", Config{QualityThreshold: 0.7, Roster: roster}, ""},
			{"threshold above one", Config{QualityThreshold: 1.2, Roster: roster}, "quality_threshold"},
			{"negative retries", Config{QualityThreshold: 0.7, MaxRetries: -1, Roster: roster}, "max_retries"},
			{"empty roster", Config{QualityThreshold: 0.7}, "roster"},
			{"unknown default host", Config{QualityThreshold: 0.7, Roster: roster, DefaultHost: "zoe"}, "default_host"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.cfg.Validate()
				if tt.wantErr == "" {
					if err != nil {
						t.Fatal(err)
					}
					return
				}
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("err = %v, want %q", err, tt.wantErr)
				}
			})
		}
	})

	t.Run("validate defaults the host to the first member", func(t *testing.T) {
		cfg := Config{QualityThreshold: 0.7, Roster: []RosterMember{{Key: "ava"}, {Key: "ben"}}}
		if err := cfg.Validate(); err != nil {
			t.Fatal(err)
		}
		if cfg.DefaultHost != "ava" {
			t.Errorf("default host = %q", cfg.DefaultHost)
		}
	})

	t.Run("load parses yaml and validates", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "podshorts.yaml")
		doc := `
max_retries: 3
quality_threshold: 0.8
store_driver: memory
roster:
  - key: ava
    name: Ava
    voice_id: voice-ava
  - key: ben
    name: Ben
default_voice: voice-default
`
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.MaxRetries != 3 || cfg.QualityThreshold != 0.8 || cfg.StoreDriver != "memory" {
			t.Errorf("cfg = %+v", cfg)
		}
		if len(cfg.Roster) != 2 || cfg.Roster[0].VoiceID != "voice-ava" {
			t.Errorf("roster = %+v", cfg.Roster)
		}
		if cfg.VideoFPS != 30 {
			t.Error("defaults must apply after parsing")
		}
	})

	t.Run("load rejects missing and invalid files", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error for missing file")
		}

		bad := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(bad, []byte("roster: [{key: ava}]\nquality_threshold: 2.0\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(bad); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("resolve voices", func(t *testing.T) {
		cfg := Config{
			Roster: []RosterMember{
				{Key: "ava", VoiceID: "voice-ava"},
				{Key: "ben"},
			},
			DefaultVoice: "voice-default",
		}

		t.Run("nil selection keeps a host voice", func(t *testing.T) {
			voices := cfg.ResolveVoices(nil)
			if len(voices) != 1 || voices["host"] != "voice-default" {
				t.Errorf("voices = %v", voices)
			}
		})

		t.Run("participants map by position", func(t *testing.T) {
			voices := cfg.ResolveVoices(&SpeakerSelection{Host: "ava", Participants: []string{"ben", "ava"}})
			want := map[string]string{
				"host":          "voice-ava",
				"participant_1": "voice-default",
				"participant_2": "voice-ava",
			}
			for tag, voice := range want {
				if voices[tag] != voice {
					t.Errorf("voices[%s] = %q, want %q", tag, voices[tag], voice)
				}
			}
		})
	})
}
