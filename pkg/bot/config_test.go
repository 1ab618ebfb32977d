// Copyright 2024-2026 Aiku AI

package bot

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
	"maunium.net/go/mautrix/id"
)

func TestConfigUnmarshalYAML(t *testing.T) {
	t.Parallel()
	input := `
homeserver: https://matrix.example.com
user_id: "@bot:example.com"
access_token: secret
enable_unit_conversions: true
repos:
  jf: jellyfin/jellyfin
links:
  faq: https://example.com/faq
linkers: [link]
incorrect_spellings:
  - text: jellyfish
    case_sensitive: false
`
	var cfg Config
	if err := yaml.Unmarshal([]byte(input), &cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if cfg.Homeserver != "https://matrix.example.com" {
		t.Errorf("Homeserver: got %q", cfg.Homeserver)
	}
	if !cfg.EnableUnitConversions {
		t.Error("EnableUnitConversions: got false, want true")
	}
	if cfg.Repos["jf"] != "jellyfin/jellyfin" {
		t.Errorf("Repos[jf]: got %q", cfg.Repos["jf"])
	}
	if len(cfg.IncorrectSpellings) != 1 || cfg.IncorrectSpellings[0].Text != "jellyfish" {
		t.Errorf("IncorrectSpellings: got %+v", cfg.IncorrectSpellings)
	}
}

func TestConfigPostProcessErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing homeserver",
			mutate:  func(c *Config) { c.Homeserver = "" },
			wantErr: "homeserver",
		},
		{
			name:    "bad user id",
			mutate:  func(c *Config) { c.UserID = "bot" },
			wantErr: "user_id",
		},
		{
			name:    "missing access token",
			mutate:  func(c *Config) { c.AccessToken = "" },
			wantErr: "access_token",
		},
		{
			name:    "bad admin",
			mutate:  func(c *Config) { c.Admins = []string{"alice"} },
			wantErr: "admin",
		},
		{
			name:    "bad repo target",
			mutate:  func(c *Config) { c.Repos = map[string]string{"jf": "jellyfin"} },
			wantErr: "owner/name",
		},
		{
			name: "unknown group alias",
			mutate: func(c *Config) {
				c.GroupPings = map[string][]string{"a": {"%missing"}}
			},
			wantErr: "unknown group",
		},
		{
			name: "nested group alias",
			mutate: func(c *Config) {
				c.GroupPings = map[string][]string{
					"a": {"%b"},
					"b": {"%c"},
					"c": {"@x:example.com"},
				}
			},
			wantErr: "one level",
		},
		{
			name: "correction template slot count",
			mutate: func(c *Config) {
				c.EnableCorrections = true
				c.CorrectionText = "only {} one slot"
				c.IncorrectSpellings = []Misspelling{{Text: "teh"}}
			},
			wantErr: "exactly two",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{
				Homeserver:  "https://matrix.example.com",
				UserID:      "@bot:example.com",
				AccessToken: "token",
			}
			tt.mutate(cfg)
			err := cfg.PostProcess()
			if err == nil {
				t.Fatal("PostProcess should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigGroupPingAliasExpansion(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(t, func(c *Config) {
		c.GroupPings = map[string][]string{
			"backend": {"@bob:example.com", "@alice:example.com"},
			"oncall":  {"%backend", "@carol:example.com"},
		}
	})
	want := []id.UserID{"@alice:example.com", "@bob:example.com", "@carol:example.com"}
	if got := cfg.groupPings["oncall"]; !reflect.DeepEqual(got, want) {
		t.Errorf("oncall members: got %v, want %v", got, want)
	}
}

func TestConfigRepoLookupLowercased(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(t, func(c *Config) {
		c.Repos = map[string]string{"JF": "jellyfin/jellyfin"}
	})
	repo, ok := cfg.repos["jf"]
	if !ok {
		t.Fatal("shorthand should be stored lowercased")
	}
	if repo.Owner != "jellyfin" || repo.Name != "jellyfin" {
		t.Errorf("repo: got %+v", repo)
	}
}

func TestLoadConfigRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
homeserver: https://matrix.example.com
user_id: "@bot:example.com"
access_token: secret
admins: ["@alice:example.com"]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.IsAdmin("@alice:example.com") {
		t.Error("alice should be an admin")
	}
	if cfg.IsAdmin("@bob:example.com") {
		t.Error("bob should not be an admin")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("homeserver: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig should fail on invalid YAML")
	}
}
