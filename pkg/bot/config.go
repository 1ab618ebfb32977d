// Copyright 2024-2026 Aiku AI

package bot

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	"maunium.net/go/mautrix/id"
)

// Misspelling is one spellcheck variant. Case-insensitive variants are
// matched against a lowercased view of the message body.
type Misspelling struct {
	Text          string `yaml:"text"`
	CaseSensitive bool   `yaml:"case_sensitive"`
}

// Repo is a resolved repository shorthand target.
type Repo struct {
	Owner string
	Name  string
}

// Config holds the bot configuration. Raw fields come from YAML; the
// derived lookup structures are built by PostProcess and are the only
// view the dispatch path reads.
type Config struct {
	Homeserver  string `yaml:"homeserver"`
	UserID      string `yaml:"user_id"`
	AccessToken string `yaml:"access_token"`

	StorePath    string `yaml:"store_path"`
	WebhookAddr  string `yaml:"webhook_addr"`
	WebhookToken string `yaml:"webhook_token"`
	GithubToken  string `yaml:"github_token"`

	EnableUnitConversions bool `yaml:"enable_unit_conversions"`
	EnableCorrections     bool `yaml:"enable_corrections"`

	Admins    []string `yaml:"admins"`
	BanRooms  []string `yaml:"ban_rooms"`
	HelpRooms []string `yaml:"help_rooms"`

	// Repos maps a shorthand (matched case-insensitively) to "owner/name".
	Repos map[string]string `yaml:"repos"`

	// Links maps keyword items to absolute URLs; Linkers is the set of
	// keywords allowed on the left of "keyword@item".
	Links   map[string]string `yaml:"links"`
	Linkers []string          `yaml:"linkers"`

	TextExpansions map[string]string `yaml:"text_expansions"`

	// GroupPings maps "%name" targets to user lists. A member starting
	// with "%" refers to another group and is expanded exactly one
	// level at load time; deeper chains are a configuration error.
	GroupPings     map[string][]string `yaml:"group_pings"`
	GroupPingUsers []string            `yaml:"group_ping_users"`

	CorrectionExclusion     []string      `yaml:"correction_exclusion"`
	UnitConversionExclusion []string      `yaml:"unit_conversion_exclusion"`
	CorrectionText          string        `yaml:"correction_text"`
	IncorrectSpellings      []Misspelling `yaml:"incorrect_spellings"`

	admins              map[id.UserID]struct{}
	banRooms            []id.RoomID
	helpRooms           map[id.RoomID]struct{}
	repos               map[string]Repo
	linkers             map[string]struct{}
	groupPings          map[string][]id.UserID
	groupPingUsers      map[id.UserID]struct{}
	correctionExclusion map[id.RoomID]struct{}
	unitExclusions      map[string]struct{}
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

// PostProcess validates the raw config and builds the derived lookup
// structures. It must be called before the config is handed to a
// Dispatcher; dispatch assumes a validated snapshot.
func (c *Config) PostProcess() error {
	if c.Homeserver == "" {
		return fmt.Errorf("config: homeserver is required")
	}
	if !strings.HasPrefix(c.UserID, "@") {
		return fmt.Errorf("config: user_id %q is not a Matrix user ID", c.UserID)
	}
	if c.AccessToken == "" {
		return fmt.Errorf("config: access_token is required")
	}

	c.admins = make(map[id.UserID]struct{}, len(c.Admins))
	for _, u := range c.Admins {
		if !strings.HasPrefix(u, "@") {
			return fmt.Errorf("config: admin %q is not a Matrix user ID", u)
		}
		c.admins[id.UserID(u)] = struct{}{}
	}

	c.banRooms = make([]id.RoomID, 0, len(c.BanRooms))
	for _, r := range c.BanRooms {
		c.banRooms = append(c.banRooms, id.RoomID(r))
	}
	c.helpRooms = make(map[id.RoomID]struct{}, len(c.HelpRooms))
	for _, r := range c.HelpRooms {
		c.helpRooms[id.RoomID(r)] = struct{}{}
	}
	c.correctionExclusion = make(map[id.RoomID]struct{}, len(c.CorrectionExclusion))
	for _, r := range c.CorrectionExclusion {
		c.correctionExclusion[id.RoomID(r)] = struct{}{}
	}

	c.repos = make(map[string]Repo, len(c.Repos))
	for shorthand, target := range c.Repos {
		owner, name, ok := strings.Cut(target, "/")
		if !ok || owner == "" || name == "" {
			return fmt.Errorf("config: repo %q target %q is not owner/name", shorthand, target)
		}
		c.repos[strings.ToLower(shorthand)] = Repo{Owner: owner, Name: name}
	}

	c.linkers = make(map[string]struct{}, len(c.Linkers))
	for _, k := range c.Linkers {
		c.linkers[k] = struct{}{}
	}

	c.groupPingUsers = make(map[id.UserID]struct{}, len(c.GroupPingUsers))
	for _, u := range c.GroupPingUsers {
		if !strings.HasPrefix(u, "@") {
			return fmt.Errorf("config: group ping user %q is not a Matrix user ID", u)
		}
		c.groupPingUsers[id.UserID(u)] = struct{}{}
	}

	if err := c.expandGroupPings(); err != nil {
		return err
	}

	c.unitExclusions = make(map[string]struct{}, len(c.UnitConversionExclusion))
	for _, u := range c.UnitConversionExclusion {
		c.unitExclusions[strings.ToLower(u)] = struct{}{}
	}

	if c.EnableCorrections && len(c.IncorrectSpellings) > 0 {
		if n := strings.Count(c.CorrectionText, "{}"); n != 2 {
			return fmt.Errorf("config: correction_text must contain exactly two {} slots, found %d", n)
		}
	}

	return nil
}

// expandGroupPings resolves "%group" aliases inside group member lists.
// Exactly one level of indirection is allowed: a member of a referenced
// group that is itself an alias is a configuration error.
func (c *Config) expandGroupPings() error {
	c.groupPings = make(map[string][]id.UserID, len(c.GroupPings))
	for name, members := range c.GroupPings {
		seen := make(map[id.UserID]struct{})
		var out []id.UserID
		add := func(raw string) error {
			if !strings.HasPrefix(raw, "@") {
				return fmt.Errorf("config: group ping %q member %q is not a Matrix user ID", name, raw)
			}
			u := id.UserID(raw)
			if _, ok := seen[u]; !ok {
				seen[u] = struct{}{}
				out = append(out, u)
			}
			return nil
		}
		for _, member := range members {
			alias, isAlias := strings.CutPrefix(member, "%")
			if !isAlias {
				if err := add(member); err != nil {
					return err
				}
				continue
			}
			ref, ok := c.GroupPings[alias]
			if !ok {
				return fmt.Errorf("config: group ping %q references unknown group %q", name, alias)
			}
			for _, nested := range ref {
				if strings.HasPrefix(nested, "%") {
					return fmt.Errorf("config: group ping %q alias %q contains nested alias %q (one level of expansion only)", name, alias, nested)
				}
				if err := add(nested); err != nil {
					return err
				}
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
		c.groupPings[name] = out
	}
	return nil
}

// IsAdmin reports whether the user is in the admin set.
func (c *Config) IsAdmin(user id.UserID) bool {
	_, ok := c.admins[user]
	return ok
}

// LoadConfig reads, parses and post-processes a YAML config file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.PostProcess(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
