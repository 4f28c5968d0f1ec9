// Package config provides YAML-based configuration loading for bugbot.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level bugbot configuration, loaded from bugbot.yaml.
type Config struct {
	Token         string              `yaml:"token"`
	Prefix        string              `yaml:"prefix"`
	PrefixAliases []string            `yaml:"prefix_aliases"`
	PrefixMention bool                `yaml:"prefix_mention"`
	StancesNeeded int                 `yaml:"stances_needed"`
	MaxNotes      int                 `yaml:"max_notes"`
	RewardRole    string              `yaml:"reward_role"`
	Tool          string              `yaml:"tool"`
	Channels      ChannelsConfig      `yaml:"channels"`
	Roles         map[string][]string `yaml:"roles"`
	Emojis        EmojiConfig         `yaml:"emojis"`
	Database      DatabaseConfig      `yaml:"database"`
	Dashboard     DashboardConfig     `yaml:"dashboard"`
	Digest        DigestConfig        `yaml:"digest"`
	Slack         SlackConfig         `yaml:"slack"`
}

// ChannelsConfig names the Discord channels the bot manages.
type ChannelsConfig struct {
	Approval string                 `yaml:"approval"`
	Denied   string                 `yaml:"denied"`
	Boards   map[string]BoardConfig `yaml:"boards"`
}

// BoardConfig is one board channel and the GitHub repository its approved
// reports are filed in.
type BoardConfig struct {
	Repo  string `yaml:"repo"`
	Token string `yaml:"token"`
	Color string `yaml:"color"`
}

// EmojiConfig holds the emoji used in bot responses.
type EmojiConfig struct {
	TickYes    string `yaml:"tick_yes"`
	TickNo     string `yaml:"tick_no"`
	Note       string `yaml:"note"`
	Attachment string `yaml:"attachment"`
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
}

// DashboardConfig controls the read-only HTTP dashboard.
type DashboardConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// DigestConfig schedules the periodic open-queue summary. An empty schedule
// disables it.
type DigestConfig struct {
	Schedule    string `yaml:"schedule"`
	MinAgeHours int    `yaml:"min_age_hours"`
}

// SlackConfig mirrors lifecycle transitions to a Slack incoming webhook.
// An empty webhook URL disables it.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
}

// Permission is a capability granted to a role.
type Permission string

const (
	CanReport       Permission = "CAN_REPORT"
	CanEdit         Permission = "CAN_EDIT"
	CanApprove      Permission = "CAN_APPROVE"
	CanDeny         Permission = "CAN_DENY"
	CanForceApprove Permission = "CAN_FORCE_APPROVE"
	CanForceDeny    Permission = "CAN_FORCE_DENY"
	CanRevoke       Permission = "CAN_REVOKE"
	CanAttach       Permission = "CAN_ATTACH"
	CanNote         Permission = "CAN_NOTE"
	CanLock         Permission = "CAN_LOCK"
)

// EveryoneRole is the roles key whose permissions apply to every member.
const EveryoneRole = "everyone"

var permissionNames = map[string]Permission{
	string(CanReport):       CanReport,
	string(CanEdit):         CanEdit,
	string(CanApprove):      CanApprove,
	string(CanDeny):         CanDeny,
	string(CanForceApprove): CanForceApprove,
	string(CanForceDeny):    CanForceDeny,
	string(CanRevoke):       CanRevoke,
	string(CanAttach):       CanAttach,
	string(CanNote):         CanNote,
	string(CanLock):         CanLock,
	"CAN_UNLOCK":            CanLock,
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in default values.
func (c *Config) applyDefaults() {
	if c.Prefix == "" {
		c.Prefix = "!"
	}
	if c.StancesNeeded == 0 {
		c.StancesNeeded = 3
	}
	if c.MaxNotes == 0 {
		c.MaxNotes = 5
	}
	if c.Emojis.TickYes == "" {
		c.Emojis.TickYes = "✅"
	}
	if c.Emojis.TickNo == "" {
		c.Emojis.TickNo = "❌"
	}
	if c.Emojis.Note == "" {
		c.Emojis.Note = "📝"
	}
	if c.Emojis.Attachment == "" {
		c.Emojis.Attachment = "📎"
	}

	c.Database.Driver = strings.ToLower(c.Database.Driver)
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			c.Database.Path = "bugbot.db"
		}
	case "mysql":
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "bugbot"
		}
	}

	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
	if c.Digest.MinAgeHours == 0 {
		c.Digest.MinAgeHours = 24
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Token == "" {
		errs = append(errs, "token is required")
	}
	for i, alias := range c.PrefixAliases {
		if strings.TrimSpace(alias) == "" {
			errs = append(errs, fmt.Sprintf("prefix_aliases[%d] is empty", i))
		}
	}
	if c.StancesNeeded < 1 {
		errs = append(errs, fmt.Sprintf("stances_needed must be positive, got %d", c.StancesNeeded))
	}
	if c.MaxNotes < 1 {
		errs = append(errs, fmt.Sprintf("max_notes must be positive, got %d", c.MaxNotes))
	}
	if c.Channels.Approval == "" {
		errs = append(errs, "channels.approval is required")
	}
	if len(c.Channels.Boards) == 0 {
		errs = append(errs, "at least one board is required")
	}
	for _, id := range sortedKeys(c.Channels.Boards) {
		b := c.Channels.Boards[id]
		if id == c.Channels.Approval || id == c.Channels.Denied {
			errs = append(errs, fmt.Sprintf("channels.boards[%s] reuses a managed channel", id))
		}
		if owner, name, ok := strings.Cut(b.Repo, "/"); !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			errs = append(errs, fmt.Sprintf("channels.boards[%s].repo must be owner/name, got %q", id, b.Repo))
		}
		if b.Token == "" {
			errs = append(errs, fmt.Sprintf("channels.boards[%s].token is required", id))
		}
		if _, err := parseColor(b.Color); err != nil {
			errs = append(errs, fmt.Sprintf("channels.boards[%s].color: %v", id, err))
		}
	}
	for _, role := range sortedKeys(c.Roles) {
		for _, p := range c.Roles[role] {
			if _, ok := permissionNames[strings.ToUpper(p)]; !ok {
				errs = append(errs, fmt.Sprintf("roles[%s]: unknown permission %q", role, p))
			}
		}
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be mysql or sqlite, got %q", c.Database.Driver))
	}
	if c.Dashboard.Port < 1 || c.Dashboard.Port > 65535 {
		errs = append(errs, fmt.Sprintf("dashboard.port out of range: %d", c.Dashboard.Port))
	}
	if c.Digest.Schedule != "" {
		if _, err := ParseSchedule(c.Digest.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("digest.schedule: %v", err))
		}
	}
	if c.Digest.MinAgeHours < 0 {
		errs = append(errs, "digest.min_age_hours must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Allowed reports whether a member holding roleIDs has p. Permissions
// listed under EveryoneRole apply to all members.
func (c *Config) Allowed(roleIDs []string, p Permission) bool {
	if hasPermission(c.Roles[EveryoneRole], p) {
		return true
	}
	for _, id := range roleIDs {
		if hasPermission(c.Roles[id], p) {
			return true
		}
	}
	return false
}

// Prefixes returns the command prefixes: the main prefix first, then its
// aliases.
func (c *Config) Prefixes() []string {
	return append([]string{c.Prefix}, c.PrefixAliases...)
}

// IsBoard reports whether channelID is a configured board.
func (c *Config) IsBoard(channelID string) bool {
	_, ok := c.Channels.Boards[channelID]
	return ok
}

// Managed reports whether the bot owns the conversation in channelID.
func (c *Config) Managed(channelID string) bool {
	if channelID == "" {
		return false
	}
	return channelID == c.Channels.Approval || channelID == c.Channels.Denied || c.IsBoard(channelID)
}

// ColorValue returns the board's embed color as an RGB integer. Boards
// without a color use 0.
func (b BoardConfig) ColorValue() int {
	v, _ := parseColor(b.Color)
	return v
}

// ParseSchedule parses a five-field cron expression the way the digest
// scheduler does.
func ParseSchedule(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

func hasPermission(granted []string, p Permission) bool {
	for _, g := range granted {
		if permissionNames[strings.ToUpper(g)] == p {
			return true
		}
	}
	return false
}

func parseColor(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 16, 32)
	if err != nil || v < 0 || v > 0xFFFFFF {
		return 0, fmt.Errorf("invalid hex color %q", s)
	}
	return int(v), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
