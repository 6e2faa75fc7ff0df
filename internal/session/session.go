// Package session keeps the per-session TTS configuration of connected
// WhatsApp numbers and Instagram accounts.
package session

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/caji-assist/replymode/internal/ttspolicy"
)

// Config is the TTS configuration of one session.
type Config struct {
	// TTSEnabled turns voice replies on for the session.
	TTSEnabled bool `json:"tts_enabled"`

	// Voice is the prebuilt TTS voice name (e.g., "Kore", "Aoede").
	Voice string `json:"tts_voice"`

	// Rules is the TTS rule configuration: an object, a JSON-encoded string, or null.
	Rules json.RawMessage `json:"tts_rules,omitempty" swaggertype:"object"`
}

// RawRules classifies the stored rules for the evaluator.
func (c Config) RawRules() ttspolicy.RawRules {
	return ttspolicy.FromJSON(c.Rules)
}

// RulesFromText turns a rules setting read from a config file into raw JSON.
// Valid JSON is kept as is; any other text, such as a plain-language rule
// description, is stored as a JSON string so it still encodes and the
// evaluator treats it as unparseable rules.
func RulesFromText(text string) json.RawMessage {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if json.Valid([]byte(text)) {
		return json.RawMessage(text)
	}
	quoted, _ := json.Marshal(text)
	return json.RawMessage(quoted)
}

// Update is a partial configuration change. Nil fields are left unchanged.
type Update struct {
	TTSEnabled *bool           `json:"tts_enabled,omitempty"`
	Voice      *string         `json:"tts_voice,omitempty"`
	Rules      json.RawMessage `json:"tts_rules,omitempty" swaggertype:"object"`
}

// Store holds session configs in memory.
type Store struct {
	mu       sync.RWMutex
	defaults Config
	configs  map[string]Config
}

// NewStore creates a store returning defaults for unknown sessions.
func NewStore(defaults Config) *Store {
	return &Store{
		defaults: defaults,
		configs:  make(map[string]Config),
	}
}

// Get returns the session's config, or the defaults when none was set.
func (s *Store) Get(sessionID string) Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cfg, ok := s.configs[sessionID]; ok {
		return cfg
	}
	return s.defaults
}

// Merge applies u over the session's current config and returns the result.
func (s *Store) Merge(sessionID string, u Update) Config {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[sessionID]
	if !ok {
		cfg = s.defaults
	}
	if u.TTSEnabled != nil {
		cfg.TTSEnabled = *u.TTSEnabled
	}
	if u.Voice != nil && *u.Voice != "" {
		cfg.Voice = *u.Voice
	}
	if u.Rules != nil {
		cfg.Rules = append(json.RawMessage(nil), u.Rules...)
	}
	s.configs[sessionID] = cfg
	return cfg
}
