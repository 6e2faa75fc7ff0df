package ttspolicy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// RuleSet is the parsed TTS rule configuration of a session.
type RuleSet struct {
	// AudioOnly forces audio for every reply.
	AudioOnly bool `mapstructure:"audioOnly" json:"audioOnly"`

	// AudioOnRequest enables the persistent per-contact voice mode toggled by phrases.
	AudioOnRequest bool `mapstructure:"audioOnRequest" json:"audioOnRequest"`

	// AudioOnAudioReceived forces audio when the customer sent a voice note.
	AudioOnAudioReceived bool `mapstructure:"audioOnAudioReceived" json:"audioOnAudioReceived"`
}

// hasActiveRule reports whether any conditional rule is switched on.
func (r RuleSet) hasActiveRule() bool {
	return r.AudioOnRequest || r.AudioOnAudioReceived
}

// RawRules is the rule configuration as it arrives from session settings:
// Absent, Parsed or Serialized.
type RawRules interface {
	isRawRules()
}

// Absent means no rule configuration exists.
type Absent struct{}

// Parsed is an already decoded rule set.
type Parsed RuleSet

// Serialized is a JSON-encoded rule set that still needs parsing.
type Serialized string

func (Absent) isRawRules()     {}
func (Parsed) isRawRules()     {}
func (Serialized) isRawRules() {}

// FromAny classifies a loosely typed rule value, such as one read from a
// config map or a decoded JSON document.
func FromAny(v any) RawRules {
	switch r := v.(type) {
	case nil:
		return Absent{}
	case RawRules:
		return r
	case RuleSet:
		return Parsed(r)
	case *RuleSet:
		if r == nil {
			return Absent{}
		}
		return Parsed(*r)
	case string:
		if r == "" {
			return Absent{}
		}
		return Serialized(r)
	case []byte:
		return FromJSON(r)
	case json.RawMessage:
		return FromJSON(r)
	case map[string]any:
		rules, err := decodeRuleMap(r)
		if err != nil {
			// Keep the malformed shape visible to Normalize so it fails open.
			return Serialized(fmt.Sprintf("%v", r))
		}
		return Parsed(rules)
	default:
		return Serialized(fmt.Sprintf("%v", v))
	}
}

// FromJSON classifies a raw JSON value: null or empty is Absent, a JSON string
// is Serialized with its content, anything else is Serialized as-is.
func FromJSON(raw []byte) RawRules {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Absent{}
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return Serialized(string(trimmed))
		}
		return FromAny(s)
	}
	return Serialized(string(trimmed))
}

// Normalize resolves raw rules to a rule set. When ok is false the
// configuration is absent or malformed and the caller must fail open; reason
// says which.
func Normalize(raw RawRules) (rules RuleSet, reason Reason, ok bool) {
	switch r := raw.(type) {
	case nil, Absent:
		return RuleSet{}, ReasonNoRules, false
	case Parsed:
		return RuleSet(r), "", true
	case Serialized:
		return parseSerialized(string(r))
	default:
		return RuleSet{}, ReasonUnparseableRules, false
	}
}

func parseSerialized(s string) (RuleSet, Reason, bool) {
	if strings.TrimSpace(s) == "" {
		return RuleSet{}, ReasonNoRules, false
	}

	var doc any
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		return RuleSet{}, ReasonUnparseableRules, false
	}

	switch v := doc.(type) {
	case nil:
		return RuleSet{}, ReasonNoRules, false
	case map[string]any:
		rules, err := decodeRuleMap(v)
		if err != nil {
			return RuleSet{}, ReasonUnparseableRules, false
		}
		return rules, "", true
	default:
		// Valid JSON that is not an object carries no rule, which is the same
		// as an empty rule set.
		return RuleSet{}, "", true
	}
}

// decodeRuleMap decodes a free-form map into a RuleSet. Keys match ignoring
// case, '_' and '-'. Flags must be booleans, "true" or 1; anything else is
// an error so the rule set fails open instead of reading as false.
func decodeRuleMap(input map[string]any) (RuleSet, error) {
	var rules RuleSet
	if len(input) == 0 {
		return rules, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "mapstructure",
		Result:     &rules,
		DecodeHook: ruleFlagHook,
		MatchName: func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		},
	})
	if err != nil {
		return RuleSet{}, err
	}
	if err := decoder.Decode(input); err != nil {
		return RuleSet{}, err
	}
	return rules, nil
}

// ruleFlagHook converts the accepted truthy spellings of a rule flag to bool
// and rejects every other non-bool value.
func ruleFlagHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Bool {
		return data, nil
	}
	if b, ok := data.(bool); ok {
		return b, nil
	}
	if str, ok := data.(string); ok {
		if strings.EqualFold(strings.TrimSpace(str), "true") {
			return true, nil
		}
		return nil, fmt.Errorf("rule flag %q is not a boolean", str)
	}

	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.Int() == 1 {
			return true, nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v.Uint() == 1 {
			return true, nil
		}
	case reflect.Float32, reflect.Float64:
		if v.Float() == 1 {
			return true, nil
		}
	}
	return nil, fmt.Errorf("rule flag %v is not a boolean", data)
}

func normalizeKey(value string) string {
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", "")
	value = strings.ReplaceAll(value, "-", "")
	return value
}
