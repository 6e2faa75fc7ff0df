package ttspolicy

import "strings"

// Phrases are the Portuguese utterances that switch a contact's voice mode.
// Matching is substring containment against the lower-cased message.
type Phrases struct {
	Start []string `mapstructure:"start"`
	Stop  []string `mapstructure:"stop"`
}

// DefaultPhrases are the built-in start/stop lists.
var DefaultPhrases = Phrases{
	Start: []string{
		"manda audio", "manda áudio", "mande audio", "mande áudio",
		"envia audio", "envia áudio", "envie audio", "envie áudio",
		"pode falar", "fala pra mim", "fala para mim",
		"me fala", "me explica por audio", "me explica por áudio",
		"audio por favor", "áudio por favor", "quero audio", "quero áudio",
		"prefiro audio", "prefiro áudio", "por audio", "por áudio",
		"em audio", "em áudio", "via audio", "via áudio",
		"responde em audio", "responde em áudio", "responda em audio", "responda em áudio",
	},
	Stop: []string{
		"para com audio", "para com áudio", "parar audio", "parar áudio",
		"desliga audio", "desliga áudio", "desativar audio", "desativar áudio",
		"quero texto", "volta pro texto", "volta para texto", "volta ao texto",
		"texto por favor", "sem audio", "sem áudio", "cancela audio", "cancela áudio",
		"prefiro texto", "manda texto", "mande texto", "envia texto", "envie texto",
		"responde em texto", "responda em texto", "só texto", "somente texto",
	},
}

// WithDefaults fills empty lists from DefaultPhrases and lower-cases every
// pattern so configured overrides behave like the built-ins.
func (p Phrases) WithDefaults() Phrases {
	out := Phrases{Start: p.Start, Stop: p.Stop}
	if len(out.Start) == 0 {
		out.Start = DefaultPhrases.Start
	}
	if len(out.Stop) == 0 {
		out.Stop = DefaultPhrases.Stop
	}
	out.Start = lowerAll(out.Start)
	out.Stop = lowerAll(out.Stop)
	return out
}

// WantsStop reports whether the lower-cased message contains a stop phrase.
func (p Phrases) WantsStop(lowerMessage string) bool {
	return containsAny(lowerMessage, p.Stop)
}

// WantsStart reports whether the lower-cased message contains a start phrase.
func (p Phrases) WantsStart(lowerMessage string) bool {
	return containsAny(lowerMessage, p.Start)
}

func containsAny(haystack string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(haystack, pattern) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
