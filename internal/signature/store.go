// Package signature implements the three-tier thought-signature cache
// described in SPEC_FULL.md §4.7 and the model-family compatibility check
// of §4.8. Thought signatures are opaque strings Upstream attaches to
// thinking-enabled streaming output; they must be echoed back verbatim on
// later turns that reference the same tool call, or the whole request is
// rejected as having a corrupted thought signature.
package signature

import (
	"strings"
	"sync"
)

// MinValidLength is the minimum signature length SPEC_FULL.md §4.1 step
// 6(c) and §4.7/§4.8 treat as trustworthy enough to echo back to Upstream on
// a later turn.
const MinValidLength = 50

// MinParseableLength is the lower bar SPEC_FULL.md §4.1 steps 2 and 3 use to
// decide whether a Thinking block's signature is well-formed at all (as
// opposed to MinValidLength's higher bar for whether it's safe to resolve
// and reuse across turns).
const MinParseableLength = 10

// Store is the process-wide signature cache. The zero value is not usable;
// construct with New.
type Store struct {
	mu sync.Mutex

	// byToolUseID caches the last signature seen for a given tool_use id.
	byToolUseID map[string]entry

	// bySession caches the last signature seen in a given session.
	bySession map[string]entry

	// global is the process-wide fallback slot, updated only when a longer
	// signature arrives (length-only replacement, SPEC_FULL.md §3).
	global entry
}

type entry struct {
	signature string
	family    string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byToolUseID: make(map[string]entry),
		bySession:   make(map[string]entry),
	}
}

// Observe records a signature seen for toolUseID within session (either may
// be empty if unknown), tagged with the model family it came from. It
// always updates the per-tool-use and per-session slots, and updates the
// global slot only if sig is strictly longer than what is currently stored
// there.
func (s *Store) Observe(sessionID, toolUseID, family, sig string) {
	if sig == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{signature: sig, family: family}
	if toolUseID != "" {
		s.byToolUseID[toolUseID] = e
	}
	if sessionID != "" {
		s.bySession[sessionID] = e
	}
	if len(sig) > len(s.global.signature) {
		s.global = e
	}
}

// Resolve looks up a signature for toolUseID, falling back to the session's
// last-seen signature and finally the process-global slot. It returns the
// empty string if nothing usable is cached, or if the cached signature's
// family is incompatible with targetModel (SPEC_FULL.md §4.8) — in which
// case the caller must downgrade the corresponding thinking block to text.
func (s *Store) Resolve(sessionID, toolUseID, targetModel string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := []entry{}
	if toolUseID != "" {
		if e, ok := s.byToolUseID[toolUseID]; ok {
			candidates = append(candidates, e)
		}
	}
	if sessionID != "" {
		if e, ok := s.bySession[sessionID]; ok {
			candidates = append(candidates, e)
		}
	}
	if s.global.signature != "" {
		candidates = append(candidates, s.global)
	}

	for _, e := range candidates {
		if len(e.signature) >= MinValidLength && FamiliesCompatible(e.family, targetModel) {
			return e.signature
		}
	}
	return ""
}

// familyPrefixes lists the model-name substrings SPEC_FULL.md §4.8
// recognizes as distinct compatibility families.
var familyPrefixes = []string{"gemini-1.5", "gemini-2.0", "claude-3-5", "claude-3-7"}

// FamiliesCompatible reports whether a and b are the same model, or share a
// recognized family prefix (SPEC_FULL.md §4.8). An empty family (unknown
// origin) is treated as compatible with anything, since withholding a
// signature of unknown provenance is a separate decision made by the
// caller's MinValidLength check, not this function.
func FamiliesCompatible(a, b string) bool {
	if a == "" || b == "" || a == b {
		return true
	}
	af, aok := matchFamily(a)
	bf, bok := matchFamily(b)
	if !aok || !bok {
		return false
	}
	return af == bf
}

func matchFamily(model string) (string, bool) {
	for _, p := range familyPrefixes {
		if strings.Contains(model, p) {
			return p, true
		}
	}
	return "", false
}
