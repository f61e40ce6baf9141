package server

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/tidwall/gjson"
)

// sessionFingerprint derives the deterministic session id SPEC_FULL.md
// §4.4 calls for: a fingerprint over the message prefix. This
// implementation hashes the role and raw content value of the first two
// messages (or all of them if fewer than two), so the id stays the same
// while a conversation grows and changes when either of those messages
// changes (SPEC_FULL.md §9 "Open question").
func sessionFingerprint(body []byte, messagesPath string) string {
	messages := gjson.GetBytes(body, messagesPath)
	if !messages.Exists() || !messages.IsArray() {
		return ""
	}
	h := sha256.New()
	count := 0
	messages.ForEach(func(_, msg gjson.Result) bool {
		h.Write([]byte(msg.Get("role").String()))
		h.Write([]byte{0})
		h.Write([]byte(msg.Get("content").Raw))
		h.Write([]byte{0})
		count++
		return count < 2
	})
	return hex.EncodeToString(h.Sum(nil))[:32]
}
