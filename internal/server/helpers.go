package server

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// requestWantsStream reports whether the client's raw JSON body set
// "stream": true, used identically across the Anthropic and OpenAI
// dialect handlers.
func requestWantsStream(body []byte) bool {
	return gjson.GetBytes(body, "stream").Bool()
}

// estimateTokenCount gives a plausible count_tokens response in the
// absence of a local tokenizer: ~4 bytes per token over the whole raw
// request body (minimum 1), the common rough heuristic for
// English-centric model families.
func estimateTokenCount(body []byte) int {
	n := len(body) / 4
	if n < 1 {
		n = 1
	}
	return n
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func nowUnixSeconds() int64 {
	return time.Now().Unix()
}

func marshalCompact(v any) ([]byte, error) {
	return json.Marshal(v)
}
