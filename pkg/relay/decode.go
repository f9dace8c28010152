package relay

import (
	"bytes"
	"encoding/json"
)

// ReplyKind names which upstream response shape produced a reply.
type ReplyKind string

const (
	// ReplyDataText is {"data":{"text":"..."}}.
	ReplyDataText ReplyKind = "data_text"
	// ReplyGeneration is {"response":{"generations":[[{"text":"..."}]]}}.
	ReplyGeneration ReplyKind = "generation"
	// ReplyMessage is {"message":"..."}.
	ReplyMessage ReplyKind = "message"
	// ReplyCompletion is the text of an LLM chat completion.
	ReplyCompletion ReplyKind = "completion"
	// ReplyUnrecognized is any other body; its text is FallbackReply.
	ReplyUnrecognized ReplyKind = "unrecognized"
)

const FallbackReply = "Lo siento, no pude procesar tu mensaje correctamente."

// Reply is a normalized assistant answer.
type Reply struct {
	Kind ReplyKind
	Text string
	// Raw is the upstream body, when the upstream returned JSON.
	Raw json.RawMessage
	// Suggestions is set when the upstream attached search results or
	// products, at the top level or under data. It reveals the
	// suggestions panel.
	Suggestions bool
}

// DecodeReply maps an upstream webhook body onto one of the known reply
// shapes. Shapes are tried in order data.text, generation text, message;
// empty strings do not match. Anything else is ReplyUnrecognized.
func DecodeReply(body []byte) Reply {
	r := Reply{Kind: ReplyUnrecognized, Text: FallbackReply}

	top, ok := decodeObject(body)
	if !ok {
		if json.Valid(body) {
			r.Raw = json.RawMessage(bytes.TrimSpace(body))
		}
		return r
	}
	r.Raw = json.RawMessage(bytes.TrimSpace(body))

	data, _ := decodeObject(top["data"])
	r.Suggestions = hasResults(top) || hasResults(data)

	if text, ok := nonEmptyString(data["text"]); ok {
		r.Kind, r.Text = ReplyDataText, text
		return r
	}
	if text, ok := generationText(top["response"]); ok {
		r.Kind, r.Text = ReplyGeneration, text
		return r
	}
	if text, ok := nonEmptyString(top["message"]); ok {
		r.Kind, r.Text = ReplyMessage, text
		return r
	}
	return r
}

// hasResults reports whether obj carries searchResults or products.
func hasResults(obj map[string]json.RawMessage) bool {
	return truthy(obj["searchResults"]) || truthy(obj["products"])
}

func generationText(raw json.RawMessage) (string, bool) {
	resp, ok := decodeObject(raw)
	if !ok {
		return "", false
	}
	var generations []json.RawMessage
	if err := json.Unmarshal(resp["generations"], &generations); err != nil || len(generations) == 0 {
		return "", false
	}
	var first []json.RawMessage
	if err := json.Unmarshal(generations[0], &first); err != nil || len(first) == 0 {
		return "", false
	}
	gen, ok := decodeObject(first[0])
	if !ok {
		return "", false
	}
	return nonEmptyString(gen["text"])
}

func nonEmptyString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return "", false
	}
	return s, true
}

// truthy follows the usual JSON truthiness: absent, null, false, 0 and ""
// are false; everything else, including empty arrays and objects, is true.
func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	switch string(raw) {
	case "null", "false", "0", `""`:
		return false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f != 0
	}
	return true
}
