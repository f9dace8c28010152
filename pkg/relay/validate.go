package relay

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ChatType is the only request type the webhook relay accepts.
const ChatType = "chat"

// ParseChatRequest decodes and validates a chat relay body. Every shape
// problem is collected into a single *ValidationError.
func ParseChatRequest(body []byte) (ChatRequest, error) {
	verr := &ValidationError{}

	top, ok := decodeObject(body)
	if !ok {
		verr.add("Expected object")
		return ChatRequest{}, verr
	}

	req := ChatRequest{}
	if raw, ok := present(top, "type"); !ok {
		verr.add("Required", "type")
	} else if err := json.Unmarshal(raw, &req.Type); err != nil {
		verr.add("Expected string", "type")
	}

	rawData, ok := present(top, "data")
	if !ok {
		verr.add("Required", "data")
		return ChatRequest{}, verr
	}
	data, ok := decodeObject(rawData)
	if !ok {
		verr.add("Expected object", "data")
		return ChatRequest{}, verr
	}

	if raw, ok := present(data, "message"); !ok {
		verr.add("Required", "data", "message")
	} else if err := json.Unmarshal(raw, &req.Data.Message); err != nil {
		verr.add("Expected string", "data", "message")
	}

	if raw, ok := present(data, "metadata"); ok {
		md := &Metadata{}
		if err := md.UnmarshalJSON(raw); err != nil {
			verr.add("Expected object", "data", "metadata")
		} else {
			req.Data.Metadata = md
		}
	}

	if err := verr.orNil(); err != nil {
		return ChatRequest{}, err
	}
	return req, nil
}

// RequireChatType enforces type == "chat", which the webhook relay demands
// on top of the basic shape.
func (r ChatRequest) RequireChatType() error {
	if r.Type != ChatType {
		verr := &ValidationError{}
		verr.add(`Expected "chat"`, "type")
		return verr
	}
	return nil
}

// CompletionRequest is the body of the LLM completion endpoint.
type CompletionRequest struct {
	Messages []CompletionMessage `json:"messages"`
}

func ParseCompletionRequest(body []byte) (CompletionRequest, error) {
	verr := &ValidationError{}

	top, ok := decodeObject(body)
	if !ok {
		verr.add("Expected object")
		return CompletionRequest{}, verr
	}
	raw, ok := present(top, "messages")
	if !ok {
		verr.add("Required", "messages")
		return CompletionRequest{}, verr
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		verr.add("Expected array", "messages")
		return CompletionRequest{}, verr
	}

	out := CompletionRequest{Messages: make([]CompletionMessage, 0, len(items))}
	for i, item := range items {
		idx := strconv.Itoa(i)
		obj, ok := decodeObject(item)
		if !ok {
			verr.add("Expected object", "messages", idx)
			continue
		}
		m := CompletionMessage{}
		if r, ok := present(obj, "role"); !ok {
			verr.add("Required", "messages", idx, "role")
		} else if err := json.Unmarshal(r, &m.Role); err != nil {
			verr.add("Expected string", "messages", idx, "role")
		} else if m.Role != RoleUser && m.Role != RoleSystem && m.Role != RoleAssistant {
			verr.add("Invalid enum value. Expected 'user' | 'system' | 'assistant'", "messages", idx, "role")
		}
		if r, ok := present(obj, "content"); !ok {
			verr.add("Required", "messages", idx, "content")
		} else if err := json.Unmarshal(r, &m.Content); err != nil {
			verr.add("Expected string", "messages", idx, "content")
		}
		out.Messages = append(out.Messages, m)
	}

	if err := verr.orNil(); err != nil {
		return CompletionRequest{}, err
	}
	return out, nil
}

func decodeObject(b []byte) (map[string]json.RawMessage, bool) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, false
	}
	return m, true
}

// present reports whether key exists with a non-null value.
func present(m map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := m[key]
	if !ok || isNull(raw) {
		return nil, false
	}
	return raw, true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
