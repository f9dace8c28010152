package relay

import (
	"bytes"
	"encoding/json"
	"maps"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/go-go-golems/partes/pkg/vehicle"
)

// ChatRequest is the body accepted by the chat relay endpoints:
// {"type":"chat","data":{"message":"...","metadata":{...}}}.
type ChatRequest struct {
	Type string   `json:"type"`
	Data ChatData `json:"data"`
}

type ChatData struct {
	Message  string    `json:"message"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// UserCar is the vehicle context attached to a chat turn. Fields that
// arrive as numbers or booleans are read as their JSON text, and a decoded
// UserCar marshals back to the bytes it came from.
type UserCar struct {
	Brand   string `json:"brand"`
	Model   string `json:"model"`
	Year    string `json:"year"`
	Version string `json:"version,omitempty"`
	Engine  string `json:"engine,omitempty"`

	raw json.RawMessage
}

type userCarAlias UserCar

func (u *UserCar) UnmarshalJSON(b []byte) error {
	obj, ok := decodeObject(b)
	if !ok {
		return errors.New("userCar is not an object")
	}
	*u = UserCar{
		Brand:   looseString(obj["brand"]),
		Model:   looseString(obj["model"]),
		Year:    looseString(obj["year"]),
		Version: looseString(obj["version"]),
		Engine:  looseString(obj["engine"]),
		raw:     append(json.RawMessage(nil), bytes.TrimSpace(b)...),
	}
	return nil
}

func (u UserCar) MarshalJSON() ([]byte, error) {
	if u.raw != nil {
		return u.raw, nil
	}
	return json.Marshal(userCarAlias(u))
}

func UserCarFromVehicle(v vehicle.Vehicle) *UserCar {
	if v.IsZero() {
		return nil
	}
	return &UserCar{Brand: v.Brand, Model: v.Model, Year: v.Year, Version: v.Version, Engine: v.Engine}
}

type ClientInfo struct {
	UserAgent string `json:"userAgent"`
	Platform  string `json:"platform"`
}

// Metadata travels with each chat turn. Known keys are read leniently: a
// known key whose value has an unexpected type is kept in Extra as is, like
// every unknown key, and forwarded untouched.
type Metadata struct {
	UserCar      *UserCar    `json:"userCar,omitempty"`
	Timestamp    string      `json:"timestamp,omitempty"`
	Source       string      `json:"source,omitempty"`
	SessionID    string      `json:"sessionId,omitempty"`
	Version      string      `json:"version,omitempty"`
	UserLanguage string      `json:"userLanguage,omitempty"`
	ClientInfo   *ClientInfo `json:"clientInfo,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type metadataAlias Metadata

var knownMetadataKeys = map[string]struct{}{
	"userCar": {}, "timestamp": {}, "source": {}, "sessionId": {},
	"version": {}, "userLanguage": {}, "clientInfo": {},
}

func (m *Metadata) UnmarshalJSON(b []byte) error {
	all, ok := decodeObject(b)
	if !ok {
		return errors.New("metadata is not an object")
	}
	md := Metadata{}
	for k, v := range all {
		if _, known := knownMetadataKeys[k]; known && isNull(v) {
			continue
		}
		if md.setKnown(k, v) {
			continue
		}
		if md.Extra == nil {
			md.Extra = map[string]json.RawMessage{}
		}
		md.Extra[k] = v
	}
	*m = md
	return nil
}

// setKnown stores v in the typed field for k and reports whether it did.
func (m *Metadata) setKnown(k string, v json.RawMessage) bool {
	var str *string
	switch k {
	case "userCar":
		uc := &UserCar{}
		if uc.UnmarshalJSON(v) != nil {
			return false
		}
		m.UserCar = uc
		return true
	case "clientInfo":
		ci := &ClientInfo{}
		if json.Unmarshal(v, ci) != nil {
			return false
		}
		m.ClientInfo = ci
		return true
	case "timestamp":
		str = &m.Timestamp
	case "source":
		str = &m.Source
	case "sessionId":
		str = &m.SessionID
	case "version":
		str = &m.Version
	case "userLanguage":
		str = &m.UserLanguage
	default:
		return false
	}
	return json.Unmarshal(v, str) == nil
}

// Has reports whether key was set, as a typed field or in Extra.
func (m Metadata) Has(key string) bool {
	if _, ok := m.Extra[key]; ok {
		return true
	}
	switch key {
	case "userCar":
		return m.UserCar != nil
	case "clientInfo":
		return m.ClientInfo != nil
	case "timestamp":
		return m.Timestamp != ""
	case "source":
		return m.Source != ""
	case "sessionId":
		return m.SessionID != ""
	case "version":
		return m.Version != ""
	case "userLanguage":
		return m.UserLanguage != ""
	}
	return false
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(metadataAlias(m))
	if err != nil || len(m.Extra) == 0 {
		return b, err
	}
	out := map[string]json.RawMessage{}
	for k, v := range m.Extra {
		out[k] = v
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(b, &known); err != nil {
		return nil, err
	}
	for k, v := range known {
		out[k] = v
	}
	return json.Marshal(out)
}

// looseString reads a JSON string, or the literal text of any other
// non-null scalar.
func looseString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	if raw[0] == '{' || raw[0] == '[' {
		return ""
	}
	return string(raw)
}

// SessionContext is the caller identity the relay merges into metadata when
// the request did not carry it. It is passed explicitly rather than read from
// any ambient store.
type SessionContext struct {
	SessionID string
	Language  string
	UserAgent string
	Platform  string
	Source    string
	Version   string
	Vehicle   vehicle.Vehicle
}

// CompletionMessage is one entry of an LLM chat history.
type CompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleSystem    = "system"
	RoleAssistant = "assistant"
)

// Turn is one user message plus everything a reply strategy may need.
type Turn struct {
	Message  string
	Metadata Metadata
	History  []CompletionMessage
}

// NewTurn merges caller metadata with the session context. Caller values win,
// except the timestamp which is always stamped with now.
func NewTurn(req ChatRequest, sc SessionContext, now time.Time) Turn {
	md := Metadata{}
	if req.Data.Metadata != nil {
		md = *req.Data.Metadata
	}
	md.Timestamp = now.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	if _, ok := md.Extra["timestamp"]; ok {
		md.Extra = maps.Clone(md.Extra)
		delete(md.Extra, "timestamp")
	}
	if !md.Has("sessionId") {
		md.SessionID = sc.SessionID
	}
	if !md.Has("userLanguage") {
		md.UserLanguage = sc.Language
	}
	if !md.Has("source") {
		md.Source = sc.Source
	}
	if !md.Has("version") {
		md.Version = sc.Version
	}
	if !md.Has("clientInfo") && (sc.UserAgent != "" || sc.Platform != "") {
		md.ClientInfo = &ClientInfo{UserAgent: sc.UserAgent, Platform: sc.Platform}
	}
	if !md.Has("userCar") {
		md.UserCar = UserCarFromVehicle(sc.Vehicle)
	}
	return Turn{
		Message:  req.Data.Message,
		Metadata: md,
	}
}

// VehicleLine renders the vehicle context as a short sentence for LLM
// prompts; empty without a vehicle.
func (m Metadata) VehicleLine() string {
	if m.UserCar == nil {
		return ""
	}
	parts := []string{m.UserCar.Brand, m.UserCar.Model, m.UserCar.Year, m.UserCar.Version, m.UserCar.Engine}
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			fields = append(fields, p)
		}
	}
	if len(fields) == 0 {
		return ""
	}
	return "Vehículo del usuario: " + strings.Join(fields, " ")
}
