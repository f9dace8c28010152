package webui

import (
	"time"

	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/schema"

	"github.com/go-go-golems/partes/pkg/conversation"
)

const SectionSlug = "server"

type Settings struct {
	Addr                 string `glazed:"addr"`
	SessionIdleSeconds   int    `glazed:"session-idle-seconds"`
	EvictIntervalSeconds int    `glazed:"evict-interval-seconds"`
	WSIdleSeconds        int    `glazed:"ws-idle-seconds"`
	TransitionDelayMs    int    `glazed:"transition-delay-ms"`
	ReplyDelayMs         int    `glazed:"reply-delay-ms"`
	AppVersion           string `glazed:"app-version"`
}

func NewSection() (schema.Section, error) {
	return schema.NewSection(
		SectionSlug,
		"HTTP server and session settings",
		schema.WithFields(
			fields.New("addr", fields.TypeString, fields.WithDefault(":8080"),
				fields.WithHelp("Listen address")),
			fields.New("session-idle-seconds", fields.TypeInteger, fields.WithDefault(1800),
				fields.WithHelp("Evict sessions idle for this long (0 = never)")),
			fields.New("evict-interval-seconds", fields.TypeInteger, fields.WithDefault(60),
				fields.WithHelp("How often idle sessions are looked for")),
			fields.New("ws-idle-seconds", fields.TypeInteger, fields.WithDefault(60),
				fields.WithHelp("Discard a session's websocket pool after it has been empty this long")),
			fields.New("transition-delay-ms", fields.TypeInteger, fields.WithDefault(300),
				fields.WithHelp("Duration of the search mode transition")),
			fields.New("reply-delay-ms", fields.TypeInteger, fields.WithDefault(1000),
				fields.WithHelp("Delay of canned replies to searches, attachments and voice notes")),
			fields.New("app-version", fields.TypeString, fields.WithDefault("1.0"),
				fields.WithHelp("Version tag attached to chat metadata")),
		),
	)
}

// SessionConfig converts the delay settings.
func (s Settings) SessionConfig() conversation.Config {
	return conversation.Config{
		TransitionDelay: time.Duration(s.TransitionDelayMs) * time.Millisecond,
		ReplyDelay:      time.Duration(s.ReplyDelayMs) * time.Millisecond,
	}
}
