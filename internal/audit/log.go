package audit

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Logger writes the audit stream to the structured log. It is the default
// sink when no kafka brokers are configured.
type Logger struct{}

func NewLogger() Logger {
	return Logger{}
}

func (l Logger) Publish(event Event) {
	b, err := json.Marshal(event)
	if err != nil {
		log.Warn().Err(err).Str("type", string(event.Type)).Msg("could not marshal audit event")
		return
	}
	log.Info().
		Str("audit", string(event.Type)).
		Str("coin", string(event.Coin)).
		RawJSON("event", b).
		Msg("audit")
}

// Multi fans one event out to several sinks.
type Multi []Publisher

func (m Multi) Publish(event Event) {
	for _, p := range m {
		p.Publish(event)
	}
}
