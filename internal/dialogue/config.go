package dialogue

import "time"

// Config defines fields used for reaching the external dialogue
// engine, parsed from environment variables.
type Config struct {
	BaseURL string        `env:"DIALOGUE_URL" envDefault:"http://127.0.0.1:8085"`
	Timeout time.Duration `env:"DIALOGUE_TIMEOUT" envDefault:"15s"`
}
