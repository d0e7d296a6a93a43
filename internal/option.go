package internal

import "github.com/oakheim/inkwell/internal/queue"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config      *Config
	transcriber queue.Transcriber
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithTranscriber overrides the transcription provider. Defaults to the
// HTTP transcriber built from the config's transcriber URL.
func WithTranscriber(t queue.Transcriber) Option {
	return func(a *application) {
		a.transcriber = t
	}
}
