package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	root    string
	verbose bool
	logOut  io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithRoot sets the directory the project root is searched from.
func WithRoot(dir string) Option {
	return func(a *application) {
		a.root = dir
	}
}

// WithVerbose forces debug logging regardless of the configured level.
func WithVerbose(v bool) Option {
	return func(a *application) {
		a.verbose = v
	}
}

// WithLogOutput redirects log output, stderr by default.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}
