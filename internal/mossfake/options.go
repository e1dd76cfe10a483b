package mossfake

import (
	"time"

	"github.com/okian/antiplag/pkg/logger"
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLanguages replaces the set of accepted languages.
func WithLanguages(langs ...string) Option {
	return func(s *Server) {
		if len(langs) == 0 {
			return
		}
		s.languages = make(map[string]struct{}, len(langs))
		for _, l := range langs {
			s.languages[l] = struct{}{}
		}
	}
}

// WithPublicURL sets the base URL printed in report links, for servers
// reachable under another name than their listen address.
func WithPublicURL(u string) Option {
	return func(s *Server) {
		s.publicURL = u
	}
}

// WithIOTimeout bounds one socket session.
func WithIOTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.ioTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
