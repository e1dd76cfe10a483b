package moss

import (
	"net/http"
	"time"

	"github.com/okian/antiplag/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithServer sets the host:port of the socket endpoint.
func WithServer(addr string) Option {
	return func(c *Client) {
		if addr != "" {
			c.server = addr
		}
	}
}

// WithUserID sets the service-assigned account id.
func WithUserID(id int) Option {
	return func(c *Client) {
		if id > 0 {
			c.userID = id
		}
	}
}

// WithLanguage sets the declared source language.
func WithLanguage(lang string) Option {
	return func(c *Client) {
		if lang != "" {
			c.language = lang
		}
	}
}

// WithIgnoreLimit sets how many submissions may share a segment before it is
// treated as boilerplate.
func WithIgnoreLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.ignoreLimit = n
		}
	}
}

// WithShow caps the number of matches in the report.
func WithShow(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.show = n
		}
	}
}

// WithComment attaches a comment to every report.
func WithComment(comment string) Option {
	return func(c *Client) {
		c.comment = comment
	}
}

// WithBaseFiles sends files as shared scaffolding ahead of submissions.
func WithBaseFiles(paths ...string) Option {
	return func(c *Client) {
		c.baseFiles = append([]string(nil), paths...)
	}
}

// WithDirectoryMode sets the service's per-directory submission flag.
func WithDirectoryMode(on bool) Option {
	return func(c *Client) {
		c.directory = on
	}
}

// WithExperimental sets the service's experimental server flag.
func WithExperimental(on bool) Option {
	return func(c *Client) {
		c.experimental = on
	}
}

// WithSourceExt selects which files of a problem directory are sent.
func WithSourceExt(ext string) Option {
	return func(c *Client) {
		if ext != "" {
			c.sourceExt = ext
		}
	}
}

// WithTimeouts sets the dial timeout and the deadline for one whole socket
// exchange. Zero values leave the defaults.
func WithTimeouts(dial, io time.Duration) Option {
	return func(c *Client) {
		if dial > 0 {
			c.dialTimeout = dial
		}
		if io > 0 {
			c.ioTimeout = io
		}
	}
}

// WithHTTPClient sets the client used to fetch reports.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}
