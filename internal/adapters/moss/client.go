// Package moss talks to the MOSS similarity service.
//
// Submission uses the service's line protocol over a plain TCP socket:
//
//	moss <userid>
//	directory <0|1>
//	X <0|1>
//	maxmatches <n>
//	show <n>
//	language <lang>          <- server answers "yes" or "no"
//	file <i> <lang> <size> <name>
//	<size raw bytes>         (repeated; i=0 for base files, 1.. for submissions)
//	query 0 <comment>        <- server answers with the report URL
//	end
//
// Reports are plain HTML pages fetched over HTTP.
package moss

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/antiplag/pkg/logger"
	"github.com/okian/antiplag/pkg/metrics"
)

// Defaults match the service's reference submission script.
const (
	DefaultServer      = "moss.stanford.edu:7690"
	DefaultUserID      = 12345
	DefaultLanguage    = "python"
	DefaultIgnoreLimit = 4
	DefaultShow        = 250

	defaultDialTimeout = 30 * time.Second
	defaultIOTimeout   = 5 * time.Minute
	defaultHTTPTimeout = time.Minute
	maxReportBytes     = 32 << 20
)

// Client submits problem directories and fetches the resulting reports.
type Client struct {
	server       string
	userID       int
	language     string
	ignoreLimit  int
	show         int
	comment      string
	baseFiles    []string
	directory    bool
	experimental bool
	sourceExt    string

	dialTimeout time.Duration
	ioTimeout   time.Duration
	httpClient  *http.Client

	logger logger.Logger
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		server:      DefaultServer,
		userID:      DefaultUserID,
		language:    DefaultLanguage,
		ignoreLimit: DefaultIgnoreLimit,
		show:        DefaultShow,
		sourceExt:   ".py",
		dialTimeout: defaultDialTimeout,
		ioTimeout:   defaultIOTimeout,
		httpClient:  &http.Client{Timeout: defaultHTTPTimeout},
		logger:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type upload struct {
	path string
	name string
}

// Submit sends every source file in dir and returns the report URL.
func (c *Client) Submit(ctx context.Context, dir string) (string, error) {
	start := time.Now()
	defer func() { metrics.RecordMossDuration("submit", time.Since(start).Seconds()) }()

	files, err := c.collect(dir)
	if err != nil {
		return "", err
	}

	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.server)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrDial, c.server, err)
	}
	defer conn.Close()

	// Unblock reads and writes when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()
	if c.ioTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.ioTimeout))
	}

	s := &session{w: bufio.NewWriter(conn), r: bufio.NewReader(conn)}
	reportURL, err := c.exchange(s, files)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}

	c.logger.Debug(ctx, "report ready",
		logger.String("dir", dir),
		logger.String("url", reportURL),
		logger.Int("files", len(files)))
	return reportURL, nil
}

func (c *Client) exchange(s *session, files []upload) (string, error) {
	s.printf("moss %d\n", c.userID)
	s.printf("directory %d\n", flag(c.directory))
	s.printf("X %d\n", flag(c.experimental))
	s.printf("maxmatches %d\n", c.ignoreLimit)
	s.printf("show %d\n", c.show)
	s.printf("language %s\n", c.language)
	answer, err := s.readLine()
	if err != nil {
		return "", err
	}
	if answer == "no" {
		s.printf("end\n")
		_ = s.flush()
		return "", fmt.Errorf("%w: %q", ErrLanguageRejected, c.language)
	}

	for _, base := range c.baseFiles {
		if err := s.sendFile(0, c.language, upload{path: base, name: displayName(filepath.Base(base))}); err != nil {
			return "", err
		}
	}
	for i, f := range files {
		if err := s.sendFile(i+1, c.language, f); err != nil {
			return "", err
		}
	}
	metrics.AddMossFilesSent(len(c.baseFiles) + len(files))

	s.printf("query 0 %s\n", c.comment)
	line, err := s.readLine()
	if err != nil {
		return "", err
	}
	s.printf("end\n")
	_ = s.flush()

	u, perr := url.Parse(line)
	if perr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrBadResponse, line)
	}
	return line, nil
}

// collect lists the files of dir carrying the source extension, sorted by name.
func (c *Client) collect(dir string) ([]upload, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read problem dir: %w", err)
	}
	problem := filepath.Base(dir)

	var files []upload
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != c.sourceExt {
			continue
		}
		files = append(files, upload{
			path: filepath.Join(dir, e.Name()),
			name: displayName(problem + "/" + e.Name()),
		})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFiles, dir)
	}
	return files, nil
}

// displayName encodes a path the way the service expects: no spaces, forward
// slashes only. Report parsers decode "_" back to a space.
func displayName(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ReplaceAll(name, `\`, "/")
}

func flag(on bool) int {
	if on {
		return 1
	}
	return 0
}

// session keeps the first transport error so the protocol reads top to bottom.
type session struct {
	w   *bufio.Writer
	r   *bufio.Reader
	err error
}

func (s *session) fail(err error) {
	if s.err == nil && err != nil {
		s.err = fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
}

func (s *session) printf(format string, args ...any) {
	if s.err != nil {
		return
	}
	_, err := fmt.Fprintf(s.w, format, args...)
	s.fail(err)
}

func (s *session) flush() error {
	if s.err == nil {
		s.fail(s.w.Flush())
	}
	return s.err
}

func (s *session) readLine() (string, error) {
	if err := s.flush(); err != nil {
		return "", err
	}
	line, err := s.r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		s.fail(err)
		return "", s.err
	}
	return strings.TrimSpace(line), nil
}

func (s *session) sendFile(index int, lang string, f upload) error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("read %s: %w", f.path, err)
	}
	s.printf("file %d %s %d %s\n", index, lang, len(data), f.name)
	if s.err == nil {
		_, err = s.w.Write(data)
		s.fail(err)
	}
	return s.err
}

// FetchReport downloads the report page at reportURL.
func (c *Client) FetchReport(ctx context.Context, reportURL string) ([]byte, error) {
	start := time.Now()
	defer func() { metrics.RecordMossDuration("fetch", time.Since(start).Seconds()) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reportURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %s", ErrFetch, reportURL, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReportBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return body, nil
}
