// Package mossfake is a local stand-in for the MOSS service. It speaks the
// submission socket protocol and serves HTML reports in the service's format,
// scoring pairs by naive line overlap. It exists for dry runs and tests.
package mossfake

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/okian/antiplag/pkg/logger"
)

const (
	maxFileSize       = 16 << 20
	defaultIOTimeout  = time.Minute
	readHeaderTimeout = 5 * time.Second
)

var defaultLanguages = []string{
	"c", "cc", "java", "ml", "pascal", "ada", "lisp", "scheme", "haskell",
	"fortran", "ascii", "vhdl", "verilog", "perl", "matlab", "python", "mips",
	"prolog", "spice", "vb", "csharp", "modula2", "a8086", "javascript", "plsql",
}

// Session is what one client connection sent.
type Session struct {
	UserID       int
	Directory    bool
	Experimental bool
	MaxMatches   int
	Show         int
	Language     string
	Rejected     bool
	Comment      string
	Files        []File
	ReportURL    string
}

type report struct {
	Comment string
	Matches []Match
}

// Server serves the socket protocol and the report pages.
type Server struct {
	languages map[string]struct{}
	publicURL string
	ioTimeout time.Duration
	logger    logger.Logger

	mu       sync.Mutex
	sessions []Session
	reports  map[int]report
	nextID   int

	ln      net.Listener
	httpLn  net.Listener
	httpSrv *http.Server
	wg      sync.WaitGroup
}

// New creates a Server.
func New(opts ...Option) *Server {
	s := &Server{
		ioTimeout: defaultIOTimeout,
		logger:    logger.Discard(),
		reports:   make(map[int]report),
		nextID:    1,
	}
	WithLanguages(defaultLanguages...)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start listens on socketAddr for submissions and on httpAddr for reports.
// Either address may use port 0.
func (s *Server) Start(ctx context.Context, socketAddr, httpAddr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", socketAddr)
	if err != nil {
		return fmt.Errorf("listen socket: %w", err)
	}
	httpLn, err := lc.Listen(ctx, "tcp", httpAddr)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("listen http: %w", err)
	}
	s.ln, s.httpLn = ln, httpLn
	if s.publicURL == "" {
		s.publicURL = "http://" + httpLn.Addr().String()
	}

	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx)
	}()
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(ctx, "report server failed", logger.Error(err))
		}
	}()

	s.logger.Info(ctx, "moss fake listening",
		logger.String("socket", ln.Addr().String()),
		logger.String("http", s.publicURL))
	return nil
}

// SocketAddr is the bound submission address.
func (s *Server) SocketAddr() string { return s.ln.Addr().String() }

// PublicURL is the base of report links.
func (s *Server) PublicURL() string { return s.publicURL }

// Close stops both listeners and waits for open sessions.
func (s *Server) Close() error {
	err := s.ln.Close()
	if herr := s.httpSrv.Close(); err == nil {
		err = herr
	}
	s.wg.Wait()
	return err
}

// Sessions returns a copy of every finished session.
func (s *Server) Sessions() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Session(nil), s.sessions...)
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(s.ioTimeout))

	r := bufio.NewReader(conn)
	sess := Session{}
	defer func() {
		s.mu.Lock()
		s.sessions = append(s.sessions, sess)
		s.mu.Unlock()
	}()

	reply := func(line string) bool {
		_, err := io.WriteString(conn, line+"\n")
		return err == nil
	}

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		arg := func(i int) string {
			if i < len(fields) {
				return fields[i]
			}
			return ""
		}

		switch fields[0] {
		case "moss":
			sess.UserID, _ = strconv.Atoi(arg(1))
		case "directory":
			sess.Directory = arg(1) == "1"
		case "X":
			sess.Experimental = arg(1) == "1"
		case "maxmatches":
			sess.MaxMatches, _ = strconv.Atoi(arg(1))
		case "show":
			sess.Show, _ = strconv.Atoi(arg(1))
		case "language":
			sess.Language = arg(1)
			if _, ok := s.languages[sess.Language]; !ok {
				sess.Rejected = true
				if !reply("no") {
					return
				}
				continue
			}
			if !reply("yes") {
				return
			}
		case "file":
			f, err := readFile(r, fields)
			if err != nil {
				s.logger.Warn(ctx, "bad file command", logger.String("line", strings.TrimSpace(line)), logger.Error(err))
				return
			}
			sess.Files = append(sess.Files, f)
		case "query":
			if len(fields) > 2 {
				sess.Comment = strings.Join(fields[2:], " ")
			}
			sess.ReportURL = s.publish(sess)
			if !reply(sess.ReportURL) {
				return
			}
		case "end":
			return
		default:
			s.logger.Warn(ctx, "unknown command", logger.String("command", fields[0]))
			return
		}
	}
}

func readFile(r *bufio.Reader, fields []string) (File, error) {
	if len(fields) < 5 {
		return File{}, fmt.Errorf("want 4 arguments, got %d", len(fields)-1)
	}
	index, err := strconv.Atoi(fields[1])
	if err != nil {
		return File{}, fmt.Errorf("index: %w", err)
	}
	size, err := strconv.Atoi(fields[3])
	if err != nil || size < 0 || size > maxFileSize {
		return File{}, fmt.Errorf("bad size %q", fields[3])
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return File{}, fmt.Errorf("body: %w", err)
	}
	return File{Index: index, Language: fields[2], Name: strings.Join(fields[4:], " "), Data: data}, nil
}

func (s *Server) publish(sess Session) string {
	matches := compare(sess.Files, sess.MaxMatches, sess.Show)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.reports[id] = report{Comment: sess.Comment, Matches: matches}
	s.mu.Unlock()

	return s.reportURL(id)
}

func (s *Server) reportURL(id int) string {
	return strings.TrimSuffix(s.publicURL, "/") + "/results/" + strconv.Itoa(id)
}

// Handler serves report pages and a health probe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok\n")
	})
	mux.HandleFunc("GET /results/{id}", s.handleReport)
	mux.HandleFunc("GET /results/{id}/{page}", s.handleMatch)
	return mux
}

func (s *Server) lookup(r *http.Request) (int, report, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		return 0, report{}, false
	}
	s.mu.Lock()
	rep, ok := s.reports[id]
	s.mu.Unlock()
	return id, rep, ok
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id, rep, ok := s.lookup(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := reportPage.Execute(w, map[string]any{
		"Base":    s.reportURL(id),
		"Comment": rep.Comment,
		"Matches": rep.Matches,
	}); err != nil {
		s.logger.Error(r.Context(), "render report", logger.Error(err))
	}
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	_, rep, ok := s.lookup(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	page := r.PathValue("page")
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(page, "match"), ".html"))
	if err != nil || n < 0 || n >= len(rep.Matches) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := matchPage.Execute(w, rep.Matches[n]); err != nil {
		s.logger.Error(r.Context(), "render match", logger.Error(err))
	}
}

var reportPage = template.Must(template.New("report").Parse(`<HTML>
<HEAD>
<TITLE>Moss Results</TITLE>
</HEAD>
<BODY>
Moss Results<p>
{{.Comment}}
<HR>
{{if .Matches}}<TABLE>
<TR><TH>File 1<TH>File 2<TH>Lines Matched
{{range $i, $m := .Matches}}<TR><TD><A HREF="{{$.Base}}/match{{$i}}.html">{{$m.A}} ({{$m.PercentA}}%)</A>
    <TD><A HREF="{{$.Base}}/match{{$i}}.html">{{$m.B}} ({{$m.PercentB}}%)</A>
<TD ALIGN=right>{{$m.SharedLines}}
{{end}}</TABLE>
{{else}}No matches were found in your submission.
{{end}}<HR>
</BODY>
</HTML>
`))

var matchPage = template.Must(template.New("match").Parse(`<HTML>
<HEAD>
<TITLE>{{.A}} {{.B}}</TITLE>
</HEAD>
<BODY>
{{.A}} ({{.PercentA}}%) | {{.B}} ({{.PercentB}}%)
<HR>
<PRE>
{{range .SharedSample}}{{.}}
{{end}}</PRE>
</BODY>
</HTML>
`))
