package artifact

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/habiliai/dataagent/errors"
	"github.com/habiliai/dataagent/internal/mylog"
	"github.com/pkg/browser"
)

// Opener shows url to the user.
type Opener func(url string) error

// Published is a written and served artifact.
type Published struct {
	FilePath string `json:"file_path"`
	URL      string `json:"url"`
}

// Server serves the artifacts directory on a free localhost port. It starts on
// the first Publish and keeps running until Close.
type Server struct {
	dir    string
	logger *slog.Logger
	opener Opener

	mu      sync.Mutex
	server  *http.Server
	baseURL string
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithOpener(opener Opener) Option {
	return func(s *Server) {
		s.opener = opener
	}
}

func NewServer(dir string, opts ...Option) *Server {
	s := &Server{
		dir:    dir,
		logger: mylog.Discard(),
		opener: browser.OpenURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Dir() string {
	return s.dir
}

// Publish writes html under the artifacts directory, makes sure the server is
// running and opens the page.
func (s *Server) Publish(filename, html string) (*Published, error) {
	name, err := cleanFilename(filename)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create artifacts directory")
	}

	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return nil, errors.Wrapf(err, "failed to write artifact %s", name)
	}

	base, err := s.start()
	if err != nil {
		return nil, err
	}

	url := base + "/" + name
	if err := s.opener(url); err != nil {
		s.logger.Warn("failed to open browser", "url", url, "err", err)
	}
	return &Published{FilePath: path, URL: url}, nil
}

func cleanFilename(filename string) (string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", errors.Wrapf(errors.ErrInvalidParams, "invalid artifact filename %q", filename)
	}
	if filepath.Ext(name) == "" {
		name += ".html"
	}
	return name, nil
}

func (s *Server) start() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return s.baseURL, nil
	}

	listener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return "", errors.Wrapf(err, "failed to find a free port")
	}

	router := mux.NewRouter()
	router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.dir))).Methods(http.MethodGet, http.MethodHead)

	s.server = &http.Server{
		Handler: handlers.RecoveryHandler(
			handlers.RecoveryLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError)),
		)(handlers.CompressHandler(router)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.baseURL = fmt.Sprintf("http://localhost:%d", listener.Addr().(*net.TCPAddr).Port)

	go func(srv *http.Server) {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("artifact server stopped", "err", err)
		}
	}(s.server)

	s.logger.Debug("artifact server started", "url", s.baseURL, "dir", s.dir)
	return s.baseURL, nil
}

func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.server = nil
	return errors.Wrapf(err, "failed to stop artifact server")
}
