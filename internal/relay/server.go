package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/m3rciful/appealbot/core/logger"
	"github.com/m3rciful/appealbot/core/metrics"
)

// sniffLen is how much of a file is read to detect its content type.
const sniffLen = 3072

const shutdownTimeout = 10 * time.Second

// Resolver maps a hash onto the stored file reference.
type Resolver interface {
	Resolve(ctx context.Context, hash string) (string, error)
}

// FileSource opens files held by the messaging platform. Implementations
// return ErrFileUnavailable when the platform no longer knows the file.
type FileSource interface {
	Open(ctx context.Context, fileID string) (rc io.ReadCloser, name string, err error)
}

// Config configures the HTTP listener.
type Config struct {
	Listen  string
	Port    int
	TLSCert string
	TLSKey  string
}

// Addr returns the host:port the server listens on.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Listen, strconv.Itoa(c.Port))
}

// TLS reports whether both certificate and key are configured.
func (c Config) TLS() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// Server streams attachments by hash.
type Server struct {
	cfg   Config
	links Resolver
	files FileSource
}

// NewServer wires a relay server.
func NewServer(cfg Config, links Resolver, files FileSource) *Server {
	return &Server{cfg: cfg, links: links, files: files}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(instrument)

	r.Get("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/{hash}", s.serveFile)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.LogEvent(ctx, logger.Relay, slog.LevelInfo, "relay.start",
			slog.String("addr", srv.Addr),
			slog.Bool("tls", s.cfg.TLS()),
		)
		var err error
		if s.cfg.TLS() {
			err = srv.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("relay listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("relay shutdown: %w", err)
	}
	logger.LogEvent(ctx, logger.Relay, slog.LevelInfo, "relay.stop")
	return <-errCh
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hash := chi.URLParam(r, "hash")

	link, err := s.links.Resolve(ctx, hash)
	if err != nil {
		s.fail(w, r, "relay.resolve", err)
		return
	}
	rc, name, err := s.files.Open(ctx, link)
	if err != nil {
		s.fail(w, r, "relay.open", err)
		return
	}
	defer rc.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(rc, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		s.fail(w, r, "relay.read", err)
		return
	}
	head = head[:n]
	mtype := mimetype.Detect(head)
	if name == "" {
		name = hash + mtype.Extension()
	}

	h := w.Header()
	h.Set("Content-Type", mtype.String())
	h.Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": name}))
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	w.WriteHeader(http.StatusOK)

	written, err := io.Copy(w, io.MultiReader(bytes.NewReader(head), rc))
	metrics.RelayBytes.Add(float64(written))
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
	}
	logger.LogEvent(ctx, logger.Relay, level, "relay.served",
		slog.String("status", logger.Status(err)),
		slog.String("hash", hash),
		slog.String("type", mtype.String()),
		slog.String("size", humanize.Bytes(uint64(written))),
	)
}

// fail maps err onto a status code. Unknown hashes and vanished files are
// 404, everything else is 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, event string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, ErrUnknownHash) || errors.Is(err, ErrFileUnavailable) {
		status = http.StatusNotFound
	}
	level := slog.LevelWarn
	if status == http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.LogEvent(r.Context(), logger.Relay, level, event,
		slog.String("hash", chi.URLParam(r, "hash")),
		slog.Int("code", status),
		logger.Err(err),
	)
	http.Error(w, http.StatusText(status), status)
}

// instrument counts responses by status and tags the request context with
// the request id for logging.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.WithRID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RelayRequests.WithLabelValues(strconv.Itoa(status)).Inc()
		logger.LogEvent(ctx, logger.Relay, slog.LevelDebug, "relay.request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("code", status),
			slog.String("remote", r.RemoteAddr),
			slog.Duration("duration", logger.Took(start)),
		)
	})
}
