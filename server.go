package catstatus

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

const formPage = `<html>
<head><meta charset='UTF-8'></head>
<body>
<form method='post' action='/catimage'>
<input type='text' name='url' placeholder='Enter the URL-address'>
<button type='submit'>Get status-code</button>
</form>
</body>
</html>
`

type ServerConfig struct {
	Resolver *Resolver
	Cache    *ImageCache
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

// Server answers with a cat picture for the status code a URL returns.
type Server struct {
	resolver *Resolver
	cache    *ImageCache
	log      zerolog.Logger
	router   chi.Router
}

func NewServer(config ServerConfig) *Server {
	logger := log.Logger
	if config.Logger != nil {
		logger = *config.Logger
	}
	s := &Server{
		resolver: config.Resolver,
		cache:    config.Cache,
		log:      logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(s.log))
	r.Use(hlog.RequestIDHandler("req_id", "Request-Id"))
	r.Use(hlog.RemoteAddrHandler("ip"))
	r.Use(hlog.AccessHandler(logRequest))
	r.Use(s.recover)
	r.Use(middleware.Heartbeat("/healthz"))

	r.Get("/", s.handleForm)
	r.Post("/catimage", s.handleCatImage)
	r.Get("/catimage/{code}", s.handleCatImageByCode)
	return r
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	errs := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Listening")
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, formPage)
}

func (s *Server) handleCatImage(w http.ResponseWriter, r *http.Request) {
	url := Normalize(r.FormValue("url"))
	res := s.resolver.Resolve(r.Context(), url)
	s.sendImage(w, r, res.Code)
}

func (s *Server) handleCatImageByCode(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(chi.URLParam(r, "code"))
	if err != nil || code < 100 || code > 599 {
		http.Error(w, "Invalid status code.", http.StatusBadRequest)
		return
	}
	s.sendImage(w, r, code)
}

// sendImage writes the image for code.
// If there is no image, only the bare status code is written.
func (s *Server) sendImage(w http.ResponseWriter, r *http.Request, code int) {
	img, cacheStatus, err := s.cache.GetOrFetch(r.Context(), code)
	w.Header().Set("X-Resolved-Status", strconv.Itoa(code))

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		w.Header().Set("Cache-Status", cacheStatus.String())
		w.WriteHeader(fetchErr.Code)
		return
	} else if err != nil {
		loggerFrom(r.Context(), &s.log).Error().Err(err).Int("status", code).Msg("Could not get image")
		internalError(w)
		return
	}

	w.Header().Set("Cache-Status", cacheStatus.String())
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(img); err != nil {
		loggerFrom(r.Context(), &s.log).Error().Err(err).Msg("Could not write image to client")
	}
}

// recover turns panics into a generic 500 response.
func (s *Server) recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				loggerFrom(r.Context(), &s.log).WithLevel(zerolog.PanicLevel).
					Interface("error", err).
					Msg("Panic in request handler")
				internalError(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func internalError(w http.ResponseWriter) {
	http.Error(w, "Internal server error.", http.StatusInternalServerError)
}

func logRequest(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("code", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("Sending response to client")
}
