// Package server is the HTTP front of spicyipsum. It runs every request
// through the rate limiter before routing and maps admission decisions and
// generator errors to status codes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	ipsum "github.com/grasp-labs/ds-spicyipsum-go/ipsum"
)

// Response messages.
const (
	MsgBadRequest      = "Something isn't correct with your request"
	MsgNotFound        = "That resource wasn't found"
	MsgUnacceptable    = "That client is not welcome here"
	MsgTooManyRequests = "You're making too many requests. Slow down and try again later"
	MsgInternal        = "Well that's embarrassing. Something unexpected happened on our end."
)

// Admitter decides whether a request from identity may proceed.
type Admitter interface {
	Admit(identity string) (ipsum.Decision, error)
}

// TextGenerator produces paragraphs of placeholder text.
type TextGenerator interface {
	Generate(ctx context.Context, p ipsum.Params) ([]string, error)
}

type Options struct {
	Name            string
	UserAgentBlocks []string
	TrustProxy      bool
	AllowedOrigins  []string
	// RetryAfter is advertised on 429 responses; zero omits the header.
	RetryAfter time.Duration
	Logger     *log.Logger
}

type Server struct {
	limiter  Admitter
	gen      TextGenerator
	opts     Options
	log      *log.Logger
	uaBlocks []*regexp.Regexp
	handler  http.Handler
}

func New(limiter Admitter, gen TextGenerator, opts Options) *Server {
	if limiter == nil || gen == nil {
		panic("server requires a limiter and a generator")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Name == "" {
		opts.Name = "spicyipsum"
	}
	s := &Server{limiter: limiter, gen: gen, opts: opts, log: opts.Logger}
	for _, ua := range opts.UserAgentBlocks {
		if ua == "" {
			continue
		}
		s.uaBlocks = append(s.uaBlocks, regexp.MustCompile("(?i)"+regexp.QuoteMeta(ua)))
	}

	router := httprouter.New()
	router.RedirectTrailingSlash = false
	router.HandleMethodNotAllowed = false
	router.GET("/", s.home)
	router.GET("/about", s.about)
	router.GET("/api", s.apiUsage)
	router.POST("/api", s.apiGenerate)
	router.NotFound = http.HandlerFunc(s.notFound)
	router.PanicHandler = s.panicked

	var h http.Handler = router
	h = s.blockUserAgents(h)
	h = trimTrailingSlash(h)
	h = s.rateLimit(h)
	if len(opts.AllowedOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Content-Type"},
		}).Handler(h)
	}
	s.handler = s.logRequests(h)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// isAPI: JSON responses go to POST requests under /api.
func isAPI(r *http.Request) bool {
	return r.Method == http.MethodPost && strings.Contains(r.URL.Path, "/api")
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if isAPI(r) {
		writeJSON(w, status, map[string]string{"message": msg})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintln(w, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// identity returns the client IP, or "" when none can be determined.
func (s *Server) identity(r *http.Request) string {
	if s.opts.TrustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
				return ip.String()
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return ""
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := s.identity(r)
		d, err := s.limiter.Admit(id)
		if err != nil {
			s.log.Error("rate limit check failed", "identity", id, "err", err)
			s.fail(w, r, http.StatusInternalServerError, MsgInternal)
			return
		}
		switch d {
		case ipsum.Admit:
			next.ServeHTTP(w, r)
		case ipsum.RejectMissingIdentity:
			s.fail(w, r, http.StatusBadRequest, MsgBadRequest)
		default:
			if s.opts.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(s.opts.RetryAfter/time.Second)))
			}
			s.fail(w, r, http.StatusTooManyRequests, MsgTooManyRequests)
		}
	})
}

// trimTrailingSlash redirects /path/ to /path unless the query string
// contains a slash.
func trimTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if len(p) > 1 && strings.HasSuffix(p, "/") && !strings.Contains(r.URL.RawQuery, "/") {
			target := strings.TrimRight(p, "/")
			if target == "" {
				target = "/"
			}
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusMovedPermanently)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) blockUserAgents(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.UserAgent()
		for _, re := range s.uaBlocks {
			if re.MatchString(ua) {
				s.fail(w, r, http.StatusNotAcceptable, MsgUnacceptable)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		w.Header().Set("X-Request-Id", reqID)
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			"id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"remote", r.RemoteAddr,
			"ua", r.UserAgent(),
			"took", time.Since(start),
		)
	})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.fail(w, r, http.StatusNotFound, MsgNotFound)
}

func (s *Server) panicked(w http.ResponseWriter, r *http.Request, v any) {
	s.log.Error("panic serving request", "path", r.URL.Path, "panic", v)
	s.fail(w, r, http.StatusInternalServerError, MsgInternal)
}

func (s *Server) home(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	paragraphs, err := s.gen.Generate(r.Context(), ipsum.Params{})
	if err != nil {
		s.generateFailed(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintln(w, strings.Join(paragraphs, "\n\n"))
}

func (s *Server) about(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "%s generates spicy placeholder text.\n", s.opts.Name)
}

const apiUsage = `POST /api with a JSON body:
  paragraphs  1-10 (default 1)
  sentences   1-10 per paragraph (default 5)
  lorem       0 or 1, start with "Spicy ipsum dolor amet"
  wyrd        0 or 1, mix in wyrd words
`

func (s *Server) apiUsage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprint(w, apiUsage)
}

func (s *Server) apiGenerate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req apiRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			var pe *ipsum.ParamError
			if errors.As(err, &pe) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"message": pe.Msg})
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": MsgBadRequest})
			return
		}
	}
	paragraphs, err := s.gen.Generate(r.Context(), req.params())
	if err != nil {
		s.generateFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"data": paragraphs})
}

func (s *Server) generateFailed(w http.ResponseWriter, r *http.Request, err error) {
	var pe *ipsum.ParamError
	if errors.As(err, &pe) {
		s.fail(w, r, http.StatusBadRequest, pe.Msg)
		return
	}
	s.log.Error("generate failed", "path", r.URL.Path, "err", err)
	s.fail(w, r, http.StatusInternalServerError, MsgInternal)
}
