package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig controls which browser origins may call the API.
type CORSConfig struct {
	// AllowedOrigins lists exact origins ("https://shop.example.com").
	// "*" allows any origin.
	AllowedOrigins []string

	// AllowedMethods defaults to the methods the API routes use.
	AllowedMethods []string

	// AllowedHeaders defaults to Accept, Content-Type and the correlation
	// and session headers.
	AllowedHeaders []string

	// ExposedHeaders defaults to the correlation id and Retry-After.
	ExposedHeaders []string

	// MaxAge is the preflight cache lifetime in seconds. Defaults to 600.
	MaxAge int

	// AllowCredentials lets browsers send cookies. Wildcard origins are then
	// echoed back instead of answered with "*".
	AllowCredentials bool

	// Environment "development" allows any origin.
	Environment string
}

var (
	defaultCORSMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}
	defaultCORSHeaders = []string{"Accept", "Content-Type", HeaderCorrelationID, HeaderSessionID}
	defaultCORSExposed = []string{HeaderCorrelationID, "Retry-After"}
)

// DefaultCORSConfig returns the development configuration.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: slices.Clone(defaultCORSMethods),
		AllowedHeaders: slices.Clone(defaultCORSHeaders),
		ExposedHeaders: slices.Clone(defaultCORSExposed),
		MaxAge:         600,
		Environment:    "development",
	}
}

type corsPolicy struct {
	anyOrigin   bool
	origins     map[string]struct{}
	methods     []string
	headers     map[string]struct{}
	credentials bool

	allowMethods  string
	allowHeaders  string
	exposeHeaders string
	maxAge        string
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = defaultCORSMethods
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = defaultCORSHeaders
	}
	if len(cfg.ExposedHeaders) == 0 {
		cfg.ExposedHeaders = defaultCORSExposed
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 600
	}

	p := &corsPolicy{
		anyOrigin:     cfg.Environment == "development",
		origins:       make(map[string]struct{}, len(cfg.AllowedOrigins)),
		methods:       cfg.AllowedMethods,
		headers:       make(map[string]struct{}, len(cfg.AllowedHeaders)),
		credentials:   cfg.AllowCredentials,
		allowMethods:  strings.Join(cfg.AllowedMethods, ", "),
		allowHeaders:  strings.Join(cfg.AllowedHeaders, ", "),
		exposeHeaders: strings.Join(cfg.ExposedHeaders, ", "),
		maxAge:        strconv.Itoa(cfg.MaxAge),
	}
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			p.anyOrigin = true
			continue
		}
		p.origins[o] = struct{}{}
	}
	for _, h := range cfg.AllowedHeaders {
		p.headers[http.CanonicalHeaderKey(h)] = struct{}{}
	}
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when the origin is not allowed.
func (p *corsPolicy) allowOrigin(origin string) string {
	if p.anyOrigin {
		if p.credentials {
			return origin
		}
		return "*"
	}
	if _, ok := p.origins[origin]; ok {
		return origin
	}
	return ""
}

func (p *corsPolicy) allowsHeaders(requested string) bool {
	for _, h := range strings.Split(requested, ",") {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, ok := p.headers[http.CanonicalHeaderKey(h)]; !ok {
			return false
		}
	}
	return true
}

func (p *corsPolicy) setOrigin(h http.Header, allowed string) {
	h.Set("Access-Control-Allow-Origin", allowed)
	if allowed != "*" {
		h.Add("Vary", "Origin")
	}
	if p.credentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
}

// CORS answers preflight requests and stamps allowed cross-origin responses.
// Requests without an Origin header pass through untouched. A preflight for
// a disallowed origin, method or header is refused with 403.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	p := newCORSPolicy(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			reqMethod := r.Header.Get("Access-Control-Request-Method")
			if r.Method == http.MethodOptions && reqMethod != "" {
				w.Header().Add("Vary", "Access-Control-Request-Method")
				w.Header().Add("Vary", "Access-Control-Request-Headers")

				allowed := p.allowOrigin(origin)
				if allowed == "" || !slices.Contains(p.methods, reqMethod) ||
					!p.allowsHeaders(r.Header.Get("Access-Control-Request-Headers")) {
					w.WriteHeader(http.StatusForbidden)
					return
				}

				p.setOrigin(w.Header(), allowed)
				w.Header().Set("Access-Control-Allow-Methods", p.allowMethods)
				w.Header().Set("Access-Control-Allow-Headers", p.allowHeaders)
				w.Header().Set("Access-Control-Max-Age", p.maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if allowed := p.allowOrigin(origin); allowed != "" {
				p.setOrigin(w.Header(), allowed)
				w.Header().Set("Access-Control-Expose-Headers", p.exposeHeaders)
			}
			next.ServeHTTP(w, r)
		})
	}
}
