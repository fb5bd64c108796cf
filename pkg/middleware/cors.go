package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

var defaultCORSMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists accepted origins. "*" accepts any origin.
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int
	// AllowCredentials lets the storefront send the session cookie from
	// another origin. With a wildcard the request origin is echoed back,
	// since browsers reject "*" together with credentials.
	AllowCredentials bool
}

// DefaultCORSConfig returns the configuration used by the cart API.
func DefaultCORSConfig(origins []string) CORSConfig {
	return CORSConfig{
		AllowedOrigins:   origins,
		AllowedMethods:   defaultCORSMethods,
		AllowedHeaders:   []string{"Accept", "Content-Type", CorrelationHeader},
		ExposedHeaders:   []string{CorrelationHeader, "X-Cart-Count"},
		MaxAge:           3600,
		AllowCredentials: true,
	}
}

// corsPolicy is a CORSConfig with its header values rendered once.
type corsPolicy struct {
	origins     []string
	anyOrigin   bool
	credentials bool
	static      http.Header
	preflight   http.Header
}

func compileCORS(cfg CORSConfig) corsPolicy {
	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = defaultCORSMethods
	}
	maxAge := cfg.MaxAge
	if maxAge == 0 {
		maxAge = 3600
	}

	p := corsPolicy{
		origins:     cfg.AllowedOrigins,
		anyOrigin:   slices.Contains(cfg.AllowedOrigins, "*"),
		credentials: cfg.AllowCredentials,
		static:      http.Header{},
		preflight:   http.Header{},
	}
	if len(cfg.ExposedHeaders) > 0 {
		p.static.Set("Access-Control-Expose-Headers", strings.Join(cfg.ExposedHeaders, ", "))
	}
	if cfg.AllowCredentials {
		p.static.Set("Access-Control-Allow-Credentials", "true")
	}
	p.preflight.Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
	if len(cfg.AllowedHeaders) > 0 {
		p.preflight.Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowedHeaders, ", "))
	}
	p.preflight.Set("Access-Control-Max-Age", strconv.Itoa(maxAge))
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when the origin is not accepted.
func (p corsPolicy) allowOrigin(origin string) string {
	if p.anyOrigin && !p.credentials {
		return "*"
	}
	if origin != "" && (p.anyOrigin || slices.Contains(p.origins, origin)) {
		return origin
	}
	return ""
}

// CORS returns middleware applying cfg to every response and answering
// OPTIONS preflight requests with 204 without reaching next.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	policy := compileCORS(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if allowed := policy.allowOrigin(r.Header.Get("Origin")); allowed != "" {
				h.Set("Access-Control-Allow-Origin", allowed)
				if allowed != "*" {
					h.Add("Vary", "Origin")
				}
			}
			for k, v := range policy.static {
				h.Set(k, v[0])
			}

			if r.Method == http.MethodOptions {
				for k, v := range policy.preflight {
					h.Set(k, v[0])
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
