package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/linnemanlabs/go-core/httpmw"
	"github.com/linnemanlabs/go-core/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/radtriage/internal/triageapi"
)

// apiDeps is what the public listener needs to serve requests.
type apiDeps struct {
	logger         log.Logger
	svc            triageapi.TriageService
	healthz        http.HandlerFunc
	readyz         http.HandlerFunc
	maxUploadBytes int64
	trustedHops    int

	// instrument wraps the handler with request metrics. Nil skips it.
	instrument func(http.Handler) http.Handler
}

func isProbePath(p string) bool {
	return p == "/-/healthy" || p == "/-/ready"
}

// newAPIHandler builds the public router and wraps it in the middleware
// chain. The last wrapper applied is the first to see a request.
func newAPIHandler(d apiDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Compress(5, "application/json"))
	r.Use(httpmw.AnnotateHTTPRoute)
	r.Use(httpmw.AccessLog())
	r.Use(func(next http.Handler) http.Handler {
		return http.MaxBytesHandler(next, d.maxUploadBytes)
	})

	r.Get("/-/healthy", d.healthz)
	r.Get("/-/ready", d.readyz)

	triageapi.New(d.logger, d.svc, triageapi.WithMaxUploadBytes(d.maxUploadBytes)).RegisterRoutes(r)

	var h http.Handler = r
	h = httpmw.WithLogger(d.logger)(h)
	h = httpmw.TraceResponseHeaders("X-Trace-Id", "X-Span-Id")(h)
	h = otelhttp.NewHandler(h, "http.server",
		otelhttp.WithFilter(func(r *http.Request) bool { return !isProbePath(r.URL.Path) }),
		// renamed to the chi route pattern by AnnotateHTTPRoute
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithPublicEndpointFn(func(*http.Request) bool { return true }),
	)
	if d.instrument != nil {
		h = d.instrument(h)
	}
	h = httpmw.ClientIPWithOptions(httpmw.ClientIPOptions{TrustedHops: d.trustedHops})(h)
	h = httpmw.RequestID("X-Request-Id")(h)
	h = httpmw.Recover(d.logger, nil)(h)
	h = httpmw.SecurityHeaders(h)
	return h
}
