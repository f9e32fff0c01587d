package observability

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPClient returns a client whose transport starts a client span per
// outbound request and injects the trace context into its headers. Storefront
// verifiers use it so Apple and Google calls appear under the request trace.
func HTTPClient(base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(base,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return "storefront " + r.Method + " " + r.URL.Host
			}),
		),
	}
}
