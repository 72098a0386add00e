package driven

import "context"

// HeadResult carries the metadata headers of a HEAD probe.
type HeadResult struct {
	// ContentLength is the advertised body size, or -1 when the
	// header is absent.
	ContentLength int64
	// ContentType is the raw Content-Type header value, possibly empty.
	ContentType string
}

// MediaFetcher defines the interface for retrieving media resources
// over the network. This is a driven port implemented by concrete
// adapters (e.g. an HTTP client with a bounded per-request timeout).
type MediaFetcher interface {
	// Fetch performs a full retrieval of the URL. It returns the body
	// and the response content type. A non-success HTTP status is an
	// error.
	Fetch(ctx context.Context, url string) ([]byte, string, error)

	// Head performs a metadata-only retrieval of the URL.
	Head(ctx context.Context, url string) (HeadResult, error)
}
