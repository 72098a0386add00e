package driver

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/umdl/umd-host/internal/media"
)

// Request is the closed set of messages the extension can send. Each
// variant is a distinct type so that dispatch is an exhaustive type
// switch instead of a string switch with a runtime default.
type Request interface{ isRequest() }

// MediaFound reports a candidate URL from a detection source.
type MediaFound struct {
	URL           string
	DocumentURL   string
	Channel       media.DetectionChannel
	SourceContext string
	// Optional response headers observed for the request.
	ContentLength int64
	ContentType   string
}

// ListMedia asks for all detected resources.
type ListMedia struct{}

// MediaCount asks for the number of detected resources (badge text).
type MediaCount struct{}

// ClearAll empties the registry.
type ClearAll struct{}

// ClearTab removes the resources of one browsing context.
type ClearTab struct{ SourceContext string }

// DownloadMedia starts a download of one resource.
type DownloadMedia struct {
	ID          string
	Filename    string
	Concurrency int
}

// Rescan asks connected detection sources to scan their pages again.
type Rescan struct{}

func (MediaFound) isRequest()    {}
func (ListMedia) isRequest()     {}
func (MediaCount) isRequest()    {}
func (ClearAll) isRequest()      {}
func (ClearTab) isRequest()      {}
func (DownloadMedia) isRequest() {}
func (Rescan) isRequest()        {}

// envelope is the wire format of a message: a type tag plus the union
// of all variant fields.
type envelope struct {
	Type          string `json:"type"`
	URL           string `json:"url,omitempty"`
	DocumentURL   string `json:"document_url,omitempty"`
	Channel       string `json:"channel,omitempty"`
	SourceContext string `json:"source_context,omitempty"`
	ContentLength *int64 `json:"content_length,omitempty"`
	ContentType   string `json:"content_type,omitempty"`
	ID            string `json:"id,omitempty"`
	Filename      string `json:"filename,omitempty"`
	Concurrency   int    `json:"concurrency,omitempty"`
}

// Message type tags on the wire.
const (
	typeMediaFound = "media_found"
	typeListMedia  = "list_media"
	typeMediaCount = "media_count"
	typeClearAll   = "clear_all"
	typeClearTab   = "clear_tab"
	typeDownload   = "download"
	typeRescan     = "rescan"
)

// DecodeRequest parses a message envelope into its Request variant.
// Unknown type tags and malformed variants are rejected here, so
// dispatch downstream never sees an invalid request.
func DecodeRequest(r io.Reader) (Request, error) {
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding message: %w", err)
	}

	switch env.Type {
	case typeMediaFound:
		if env.URL == "" {
			return nil, fmt.Errorf("media_found message without url")
		}
		channel := media.ChannelDOM
		if env.Channel != "" {
			parsed, ok := media.ParseChannel(env.Channel)
			if !ok {
				return nil, fmt.Errorf("unknown detection channel %q", env.Channel)
			}
			channel = parsed
		}
		length := int64(-1)
		if env.ContentLength != nil {
			length = *env.ContentLength
		}
		return MediaFound{
			URL:           env.URL,
			DocumentURL:   env.DocumentURL,
			Channel:       channel,
			SourceContext: env.SourceContext,
			ContentLength: length,
			ContentType:   env.ContentType,
		}, nil
	case typeListMedia:
		return ListMedia{}, nil
	case typeMediaCount:
		return MediaCount{}, nil
	case typeClearAll:
		return ClearAll{}, nil
	case typeClearTab:
		if env.SourceContext == "" {
			return nil, fmt.Errorf("clear_tab message without source_context")
		}
		return ClearTab{SourceContext: env.SourceContext}, nil
	case typeDownload:
		if env.ID == "" {
			return nil, fmt.Errorf("download message without id")
		}
		return DownloadMedia{ID: env.ID, Filename: env.Filename, Concurrency: env.Concurrency}, nil
	case typeRescan:
		return Rescan{}, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}
