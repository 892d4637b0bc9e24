package llm

import (
	"context"
	"encoding/base64"
)

// Message roles understood by the completion service.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Image is an embedded page image sent to a vision-capable model.
type Image struct {
	MediaType string // e.g. "image/png"
	Data      []byte
}

// DataURI renders the image as a base64 data URI with its declared media type.
func (im Image) DataURI() string {
	return "data:" + im.MediaType + ";base64," + base64.StdEncoding.EncodeToString(im.Data)
}

// ContentPart is one typed element of a multi-part message: either text or an
// image reference. Exactly one of Text/Image is set.
type ContentPart struct {
	Text  string
	Image *Image
}

// Message is one role-tagged entry in a chat request. Plain-text messages set
// Text; multi-part messages (text + images) set Parts instead.
type Message struct {
	Role  string
	Text  string
	Parts []ContentPart
}

// TextPart builds a text content part.
func TextPart(s string) ContentPart { return ContentPart{Text: s} }

// ImagePart builds an image content part.
func ImagePart(im Image) ContentPart { return ContentPart{Image: &im} }

// ChatRequest is a single completion call.
type ChatRequest struct {
	Messages    []Message
	Model       string
	Temperature float32
}

// ChatCompleter is the completion-service boundary the pipeline depends on.
// Implementations retry transient failures internally; an error returned here
// means retries are exhausted.
type ChatCompleter interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}
