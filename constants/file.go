package constants

import "strings"

// Document formats the ingestion layer understands.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
	TEXT  = "TEXT"
)

// FileFormats holds the allowed source formats for an uploaded document.
var FileFormats = []string{PDF, IMAGE, TEXT}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a file extension to a document format.
// Returns "" for unsupported extensions.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png", "webp", "gif", "tif", "tiff":
		return IMAGE
	case "txt", "text", "md":
		return TEXT
	default:
		return ""
	}
}
