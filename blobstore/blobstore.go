package blobstore

import (
	"context"
	"regexp"
	"strings"

	"github.com/wailsapp/mimetype"
)

// BlobStore is a content store addressed by opaque id. Save returns a
// stable external URL with the id embedded in it.
type BlobStore interface {
	Save(ctx context.Context, id string, content []byte, mediaType string) (string, error)
	Fetch(ctx context.Context, id string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
}

// Blob ids are long runs of word or hyphen characters; anything shorter
// is part of the surrounding URL structure.
var idPattern = regexp.MustCompile(`[-\w]{25,}`)

// IdFromURL recovers the blob id embedded in a locator URL. Returns ""
// when the URL carries no recognizable id.
func IdFromURL(url string) string {
	return idPattern.FindString(url)
}

// SniffMIME detects the media type of blob content from its bytes.
func SniffMIME(content []byte) string {
	return mimetype.Detect(content).String()
}

// SanitizeName replaces path-unsafe characters so a derived name is a
// valid flat blob id.
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '-'
		}
	}, name)
}
