package core

import (
	"encoding/base64"
	"errors"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// DefaultImageMIME is used when the file extension does not map to a known type.
const DefaultImageMIME = "image/png"

// IsURL reports whether ref is an http(s) URL with a host. Anything else is
// treated as a local path.
func IsURL(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// EncodeImage converts an image reference into a content item. URLs pass
// through untouched; local files are read and inlined as a base64 data URI.
func EncodeImage(ref string) (ContentItem, error) {
	if IsURL(ref) {
		return ContentItem{Image: ref}, nil
	}

	if _, err := os.Stat(ref); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ContentItem{}, &NotFoundError{Path: ref}
		}
		return ContentItem{}, err
	}

	data, err := os.ReadFile(ref)
	if err != nil {
		return ContentItem{}, err
	}

	return ContentItem{Image: DataURI(guessMIME(ref), data)}, nil
}

// DataURI formats data as data:<mime>;base64,<payload>.
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// BuildContent encodes every image reference in order and appends a single
// trailing text item holding the prompt.
func BuildContent(refs []string, prompt string) ([]ContentItem, error) {
	content := make([]ContentItem, 0, len(refs)+1)
	for _, ref := range refs {
		item, err := EncodeImage(ref)
		if err != nil {
			return nil, err
		}
		content = append(content, item)
	}
	return append(content, ContentItem{Text: prompt}), nil
}

// BuildMessages wraps BuildContent into the single user message the edit
// endpoint expects.
func BuildMessages(refs []string, prompt string) ([]Message, error) {
	content, err := BuildContent(refs, prompt)
	if err != nil {
		return nil, err
	}
	return []Message{{Role: RoleUser, Content: content}}, nil
}

func guessMIME(name string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if t == "" {
		return DefaultImageMIME
	}
	mediaType, _, err := mime.ParseMediaType(t)
	if err != nil || mediaType == "" {
		return DefaultImageMIME
	}
	return mediaType
}
