package content

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/h2non/filetype"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var (
	ErrUnsupportedImage = errors.New("unsupported image")

	policy   = bluemonday.UGCPolicy()
	markdown = goldmark.New()
)

// Sanitize removes unsafe HTML from the input string using a strict policy.
func Sanitize(input string) string {
	return policy.Sanitize(input)
}

// Escape escapes special characters like "<" to become "&lt;".
// It matches the behavior of html/template and is safe for use in HTML attributes.
func Escape(input string) string {
	return template.HTMLEscapeString(input)
}

// Render converts message markdown to sanitized HTML. Text that fails to
// convert is returned escaped.
func Render(text string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return Escape(text)
	}
	return Sanitize(buf.String())
}

// ValidateImage checks inline images: a data URI must be base64 encoded
// and decode to a known image type. Any other value is a reference the
// backend resolves and is accepted as is.
func ValidateImage(image string) error {
	if image == "" {
		return nil
	}

	if rest, ok := strings.CutPrefix(image, "data:"); ok {
		meta, payload, ok := strings.Cut(rest, ",")
		if !ok || !strings.HasSuffix(meta, ";base64") {
			return fmt.Errorf("%w: data URI must be base64 encoded", ErrUnsupportedImage)
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
		}
		if !filetype.IsImage(data) {
			return fmt.Errorf("%w: payload is not an image", ErrUnsupportedImage)
		}
	}
	return nil
}
