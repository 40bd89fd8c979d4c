// Package raster turns inline data URLs produced by the viewer's raster tools
// into image files.
package raster

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/lehigh-university-libraries/aidalocal/internal/models"
)

// InlinePrefix marks a source that carries its bytes inline rather than a URL.
const InlinePrefix = "data:"

const base64Marker = ";base64,"

// Recognized MIME types and the file extension written for each.
var extensions = map[string]string{
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/jpeg": ".jpg",
}

// IsInline reports whether source is an inline payload rather than a URL.
func IsInline(source string) bool {
	return strings.HasPrefix(source, InlinePrefix)
}

// Payload is a parsed inline image.
type Payload struct {
	MIMEType string
	Data     []byte
}

// Extension is the file extension for the payload's MIME type.
func (p Payload) Extension() string {
	return extensions[p.MIMEType]
}

// Decode strips the data URL marker and base64-decodes the image bytes.
func Decode(source string) (*Payload, error) {
	mimeType, encoded, err := splitMarker(source)
	if err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed base64 in %s payload: %w", models.ErrDecode, mimeType, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty %s payload", models.ErrDecode, mimeType)
	}

	return &Payload{MIMEType: mimeType, Data: data}, nil
}

// Extension returns the file extension for source's marker without decoding it.
func Extension(source string) (string, error) {
	mimeType, _, err := splitMarker(source)
	if err != nil {
		return "", err
	}
	return extensions[mimeType], nil
}

// Write decodes source and writes the image bytes to path, replacing any
// existing file.
func Write(source, path string) (*Payload, error) {
	payload, err := Decode(source)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, payload.Data, 0644); err != nil {
		return nil, fmt.Errorf("%w: failed to write raster %s: %w", models.ErrIO, path, err)
	}
	return payload, nil
}

func splitMarker(source string) (string, string, error) {
	rest, ok := strings.CutPrefix(source, InlinePrefix)
	if !ok {
		return "", "", fmt.Errorf("%w: missing data URL marker", models.ErrDecode)
	}

	mimeType, encoded, ok := strings.Cut(rest, base64Marker)
	if !ok {
		return "", "", fmt.Errorf("%w: payload is not base64 encoded", models.ErrDecode)
	}
	if _, known := extensions[mimeType]; !known {
		return "", "", fmt.Errorf("%w: unsupported image type %q", models.ErrDecode, mimeType)
	}
	return mimeType, encoded, nil
}
