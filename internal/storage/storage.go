package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/aidalocal/internal/models"
)

const (
	imagesDir       = "images"
	annotationsDir  = "annotations"
	rasterDir       = "raster"
	catalogSnapshot = "images.json"
)

// Layout maps the service's durable state onto a data directory:
//
//	<root>/images/                          source images (catalog input)
//	<root>/images.json                      catalog snapshot
//	<root>/annotations/<image>.json         annotation document per image
//	<root>/annotations/raster/<image>/...   materialized raster items
type Layout struct {
	root string
}

func New(root string) *Layout {
	return &Layout{root: root}
}

func (l *Layout) Root() string {
	return l.root
}

func (l *Layout) ImagesDir() string {
	return filepath.Join(l.root, imagesDir)
}

func (l *Layout) CatalogPath() string {
	return filepath.Join(l.root, catalogSnapshot)
}

func (l *Layout) AnnotationsDir() string {
	return filepath.Join(l.root, annotationsDir)
}

// AnnotationPath is the JSON file for one project image.
func (l *Layout) AnnotationPath(projectImageName string) string {
	return filepath.Join(l.root, annotationsDir, projectImageName+".json")
}

// RasterDir is the directory holding raster files for one project image.
func (l *Layout) RasterDir(projectImageName string) string {
	return filepath.Join(l.root, annotationsDir, rasterDir, projectImageName)
}

// RasterURLPath is the path, relative to the annotations route, under which
// the transport serves RasterDir.
func RasterURLPath(projectImageName, filename string) []string {
	return []string{annotationsDir, rasterDir, projectImageName, filename}
}

// ValidateName checks that name can be used as a single path segment under the
// layout. A valid name never forms a ".." segment or contains a backslash, the
// two things the static routes refuse, so whatever is written under it can be
// served back.
func ValidateName(field, name string) error {
	switch {
	case name == "." || name == "..":
		return fmt.Errorf("%w: %s %q is not a valid file name", models.ErrInvalidDocument, field, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %s %q contains a path separator", models.ErrInvalidDocument, field, name)
	}
	return nil
}

// HasParentSegment reports whether the slash separated path rel contains a
// ".." segment. Names merely containing ".." (slide..v2) are not parent segments.
func HasParentSegment(rel string) bool {
	for _, segment := range strings.Split(rel, "/") {
		if segment == ".." {
			return true
		}
	}
	return false
}

// EnsureDirs creates the directories the service writes into.
func (l *Layout) EnsureDirs() error {
	for _, dir := range []string{l.root, l.ImagesDir(), l.AnnotationsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: failed to create directory %s: %w", models.ErrIO, dir, err)
		}
	}
	return nil
}

// WriteJSON encodes v and overwrites path with it. <, > and & are written as
// is so stored documents match what the viewer sent.
func WriteJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	data := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: failed to create directory for %s: %w", models.ErrIO, path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: failed to write %s: %w", models.ErrIO, path, err)
	}
	return nil
}
