// Package annotations persists the viewer's annotation state.
//
// A save runs in two phases. Every inline raster item is first written to its
// own image file and its source rewritten to the URL the transport serves that
// file under. Only when all raster writes have succeeded is the annotation
// document written, so a reader never sees a document that points at a file
// that does not exist yet. A failed raster write aborts the save; files
// written for earlier items stay on disk and are overwritten by the next save
// with the same keys.
package annotations

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/aidalocal/internal/models"
	"github.com/lehigh-university-libraries/aidalocal/internal/netaddr"
	"github.com/lehigh-university-libraries/aidalocal/internal/raster"
	"github.com/lehigh-university-libraries/aidalocal/internal/storage"
)

// Persister saves annotation documents under a storage layout.
type Persister struct {
	layout   *storage.Layout
	resolver netaddr.Resolver
	port     int
}

// Result describes what a save wrote.
type Result struct {
	AnnotationPath string
	RasterPaths    []string
}

func NewPersister(layout *storage.Layout, resolver netaddr.Resolver, port int) *Persister {
	return &Persister{
		layout:   layout,
		resolver: resolver,
		port:     port,
	}
}

// Save materializes inline rasters, rewrites their sources and then writes the
// document's annotation data, replacing any earlier save for the same image.
// doc is modified in place.
func (p *Persister) Save(ctx context.Context, doc *models.AnnotationDocument) (*Result, error) {
	if doc.ProjectImageName == "" {
		return nil, fmt.Errorf("%w: projectImageName is empty", models.ErrInvalidDocument)
	}
	if err := storage.ValidateName("projectImageName", doc.ProjectImageName); err != nil {
		return nil, err
	}

	result := &Result{}
	var host string

	for li := range doc.AnnotationData.Layers {
		layer := &doc.AnnotationData.Layers[li]
		for position := range layer.Items {
			item := &layer.Items[position]
			if !item.IsRaster() || !raster.IsInline(item.Source) {
				continue
			}

			if err := storage.ValidateName("layer name", layer.Name); err != nil {
				return nil, err
			}

			path, filename, err := p.rasterPath(doc.ProjectImageName, layer.Name, position, item.Source)
			if err != nil {
				return nil, fmt.Errorf("layer %q item %d: %w", layer.Name, position, err)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, fmt.Errorf("%w: failed to create raster directory: %w", models.ErrIO, err)
			}
			payload, err := raster.Write(item.Source, path)
			if err != nil {
				return nil, fmt.Errorf("layer %q item %d: %w", layer.Name, position, err)
			}
			result.RasterPaths = append(result.RasterPaths, path)

			if host == "" {
				if host, err = p.resolver.Resolve(ctx); err != nil {
					return nil, err
				}
			}
			item.Source = p.rasterURL(host, doc.ProjectImageName, filename)

			slog.Debug("Raster item materialized",
				"image", doc.ProjectImageName,
				"layer", layer.Name,
				"position", position,
				"mime", payload.MIMEType,
				"bytes", len(payload.Data))
		}
	}

	annotationPath := p.layout.AnnotationPath(doc.ProjectImageName)
	if err := storage.WriteJSON(annotationPath, doc.AnnotationData); err != nil {
		return nil, err
	}
	result.AnnotationPath = annotationPath

	slog.Info("Annotation saved",
		"image", doc.ProjectImageName,
		"layers", len(doc.AnnotationData.Layers),
		"rasters", len(result.RasterPaths),
		"path", annotationPath)

	return result, nil
}

// RasterFilename names the file for the item at position within layer. Two
// layers with the same name share a namespace.
func RasterFilename(layerName string, position int, ext string) string {
	return strconv.Itoa(position) + "_" + layerName + ext
}

func (p *Persister) rasterPath(projectImageName, layerName string, position int, source string) (string, string, error) {
	ext, err := raster.Extension(source)
	if err != nil {
		return "", "", err
	}
	filename := RasterFilename(layerName, position, ext)
	return filepath.Join(p.layout.RasterDir(projectImageName), filename), filename, nil
}

func (p *Persister) rasterURL(host, projectImageName, filename string) string {
	segments := storage.RasterURLPath(projectImageName, filename)
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(p.port)) + "/" + strings.Join(segments, "/")
}
