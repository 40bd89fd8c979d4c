// Package catalog indexes the image directory into the tree the viewer uses
// to list annotatable images.
package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/lehigh-university-libraries/aidalocal/internal/models"
	"github.com/lehigh-university-libraries/aidalocal/internal/storage"
)

const (
	// MetadataFile is written by macOS Finder into every directory it opens.
	MetadataFile = ".DS_Store"
	// TilePyramidSuffix names the tile directory generated next to a .dzi file.
	TilePyramidSuffix = "_files"
)

// Builder walks an image directory. It keeps no state between calls.
type Builder struct {
	root    string
	exclude []glob.Glob
}

// NewBuilder compiles the extra exclusion patterns, matched against entry names.
func NewBuilder(root string, patterns []string) (*Builder, error) {
	b := &Builder{root: root}
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		b.exclude = append(b.exclude, g)
	}
	return b, nil
}

// Build returns the catalog tree in directory enumeration order. Any read or
// stat failure aborts the walk.
func (b *Builder) Build() ([]models.CatalogNode, error) {
	nodes, err := b.walk(b.root)
	if err != nil {
		return nil, err
	}
	if nodes == nil {
		nodes = []models.CatalogNode{}
	}
	return nodes, nil
}

// Refresh builds the catalog and overwrites the snapshot at path.
func (b *Builder) Refresh(path string) ([]models.CatalogNode, error) {
	nodes, err := b.Build()
	if err != nil {
		return nil, err
	}
	if err := storage.WriteJSON(path, nodes); err != nil {
		return nil, err
	}
	slog.Info("Catalog refreshed", "root", b.root, "snapshot", path, "entries", Count(nodes))
	return nodes, nil
}

func (b *Builder) walk(dir string) ([]models.CatalogNode, error) {
	names, err := readNames(dir)
	if err != nil {
		return nil, err
	}

	var nodes []models.CatalogNode
	for _, name := range names {
		if b.excluded(name) {
			slog.Debug("Skipping catalog entry", "dir", dir, "name", name)
			continue
		}

		full := filepath.Join(dir, name)
		info, err := os.Stat(full)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to stat %s: %w", models.ErrTraversal, full, err)
		}

		if !info.IsDir() {
			nodes = append(nodes, models.CatalogNode{Name: name, Ext: filepath.Ext(name)})
			continue
		}

		children, err := b.walk(full)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, models.CatalogNode{Name: name, IsDir: true, Children: children})
	}
	return nodes, nil
}

// excluded applies the fixed rules and any configured patterns. Names ending
// in the tile suffix are skipped whether they are directories or files.
func (b *Builder) excluded(name string) bool {
	if name == MetadataFile || strings.HasSuffix(name, TilePyramidSuffix) {
		return true
	}
	for _, g := range b.exclude {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// readNames lists dir without sorting, unlike os.ReadDir.
func readNames(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", models.ErrTraversal, dir, err)
	}
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", models.ErrTraversal, dir, err)
	}
	return names, nil
}

// Count returns the number of nodes in the tree, directories included.
func Count(nodes []models.CatalogNode) int {
	total := 0
	for _, n := range nodes {
		total++
		total += Count(n.Children)
	}
	return total
}
