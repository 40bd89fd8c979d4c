package catalog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"

	"github.com/lehigh-university-libraries/aidalocal/internal/models"
	"github.com/parquet-go/parquet-go"
)

// IndexRow is one catalog entry flattened for columnar export.
type IndexRow struct {
	Path  string `parquet:"path"`
	Name  string `parquet:"name"`
	Ext   string `parquet:"ext"`
	Depth int32  `parquet:"depth"`
	IsDir bool   `parquet:"is_dir"`
}

// Flatten lists the tree depth-first, parents before their children. Paths are
// slash separated and relative to the catalog root.
func Flatten(nodes []models.CatalogNode) []IndexRow {
	var rows []IndexRow
	var visit func(prefix string, depth int32, nodes []models.CatalogNode)
	visit = func(prefix string, depth int32, nodes []models.CatalogNode) {
		for _, n := range nodes {
			p := path.Join(prefix, n.Name)
			rows = append(rows, IndexRow{Path: p, Name: n.Name, Ext: n.Ext, Depth: depth, IsDir: n.IsDir})
			if n.IsDir {
				visit(p, depth+1, n.Children)
			}
		}
	}
	visit("", 0, nodes)
	return rows
}

// Export writes the flattened catalog as a Parquet file, replacing outputPath.
func Export(nodes []models.CatalogNode, outputPath string) error {
	rows := Flatten(nodes)

	if err := parquet.WriteFile(outputPath, rows); err != nil {
		return fmt.Errorf("%w: failed to write parquet index %s: %w", models.ErrIO, outputPath, err)
	}

	slog.Info("Catalog exported", "path", outputPath, "rows", len(rows))
	return nil
}

// ReadIndex loads an exported catalog index.
func ReadIndex(inputPath string) ([]IndexRow, error) {
	file, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[IndexRow](pf)
	defer reader.Close()

	rows := make([]IndexRow, 0, pf.NumRows())
	batch := make([]IndexRow, 128)
	for {
		n, err := reader.Read(batch)
		rows = append(rows, batch[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	return rows, nil
}
