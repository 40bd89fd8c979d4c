package annotations

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/lehigh-university-libraries/aidalocal/internal/models"
	"github.com/lehigh-university-libraries/aidalocal/internal/netaddr"
	"github.com/lehigh-university-libraries/aidalocal/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	host  string
	err   error
	calls int
}

func (r *countingResolver) Resolve(ctx context.Context) (string, error) {
	r.calls++
	return r.host, r.err
}

func inline(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

func decodeDoc(t *testing.T, body string) *models.AnnotationDocument {
	t.Helper()
	var doc models.AnnotationDocument
	require.NoError(t, json.Unmarshal([]byte(body), &doc))
	return &doc
}

func readAnnotation(t *testing.T, path string) models.AnnotationData {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var annotation models.AnnotationData
	require.NoError(t, json.Unmarshal(data, &annotation))
	return annotation
}

func TestSaveMaterializesRasterAndRewritesSource(t *testing.T) {
	layout := storage.New(t.TempDir())
	resolver := &countingResolver{host: "192.168.1.20"}
	p := NewPersister(layout, resolver, 3000)

	pixels := []byte("\x89PNG\r\n\x1a\nraster-bytes")
	doc := &models.AnnotationDocument{
		ProjectImageName: "slide1",
		AnnotationData: models.AnnotationData{Layers: []models.Layer{
			{Name: "L1", Items: []models.Item{models.NewItem(models.ItemTypeRaster, inline(pixels))}},
		}},
	}

	result, err := p.Save(context.Background(), doc)
	require.NoError(t, err)

	rasterPath := filepath.Join(layout.RasterDir("slide1"), "0_L1.png")
	assert.Equal(t, []string{rasterPath}, result.RasterPaths)
	assert.Equal(t, layout.AnnotationPath("slide1"), result.AnnotationPath)

	written, err := os.ReadFile(rasterPath)
	require.NoError(t, err)
	assert.Equal(t, pixels, written)

	saved := readAnnotation(t, layout.AnnotationPath("slide1"))
	require.Len(t, saved.Layers, 1)
	require.Len(t, saved.Layers[0].Items, 1)
	source := saved.Layers[0].Items[0].Source
	assert.Equal(t, "http://192.168.1.20:3000/annotations/raster/slide1/0_L1.png", source)

	// The URL path maps back onto the raster directory.
	u, err := url.Parse(source)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20", u.Hostname())
	served := filepath.Join(layout.Root(), filepath.FromSlash(u.Path))
	assert.Equal(t, rasterPath, served)

	assert.Equal(t, 1, resolver.calls)
}

func TestSaveKeepsVectorItemsAndExistingURLs(t *testing.T) {
	layout := storage.New(t.TempDir())
	resolver := &countingResolver{host: "10.0.0.2"}
	p := NewPersister(layout, resolver, 3000)

	doc := decodeDoc(t, `{
		"projectImageName": "slide2",
		"annotationData": {"layers": [{
			"name": "tumour",
			"items": [
				{"type": "path", "segments": [[0,0],[5,5]], "closed": true},
				{"type": "raster", "source": "http://10.0.0.9:3000/annotations/raster/slide2/1_tumour.png"}
			]
		}]}
	}`)

	_, err := p.Save(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 0, resolver.calls)
	assert.NoDirExists(t, layout.RasterDir("slide2"))

	data, err := os.ReadFile(layout.AnnotationPath("slide2"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"layers": [{
		"name": "tumour",
		"items": [
			{"type": "path", "segments": [[0,0],[5,5]], "closed": true},
			{"type": "raster", "source": "http://10.0.0.9:3000/annotations/raster/slide2/1_tumour.png"}
		]
	}]}`, string(data))
}

func TestSaveDistinctPathsPerPosition(t *testing.T) {
	layout := storage.New(t.TempDir())
	p := NewPersister(layout, &countingResolver{host: "10.0.0.2"}, 3000)

	doc := &models.AnnotationDocument{
		ProjectImageName: "slide3",
		AnnotationData: models.AnnotationData{Layers: []models.Layer{
			{Name: "L1", Items: []models.Item{
				models.NewItem(models.ItemTypeRaster, inline([]byte("first"))),
				models.NewItem("circle", ""),
				models.NewItem(models.ItemTypeRaster, inline([]byte("third"))),
			}},
			{Name: "L2", Items: []models.Item{
				models.NewItem(models.ItemTypeRaster, inline([]byte("other layer"))),
			}},
		}},
	}

	result, err := p.Save(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, result.RasterPaths, 3)

	dir := layout.RasterDir("slide3")
	assert.Equal(t, []string{
		filepath.Join(dir, "0_L1.png"),
		filepath.Join(dir, "2_L1.png"),
		filepath.Join(dir, "0_L2.png"),
	}, result.RasterPaths)

	for path, want := range map[string]string{
		"0_L1.png": "first",
		"2_L1.png": "third",
		"0_L2.png": "other layer",
	} {
		got, err := os.ReadFile(filepath.Join(dir, path))
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}

func TestSaveFailureLeavesEarlierRastersAndNoDocument(t *testing.T) {
	layout := storage.New(t.TempDir())
	p := NewPersister(layout, &countingResolver{host: "10.0.0.2"}, 3000)

	doc := &models.AnnotationDocument{
		ProjectImageName: "slide4",
		AnnotationData: models.AnnotationData{Layers: []models.Layer{
			{Name: "L1", Items: []models.Item{
				models.NewItem(models.ItemTypeRaster, inline([]byte("ok"))),
				models.NewItem(models.ItemTypeRaster, "data:image/png;base64,not*base64"),
				models.NewItem(models.ItemTypeRaster, inline([]byte("never written"))),
			}},
		}},
	}

	result, err := p.Save(context.Background(), doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDecode)
	assert.Nil(t, result)

	assert.FileExists(t, filepath.Join(layout.RasterDir("slide4"), "0_L1.png"))
	assert.NoFileExists(t, filepath.Join(layout.RasterDir("slide4"), "1_L1.png"))
	assert.NoFileExists(t, filepath.Join(layout.RasterDir("slide4"), "2_L1.png"))
	assert.NoFileExists(t, layout.AnnotationPath("slide4"))
}

func TestSaveResolutionFailureWritesNoDocument(t *testing.T) {
	layout := storage.New(t.TempDir())
	p := NewPersister(layout, netaddr.StaticResolver{}, 3000)

	doc := &models.AnnotationDocument{
		ProjectImageName: "slide5",
		AnnotationData: models.AnnotationData{Layers: []models.Layer{
			{Name: "L1", Items: []models.Item{models.NewItem(models.ItemTypeRaster, inline([]byte("px")))}},
		}},
	}

	_, err := p.Save(context.Background(), doc)
	assert.ErrorIs(t, err, models.ErrResolution)
	assert.NoFileExists(t, layout.AnnotationPath("slide5"))
}

func TestSaveWithHostPortPublicHostFails(t *testing.T) {
	layout := storage.New(t.TempDir())
	p := NewPersister(layout, netaddr.StaticResolver{Host: "aida.example.edu:8443"}, 3000)

	doc := &models.AnnotationDocument{
		ProjectImageName: "s",
		AnnotationData: models.AnnotationData{Layers: []models.Layer{
			{Name: "L1", Items: []models.Item{models.NewItem(models.ItemTypeRaster, inline([]byte("px")))}},
		}},
	}

	_, err := p.Save(context.Background(), doc)
	assert.ErrorIs(t, err, models.ErrResolution)
	assert.NoFileExists(t, layout.AnnotationPath("s"))
}

func TestSaveOverwritesPreviousDocument(t *testing.T) {
	layout := storage.New(t.TempDir())
	p := NewPersister(layout, &countingResolver{host: "10.0.0.2"}, 3000)

	first := decodeDoc(t, `{"projectImageName":"slide6","annotationData":{"layers":[{"name":"a","items":[]},{"name":"b","items":[]}]}}`)
	_, err := p.Save(context.Background(), first)
	require.NoError(t, err)

	second := decodeDoc(t, `{"projectImageName":"slide6","annotationData":{"layers":[{"name":"c","items":[]}]}}`)
	_, err = p.Save(context.Background(), second)
	require.NoError(t, err)

	saved := readAnnotation(t, layout.AnnotationPath("slide6"))
	require.Len(t, saved.Layers, 1)
	assert.Equal(t, "c", saved.Layers[0].Name)
}

func TestSaveRejectsUnsafeNames(t *testing.T) {
	tests := []struct {
		name  string
		image string
		layer string
	}{
		{name: "empty image name", image: "", layer: "L1"},
		{name: "image name with separator", image: "../escape", layer: "L1"},
		{name: "dot dot image name", image: "..", layer: "L1"},
		{name: "layer name with separator", image: "slide", layer: "a/b"},
		{name: "layer name with backslash", image: "slide", layer: `a\b`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			layout := storage.New(root)
			p := NewPersister(layout, &countingResolver{host: "10.0.0.2"}, 3000)

			doc := &models.AnnotationDocument{
				ProjectImageName: tt.image,
				AnnotationData: models.AnnotationData{Layers: []models.Layer{
					{Name: tt.layer, Items: []models.Item{models.NewItem(models.ItemTypeRaster, inline([]byte("px")))}},
				}},
			}

			_, err := p.Save(context.Background(), doc)
			assert.ErrorIs(t, err, models.ErrInvalidDocument)

			entries, err := os.ReadDir(root)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestRasterURLEscapesNames(t *testing.T) {
	p := NewPersister(storage.New(t.TempDir()), nil, 8080)
	assert.Equal(t,
		"http://10.0.0.2:8080/annotations/raster/slide%201/0_my%20layer.png",
		p.rasterURL("10.0.0.2", "slide 1", RasterFilename("my layer", 0, ".png")))
}

func TestRasterFilename(t *testing.T) {
	assert.Equal(t, "3_L1.gif", RasterFilename("L1", 3, ".gif"))
	assert.NotEqual(t, RasterFilename("L1", 0, ".png"), RasterFilename("L1", 1, ".png"))
}
