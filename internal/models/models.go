package models

import (
	"encoding/json"
	"fmt"
)

// CatalogNode represents one entry of the image directory. Directories carry
// Children (possibly empty), files carry Ext.
type CatalogNode struct {
	Name     string
	Ext      string
	Children []CatalogNode
	IsDir    bool
}

type catalogDir struct {
	Name     string        `json:"name"`
	Children []CatalogNode `json:"children"`
}

type catalogFile struct {
	Name string `json:"name"`
	Ext  string `json:"ext"`
}

// MarshalJSON writes {"name","children"} for directories and {"name","ext"} for files.
func (n CatalogNode) MarshalJSON() ([]byte, error) {
	if n.IsDir {
		children := n.Children
		if children == nil {
			children = []CatalogNode{}
		}
		return json.Marshal(catalogDir{Name: n.Name, Children: children})
	}
	return json.Marshal(catalogFile{Name: n.Name, Ext: n.Ext})
}

func (n *CatalogNode) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name     string         `json:"name"`
		Ext      string         `json:"ext"`
		Children *[]CatalogNode `json:"children"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = CatalogNode{Name: raw.Name, Ext: raw.Ext}
	if raw.Children != nil {
		n.IsDir = true
		n.Children = *raw.Children
	}
	return nil
}

// AnnotationDocument is the body of a save request.
type AnnotationDocument struct {
	ProjectImageName string         `json:"projectImageName"`
	AnnotationData   AnnotationData `json:"annotationData"`
}

// AnnotationData holds the layers of one image. Fields other than layers are
// kept as received so the viewer gets back exactly what it sent.
type AnnotationData struct {
	Layers []Layer

	fields object
}

func (d *AnnotationData) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	d.fields = fields
	d.Layers = nil
	if raw, ok := fields.get("layers"); ok {
		if err := json.Unmarshal(raw, &d.Layers); err != nil {
			return fmt.Errorf("failed to decode layers: %w", err)
		}
	}
	return nil
}

func (d AnnotationData) MarshalJSON() ([]byte, error) {
	layers := d.Layers
	if layers == nil {
		layers = []Layer{}
	}
	return d.fields.encode(field{"layers", layers})
}

// Layer is a named, ordered group of items.
type Layer struct {
	Name  string
	Items []Item

	fields object
}

func (l *Layer) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	l.fields = fields
	if l.Name, err = stringField(fields, "name"); err != nil {
		return err
	}
	l.Items = nil
	if raw, ok := fields.get("items"); ok {
		if err := json.Unmarshal(raw, &l.Items); err != nil {
			return fmt.Errorf("failed to decode items of layer %q: %w", l.Name, err)
		}
	}
	return nil
}

func (l Layer) MarshalJSON() ([]byte, error) {
	items := l.Items
	if items == nil {
		items = []Item{}
	}
	return l.fields.encode(field{"name", l.Name}, field{"items", items})
}

// ItemTypeRaster tags items whose content is pixel data.
const ItemTypeRaster = "raster"

// Item is one annotation item. Only type and source are interpreted; every
// other field (vector geometry, styling) passes through untouched.
type Item struct {
	Type   string
	Source string

	fields object
}

// NewItem builds an item with only a type and source set.
func NewItem(itemType, source string) Item {
	return Item{Type: itemType, Source: source}
}

// IsRaster reports whether the item carries pixel data.
func (i Item) IsRaster() bool {
	return i.Type == ItemTypeRaster
}

func (i *Item) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	i.fields = fields
	if i.Type, err = stringField(fields, "type"); err != nil {
		return err
	}
	if i.Source, err = stringField(fields, "source"); err != nil {
		return err
	}
	return nil
}

func (i Item) MarshalJSON() ([]byte, error) {
	var overrides []field
	if i.Type != "" {
		overrides = append(overrides, field{"type", i.Type})
	}
	if i.Source != "" {
		overrides = append(overrides, field{"source", i.Source})
	}
	return i.fields.encode(overrides...)
}
