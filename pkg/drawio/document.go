package drawio

import (
	"bytes"
	"encoding/xml"
	"regexp"

	"github.com/matzehuels/trustlane/pkg/errors"
)

const (
	declarationPrefix = "<?xml"
	rootOpenTag       = "<mxfile"
)

var declaration = regexp.MustCompile(`<\?xml[^>]*\?>\s*`)

// File is the mxfile envelope.
type File struct {
	XMLName  xml.Name `xml:"mxfile"`
	Host     string   `xml:"host,attr"`
	Modified string   `xml:"modified,attr"`
	Diagram  Diagram  `xml:"diagram"`
}

// Diagram is the single page of a document.
type Diagram struct {
	ID    string `xml:"id,attr"`
	Name  string `xml:"name,attr"`
	Model Model  `xml:"mxGraphModel"`
}

// Model is the mxGraphModel holding the page settings and cells.
type Model struct {
	Dx         string `xml:"dx,attr"`
	Dy         string `xml:"dy,attr"`
	Grid       string `xml:"grid,attr"`
	GridSize   string `xml:"gridSize,attr"`
	Guides     string `xml:"guides,attr"`
	Tooltips   string `xml:"tooltips,attr"`
	Connect    string `xml:"connect,attr"`
	Arrows     string `xml:"arrows,attr"`
	Fold       string `xml:"fold,attr"`
	Page       string `xml:"page,attr"`
	PageScale  string `xml:"pageScale,attr"`
	PageWidth  string `xml:"pageWidth,attr"`
	PageHeight string `xml:"pageHeight,attr"`
	Math       string `xml:"math,attr"`
	Shadow     string `xml:"shadow,attr"`
	Root       Root   `xml:"root"`
}

// Root lists the cells of a model in document order.
type Root struct {
	Cells []Cell `xml:"mxCell"`
}

// Cell is a single mxCell: the root, a layer, a vertex or an edge.
type Cell struct {
	ID       string    `xml:"id,attr"`
	Parent   string    `xml:"parent,attr,omitempty"`
	Value    string    `xml:"value,attr,omitempty"`
	Style    string    `xml:"style,attr,omitempty"`
	Vertex   string    `xml:"vertex,attr,omitempty"`
	Edge     string    `xml:"edge,attr,omitempty"`
	Source   string    `xml:"source,attr,omitempty"`
	Target   string    `xml:"target,attr,omitempty"`
	Geometry *Geometry `xml:"mxGeometry"`
}

// IsVertex reports whether the cell is a shape or container.
func (c Cell) IsVertex() bool { return c.Vertex == "1" }

// IsEdge reports whether the cell is a connector.
func (c Cell) IsEdge() bool { return c.Edge == "1" }

// Geometry is an mxGeometry. Relative is "1" when coordinates are relative
// to the parent cell and "0" when absolute.
type Geometry struct {
	X        int    `xml:"x,attr"`
	Y        int    `xml:"y,attr"`
	Width    int    `xml:"width,attr"`
	Height   int    `xml:"height,attr"`
	Relative string `xml:"relative,attr"`
	As       string `xml:"as,attr"`
}

// Document is a built diagram ready to serialize.
type Document struct {
	File File
}

// Cells returns the document's cells in output order.
func (d *Document) Cells() []Cell { return d.File.Diagram.Model.Root.Cells }

// Marshal serializes the document with a single leading XML declaration.
func (d *Document) Marshal() ([]byte, error) {
	body, err := xml.MarshalIndent(d.File, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode drawio document")
	}
	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, xml.Header...)
	out = append(out, body...)
	out = append(out, '\n')

	out = stripExtraDeclarations(out)
	if err := Verify(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Unmarshal parses serialized drawio output back into a Document.
func Unmarshal(data []byte) (*Document, error) {
	var f File
	if err := xml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse drawio document")
	}
	return &Document{File: f}, nil
}

// Verify checks the serialization invariants: at most one XML declaration,
// located at offset 0, and exactly one mxfile open tag.
func Verify(data []byte) error {
	n := bytes.Count(data, []byte(declarationPrefix))
	if n > 1 {
		return errors.New(errors.ErrCodeInvariant, "document contains %d XML declarations", n)
	}
	if n == 1 && !bytes.HasPrefix(data, []byte(declarationPrefix)) {
		return errors.New(errors.ErrCodeInvariant, "XML declaration is not at offset 0")
	}
	if roots := bytes.Count(data, []byte(rootOpenTag)); roots != 1 {
		return errors.New(errors.ErrCodeInvariant, "document contains %d mxfile elements, want 1", roots)
	}
	return nil
}

// stripExtraDeclarations keeps the first XML declaration and removes the rest.
func stripExtraDeclarations(data []byte) []byte {
	if bytes.Count(data, []byte(declarationPrefix)) <= 1 {
		return data
	}
	loc := declaration.FindIndex(data)
	if loc == nil {
		return data
	}
	end := bytes.Index(data[loc[0]:], []byte("?>")) + loc[0] + 2
	rest := declaration.ReplaceAll(bytes.TrimLeft(data[end:], " \t\r\n"), nil)

	out := make([]byte, 0, len(data))
	out = append(out, data[:end]...)
	out = append(out, '\n')
	return append(out, rest...)
}
