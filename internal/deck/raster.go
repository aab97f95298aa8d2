package deck

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// SVGRasterizer hands SVG documents to devices that render SVG natively,
// such as virtual decks. It checks the document is well-formed XML with an
// <svg> root and rejects any other image format.
type SVGRasterizer struct{}

// Rasterize implements Rasterizer.
func (SVGRasterizer) Rasterize(ctx context.Context, svg string, format ImageFormat) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if format.Format != "SVG" {
		return nil, fmt.Errorf("%w: no rasterizer for %s images", ErrRender, format.Format)
	}

	dec := xml.NewDecoder(bytes.NewReader([]byte(svg)))
	sawRoot := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRender, err)
		}
		if se, ok := tok.(xml.StartElement); ok && !sawRoot {
			if se.Name.Local != "svg" {
				return nil, fmt.Errorf("%w: root element is <%s>", ErrRender, se.Name.Local)
			}
			sawRoot = true
		}
	}
	if !sawRoot {
		return nil, fmt.Errorf("%w: no <svg> element", ErrRender)
	}
	return []byte(svg), nil
}
