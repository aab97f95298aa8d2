// Package deck attaches physical (or virtual) decks and bridges them to
// the button registry and press classifier.
//
// Hardware access goes through the Driver and Device interfaces; SVG to
// bitmap conversion goes through Rasterizer. The package ships a virtual
// driver, used in development and tests, and an SVG passthrough
// rasterizer for devices that accept SVG directly. USB drivers and bitmap
// rasterizers are supplied by the embedding binary.
package deck
