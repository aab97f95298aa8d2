package icon

import "errors"

var (
	// ErrUnknownButton is returned for a UUID no button carries.
	ErrUnknownButton = errors.New("icon: unknown button")

	// ErrNotSVG is returned for an empty body or one that is not an SVG document.
	ErrNotSVG = errors.New("icon: body is not an svg document")

	// ErrRender is returned when the owning deck cannot rasterize the icon.
	ErrRender = errors.New("icon: icon cannot be rendered")
)
