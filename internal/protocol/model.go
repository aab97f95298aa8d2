package protocol

// Model names the product line of the first reported device by its key
// grid. It returns "None" when no device is attached and "Unknown" for an
// unrecognised grid.
func Model(info Info) string {
	if len(info.Devices) == 0 {
		return "None"
	}
	switch info.Devices[0].Size {
	case Size{Columns: 3, Rows: 2}:
		return "Stream Deck Mini"
	case Size{Columns: 5, Rows: 3}:
		return "Stream Deck MK.2"
	case Size{Columns: 4, Rows: 2}:
		return "Stream Deck +"
	case Size{Columns: 8, Rows: 4}:
		return "Stream Deck XL"
	}
	return "Unknown"
}
