package icon

import "strings"

// IsSVG reports whether body looks like an SVG document: after leading
// whitespace, an optional XML prolog, comments and a doctype, it must
// start with an <svg element.
func IsSVG(body string) bool {
	s := strings.TrimSpace(body)
	for {
		switch {
		case strings.HasPrefix(s, "<?xml"):
			s = skipPast(s, "?>")
		case strings.HasPrefix(s, "<!--"):
			s = skipPast(s, "-->")
		case strings.HasPrefix(s, "<!DOCTYPE"), strings.HasPrefix(s, "<!doctype"):
			s = skipPast(s, ">")
		default:
			if !strings.HasPrefix(s, "<svg") {
				return false
			}
			if len(s) == len("<svg") {
				return false
			}
			switch s[len("<svg")] {
			case ' ', '\t', '\r', '\n', '>', '/':
				return true
			}
			return false
		}
		if s == "" {
			return false
		}
	}
}

// skipPast drops everything up to and including end. It returns "" when
// end does not occur.
func skipPast(s, end string) string {
	i := strings.Index(s, end)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(s[i+len(end):])
}
