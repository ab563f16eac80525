package docai

import (
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
)

// TextFromLayout returns the text covered by layout's anchor. Segment indices
// count code points of text, not bytes.
func TextFromLayout(layout *documentaipb.Document_Page_Layout, text string) string {
	if layout == nil {
		return ""
	}
	return TextFromAnchor(layout.GetTextAnchor(), text)
}

// TextFromAnchor joins every segment of anchor.
func TextFromAnchor(anchor *documentaipb.Document_TextAnchor, text string) string {
	if anchor == nil || len(anchor.TextSegments) == 0 {
		return ""
	}
	runes := []rune(text)
	var b strings.Builder
	for _, seg := range anchor.TextSegments {
		start, end := int(seg.StartIndex), int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > len(runes) {
			end = len(runes)
		}
		if start >= end {
			continue
		}
		b.WriteString(string(runes[start:end]))
	}
	return b.String()
}

// BoundingBox returns the min/max rectangle of poly, preferring normalized
// vertices. ok is false when the polygon has no vertices.
func BoundingBox(poly *documentaipb.BoundingPoly) (left, top, right, bottom float64, ok bool) {
	if poly == nil {
		return 0, 0, 0, 0, false
	}
	var xs, ys []float64
	if nv := poly.GetNormalizedVertices(); len(nv) > 0 {
		for _, v := range nv {
			xs = append(xs, float64(v.X))
			ys = append(ys, float64(v.Y))
		}
	} else {
		for _, v := range poly.GetVertices() {
			xs = append(xs, float64(v.X))
			ys = append(ys, float64(v.Y))
		}
	}
	if len(xs) == 0 {
		return 0, 0, 0, 0, false
	}
	left, right = xs[0], xs[0]
	top, bottom = ys[0], ys[0]
	for i := range xs {
		left = min(left, xs[i])
		right = max(right, xs[i])
		top = min(top, ys[i])
		bottom = max(bottom, ys[i])
	}
	return left, top, right, bottom, true
}
