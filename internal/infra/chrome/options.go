package chrome

import (
	"github.com/chromedp/cdproto/page"

	"html2pdf/internal/domain"
)

// paperInches holds the physical page dimensions in inches (portrait),
// the unit PrintToPDF consumes.
var paperInches = map[domain.PageSize]struct{ Width, Height float64 }{
	domain.PageA4:      {8.27, 11.69},
	domain.PageLetter:  {8.5, 11},
	domain.PageLegal:   {8.5, 14},
	domain.PageTabloid: {11, 17},
}

// marginInches maps the named margin levels to a uniform offset in
// inches. One canonical table for every code path.
var marginInches = map[domain.MarginLevel]float64{
	domain.MarginNone:   0,
	domain.MarginSmall:  0.5,
	domain.MarginMedium: 1.0,
	domain.MarginLarge:  2.0,
}

// PrintParams translates user-facing conversion settings into Chrome
// print options. Pure function: no side effects, deterministic.
// Unrecognized sizes and margin levels fall back to the defaults.
func PrintParams(s domain.Settings) *page.PrintToPDFParams {
	size, ok := paperInches[s.PageSize]
	if !ok {
		size = paperInches[domain.PageA4]
	}
	w, h := size.Width, size.Height
	if s.Orientation == domain.OrientationLandscape {
		w, h = h, w
	}

	m, ok := marginInches[s.Margins]
	if !ok {
		m = marginInches[domain.MarginSmall]
	}

	return page.PrintToPDF().
		WithPrintBackground(s.IncludeBackground).
		WithPaperWidth(w).
		WithPaperHeight(h).
		WithMarginTop(m).
		WithMarginBottom(m).
		WithMarginLeft(m).
		WithMarginRight(m)
}
