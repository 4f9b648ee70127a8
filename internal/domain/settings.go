package domain

import (
	"encoding/json"
	"strings"
)

// PageSize names one of the supported paper formats.
type PageSize string

const (
	PageA4      PageSize = "A4"
	PageLetter  PageSize = "Letter"
	PageLegal   PageSize = "Legal"
	PageTabloid PageSize = "Tabloid"
)

// Orientation is the page orientation.
type Orientation string

const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// MarginLevel names one of the discrete margin presets.
type MarginLevel string

const (
	MarginNone   MarginLevel = "none"
	MarginSmall  MarginLevel = "small"
	MarginMedium MarginLevel = "medium"
	MarginLarge  MarginLevel = "large"
)

// Settings are the user-facing conversion options. Zero value is not
// meaningful; use DefaultSettings or ParseSettings.
type Settings struct {
	PageSize              PageSize    `json:"pageSize"`
	Orientation           Orientation `json:"orientation"`
	Margins               MarginLevel `json:"margins"`
	IncludeBackground     bool        `json:"includeBackground"`
	WaitForDynamicContent bool        `json:"waitForDynamicContent"`
}

// DefaultSettings returns the documented defaults: A4 portrait with
// small margins, no backgrounds, no dynamic-content wait.
func DefaultSettings() Settings {
	return Settings{
		PageSize:    PageA4,
		Orientation: OrientationPortrait,
		Margins:     MarginSmall,
	}
}

// ParseSettings decodes the optional settings JSON. Malformed JSON and
// unrecognized enum values fall back to defaults rather than erroring,
// so a bad settings blob never fails a conversion.
func ParseSettings(raw string) Settings {
	s := DefaultSettings()
	if strings.TrimSpace(raw) == "" {
		return s
	}

	var in struct {
		PageSize              string `json:"pageSize"`
		Orientation           string `json:"orientation"`
		Margins               string `json:"margins"`
		IncludeBackground     bool   `json:"includeBackground"`
		WaitForDynamicContent bool   `json:"waitForDynamicContent"`
	}
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return s
	}

	switch PageSize(normalizeSize(in.PageSize)) {
	case PageA4:
		s.PageSize = PageA4
	case PageLetter:
		s.PageSize = PageLetter
	case PageLegal:
		s.PageSize = PageLegal
	case PageTabloid:
		s.PageSize = PageTabloid
	}
	switch Orientation(strings.ToLower(in.Orientation)) {
	case OrientationPortrait:
		s.Orientation = OrientationPortrait
	case OrientationLandscape:
		s.Orientation = OrientationLandscape
	}
	switch MarginLevel(strings.ToLower(in.Margins)) {
	case MarginNone:
		s.Margins = MarginNone
	case MarginSmall:
		s.Margins = MarginSmall
	case MarginMedium:
		s.Margins = MarginMedium
	case MarginLarge:
		s.Margins = MarginLarge
	}
	s.IncludeBackground = in.IncludeBackground
	s.WaitForDynamicContent = in.WaitForDynamicContent
	return s
}

// normalizeSize maps case-insensitive size names onto the canonical
// spelling ("a4" -> "A4", "LETTER" -> "Letter").
func normalizeSize(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "a4":
		return string(PageA4)
	case "letter":
		return string(PageLetter)
	case "legal":
		return string(PageLegal)
	case "tabloid":
		return string(PageTabloid)
	}
	return v
}
