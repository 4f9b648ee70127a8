package domain

// SourceType selects where the HTML to convert comes from.
type SourceType string

const (
	SourceURL  SourceType = "url"
	SourceFile SourceType = "file"
)

// Request is a validated conversion request. Exactly one of URL or
// FileContent is populated, determined by SourceType.
type Request struct {
	SourceType  SourceType
	URL         string
	FileContent []byte
	FileName    string
	Settings    Settings
}
