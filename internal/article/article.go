package article

// Placeholders used when an optional region is missing from the page.
const (
	UnknownTitle     = "(untitled)"
	UnknownPublisher = "(unknown publisher)"
	UnknownPublished = "(unknown time)"
)

// RawDocument is an unparsed HTTP response for a single article page.
type RawDocument struct {
	RequestURL  string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Content holds the structured fields recovered from a RawDocument.
type Content struct {
	Title       string `json:"title"`
	Publisher   string `json:"publisher_name"`
	PublishedAt string `json:"published_at"`
	BodyText    string `json:"body_text"`
	SourceURL   string `json:"source_url"`
}

// OK reports whether the extraction produced body text.
func (c *Content) OK() bool {
	return c != nil && c.BodyText != ""
}

// Summary is the validated output artifact of a pipeline run.
type Summary struct {
	Title           string   `json:"title"`
	OneLineSummary  string   `json:"one_line_summary"`
	DetailedSummary string   `json:"detailed_summary"`
	KeyPoints       []string `json:"key_points"`
	SourceURL       string   `json:"source_url"`
}
