package article

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind enumerates the ways a pipeline run can fail.
type Kind string

const (
	KindHTTP            Kind = "http_error"
	KindChallenge       Kind = "challenge_page"
	KindContentNotFound Kind = "content_not_found"
	KindTransport       Kind = "transport"
	KindValidation      Kind = "validation"
	KindSummarizer      Kind = "summarizer"
	KindPersistence     Kind = "persistence"
)

// Violation describes one field of a candidate summary that broke its contract.
type Violation struct {
	Field   string
	Message string
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// Failure is the error type returned by every pipeline stage.
type Failure struct {
	Kind       Kind
	Stage      string
	StatusCode int
	Detail     string
	Violations []Violation
	Err        error
}

func (f *Failure) Error() string {
	var b strings.Builder
	if f.Stage != "" {
		b.WriteString(f.Stage)
		b.WriteString(": ")
	}
	switch f.Kind {
	case KindHTTP:
		fmt.Fprintf(&b, "HTTP %d %s", f.StatusCode, http.StatusText(f.StatusCode))
	case KindChallenge:
		b.WriteString("blocked by anti-bot challenge page")
	case KindContentNotFound:
		b.WriteString("article content not found")
	case KindTransport:
		b.WriteString("transport error")
	case KindValidation:
		b.WriteString("summary failed validation")
	case KindSummarizer:
		b.WriteString("summarizer error")
	case KindPersistence:
		b.WriteString("persistence error")
	default:
		b.WriteString(string(f.Kind))
	}
	if f.Detail != "" {
		b.WriteString(": ")
		b.WriteString(f.Detail)
	}
	if len(f.Violations) > 0 {
		parts := make([]string, len(f.Violations))
		for i, v := range f.Violations {
			parts[i] = v.String()
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(")")
	}
	if f.Err != nil {
		b.WriteString(": ")
		b.WriteString(f.Err.Error())
	}
	return b.String()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// HTTPError reports a non-200 response.
func HTTPError(code int) *Failure {
	return &Failure{Kind: KindHTTP, StatusCode: code}
}

// ChallengePage reports that the site served a verification screen instead of the article.
func ChallengePage(marker string) *Failure {
	f := &Failure{Kind: KindChallenge}
	if marker != "" {
		f.Detail = fmt.Sprintf("matched marker %q", marker)
	}
	return f
}

// ContentNotFound reports a page without the expected body region.
func ContentNotFound(detail string) *Failure {
	return &Failure{Kind: KindContentNotFound, Detail: detail}
}

// TransportError wraps a network, TLS, DNS, timeout or malformed-URL error.
func TransportError(err error) *Failure {
	return &Failure{Kind: KindTransport, Err: err}
}

// ValidationError reports a summary rejected by the schema checks.
func ValidationError(violations []Violation) *Failure {
	return &Failure{Kind: KindValidation, Violations: violations}
}

// SummarizerError wraps a summarizer that failed to return any candidate.
func SummarizerError(err error) *Failure {
	return &Failure{Kind: KindSummarizer, Err: err}
}

// PersistenceError wraps a failed artifact write.
func PersistenceError(err error) *Failure {
	return &Failure{Kind: KindPersistence, Err: err}
}

// AsFailure finds the first *Failure in err's chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// KindOf returns the failure kind carried by err, or "" when err is not a Failure.
func KindOf(err error) Kind {
	if f, ok := AsFailure(err); ok {
		return f.Kind
	}
	return ""
}
