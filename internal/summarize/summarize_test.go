package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/ArticleDigest/internal/article"
	"github.com/TobiSchelling/ArticleDigest/internal/config"
)

// text returns a string of exactly n characters built from words.
func text(n int) string {
	s := strings.Repeat("lorem ipsum dolor ", n/18+1)
	s = s[:n]
	if strings.HasSuffix(s, " ") {
		s = s[:n-1] + "x"
	}
	return s
}

func testContent() *article.Content {
	return &article.Content{
		Title:       "Foo",
		Publisher:   "Tech Weekly",
		PublishedAt: "2024-03-05T10:30:00Z",
		BodyText:    "The article body goes here.",
		SourceURL:   "https://example.com/a",
	}
}

func validCandidate() *Candidate {
	return &Candidate{
		Title:           "Foo",
		OneLineSummary:  text(80),
		DetailedSummary: text(400),
		KeyPoints:       []string{text(60), text(70), text(80), text(90)},
		SourceURL:       "https://example.com/a",
	}
}

type stubCapability struct {
	responses []*Candidate
	errs      []error
	requests  []Request
	deadlines []bool
}

func (s *stubCapability) Summarize(ctx context.Context, req Request) (*Candidate, error) {
	i := len(s.requests)
	s.requests = append(s.requests, req)
	_, hasDeadline := ctx.Deadline()
	s.deadlines = append(s.deadlines, hasDeadline)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return s.responses[len(s.responses)-1], nil
}

func testConfig() config.Summarization {
	return config.Summarization{MaxAttempts: 2, Timeout: time.Minute}
}

func TestCharCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 3},
		{"  a \n\t b  ", 3},
		{"中文摘要", 4},
		{"e\u0301", 1},
	}
	for _, tt := range tests {
		if got := CharCount(tt.in); got != tt.want {
			t.Errorf("CharCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTextHelper(t *testing.T) {
	for _, n := range []int{50, 80, 100, 300, 500} {
		if got := CharCount(text(n)); got != n {
			t.Fatalf("text(%d) has %d characters", n, got)
		}
	}
}

func TestCoerceCleansKeyPoints(t *testing.T) {
	c := &Candidate{
		Title:           "  Model   Title ",
		OneLineSummary:  "  one \n line ",
		DetailedSummary: "detail",
		KeyPoints:       []string{"1. first point", "- second point", "• third", "   ", "2) fourth", "10.5% growth in sales"},
		SourceURL:       "https://elsewhere.example/hallucinated",
	}
	s := Coerce(c, testContent())

	want := []string{"first point", "second point", "third", "fourth", "10.5% growth in sales"}
	if len(s.KeyPoints) != len(want) {
		t.Fatalf("expected %d key points, got %d: %q", len(want), len(s.KeyPoints), s.KeyPoints)
	}
	for i := range want {
		if s.KeyPoints[i] != want[i] {
			t.Errorf("key point %d: got %q, want %q", i, s.KeyPoints[i], want[i])
		}
	}
	if s.OneLineSummary != "one line" {
		t.Errorf("expected collapsed one-line summary, got %q", s.OneLineSummary)
	}
	if s.SourceURL != "https://example.com/a" {
		t.Errorf("expected source url pinned to article, got %q", s.SourceURL)
	}
	if s.Title != "Foo" {
		t.Errorf("expected article title, got %q", s.Title)
	}
}

func TestCoerceTitleFallbacks(t *testing.T) {
	content := testContent()
	content.Title = article.UnknownTitle

	s := Coerce(&Candidate{Title: " Model Title "}, content)
	if s.Title != "Model Title" {
		t.Errorf("expected model title when article has none, got %q", s.Title)
	}

	s = Coerce(&Candidate{}, content)
	if s.Title != article.UnknownTitle {
		t.Errorf("expected placeholder title, got %q", s.Title)
	}
}

func TestValidateAcceptsValidSummary(t *testing.T) {
	s := Coerce(validCandidate(), testContent())
	if v := Validate(s, 0); v != nil {
		t.Errorf("expected no violations, got %v", v)
	}
}

func TestValidateBoundaries(t *testing.T) {
	s := Coerce(validCandidate(), testContent())
	s.OneLineSummary = text(100)
	s.DetailedSummary = text(300)
	s.KeyPoints = []string{text(50), text(100), text(50)}
	if v := Validate(s, 0); v != nil {
		t.Errorf("expected exact bounds to pass, got %v", v)
	}

	s.DetailedSummary = text(500)
	s.KeyPoints = append(s.KeyPoints, text(75), text(75))
	if v := Validate(s, 0); v != nil {
		t.Errorf("expected upper bounds to pass, got %v", v)
	}
}

func TestValidateReportsViolations(t *testing.T) {
	s := &article.Summary{
		Title:           "Foo",
		OneLineSummary:  text(101),
		DetailedSummary: text(299),
		KeyPoints:       []string{text(49), text(101)},
		SourceURL:       "",
	}
	v := Validate(s, 0)

	fields := map[string]bool{}
	for _, x := range v {
		fields[x.Field] = true
	}
	for _, f := range []string{"one_line_summary", "detailed_summary", "key_points", "key_points[0]", "key_points[1]", "source_url"} {
		if !fields[f] {
			t.Errorf("expected violation for %s, got %v", f, v)
		}
	}
}

func TestValidateTooManyKeyPoints(t *testing.T) {
	s := Coerce(validCandidate(), testContent())
	s.KeyPoints = []string{text(60), text(60), text(60), text(60), text(60), text(60)}
	v := Validate(s, 0)
	if len(v) != 1 || v[0].Field != "key_points" {
		t.Errorf("expected single key_points violation, got %v", v)
	}
}

func TestValidateEmptyOneLine(t *testing.T) {
	s := Coerce(validCandidate(), testContent())
	s.OneLineSummary = "   "
	v := Validate(s, 0)
	if len(v) != 1 || v[0].Field != "one_line_summary" || v[0].Message != "is empty" {
		t.Errorf("expected empty one-line violation, got %v", v)
	}
}

func TestValidateTolerance(t *testing.T) {
	s := Coerce(validCandidate(), testContent())
	s.DetailedSummary = text(505)
	s.OneLineSummary = text(103)

	if v := Validate(s, 0); len(v) != 2 {
		t.Errorf("expected 2 violations without tolerance, got %v", v)
	}
	if v := Validate(s, 5); v != nil {
		t.Errorf("expected tolerance to accept, got %v", v)
	}
}

func TestBuildPrompt(t *testing.T) {
	req := Request{
		Content:      testContent(),
		Instructions: []string{"Keep a neutral tone.", "  "},
		Schema:       Schema,
		Feedback:     []article.Violation{{Field: "key_points", Message: "has 2 items, 3 to 5 required"}},
	}
	prompt := BuildPrompt(req, "Chinese")

	for _, want := range []string{
		"at most 100 characters",
		"between 300 and 500 characters",
		"between 3 and 5 items, each between 50 and 100 characters",
		"Do not invent facts",
		"Write every field in Chinese.",
		"- Keep a neutral tone.",
		`"key_points"`,
		"key_points: has 2 items, 3 to 5 required",
		"Title: Foo",
		"Publisher: Tech Weekly",
		"URL: https://example.com/a",
		"The article body goes here.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("expected prompt to contain %q", want)
		}
	}
	if strings.Contains(prompt, "-   \n") {
		t.Error("expected blank instructions to be skipped")
	}
}

func TestBuildPromptWithoutFeedback(t *testing.T) {
	prompt := BuildPrompt(Request{Content: testContent()}, "")
	if strings.Contains(prompt, "previous answer") {
		t.Error("expected no feedback section on first attempt")
	}
	if !strings.Contains(prompt, "same language as the article") {
		t.Error("expected article language when language is empty")
	}
	if !strings.Contains(prompt, `"one_line_summary"`) {
		t.Error("expected default schema in prompt")
	}
}

func TestServiceAcceptsFirstValidCandidate(t *testing.T) {
	stub := &stubCapability{responses: []*Candidate{validCandidate()}}
	svc := New(stub, testConfig())

	s, err := svc.Summarize(context.Background(), testContent(), []string{"be brief"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Title != "Foo" || len(s.KeyPoints) != 4 {
		t.Errorf("unexpected summary %+v", s)
	}
	if len(stub.requests) != 1 {
		t.Errorf("expected 1 call, got %d", len(stub.requests))
	}
	req := stub.requests[0]
	if req.Content.BodyText != "The article body goes here." || req.Schema != Schema {
		t.Errorf("unexpected request %+v", req)
	}
	if len(req.Instructions) != 1 || req.Instructions[0] != "be brief" {
		t.Errorf("expected instructions to be passed through, got %v", req.Instructions)
	}
	if !stub.deadlines[0] {
		t.Error("expected per-attempt deadline")
	}
}

func TestServiceRepromptsWithFeedback(t *testing.T) {
	bad := validCandidate()
	bad.KeyPoints = bad.KeyPoints[:2]
	stub := &stubCapability{responses: []*Candidate{bad, validCandidate()}}

	s, err := New(stub, testConfig()).Summarize(context.Background(), testContent(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.KeyPoints) != 4 {
		t.Errorf("expected second candidate, got %+v", s)
	}
	if len(stub.requests) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(stub.requests))
	}
	if len(stub.requests[0].Feedback) != 0 {
		t.Error("expected no feedback on first attempt")
	}
	fb := stub.requests[1].Feedback
	if len(fb) != 1 || fb[0].Field != "key_points" {
		t.Errorf("expected key_points feedback, got %v", fb)
	}
}

func TestServiceRejectsAfterMaxAttempts(t *testing.T) {
	bad := validCandidate()
	bad.DetailedSummary = text(120)
	stub := &stubCapability{responses: []*Candidate{bad}}

	s, err := New(stub, testConfig()).Summarize(context.Background(), testContent(), nil)
	if s != nil {
		t.Errorf("expected no summary, got %+v", s)
	}
	f, ok := article.AsFailure(err)
	if !ok || f.Kind != article.KindValidation {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if len(f.Violations) != 1 || f.Violations[0].Field != "detailed_summary" {
		t.Errorf("unexpected violations %v", f.Violations)
	}
	if len(stub.requests) != 2 {
		t.Errorf("expected 2 attempts, got %d", len(stub.requests))
	}
}

func TestServiceSingleAttemptPolicy(t *testing.T) {
	bad := validCandidate()
	bad.KeyPoints = nil
	stub := &stubCapability{responses: []*Candidate{bad}}

	cfg := testConfig()
	cfg.MaxAttempts = 0
	_, err := New(stub, cfg).Summarize(context.Background(), testContent(), nil)
	if article.KindOf(err) != article.KindValidation {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if len(stub.requests) != 1 {
		t.Errorf("expected a single attempt, got %d", len(stub.requests))
	}
}

func TestServiceCapabilityError(t *testing.T) {
	stub := &stubCapability{errs: []error{errors.New("connection refused")}, responses: []*Candidate{validCandidate()}}

	_, err := New(stub, testConfig()).Summarize(context.Background(), testContent(), nil)
	if article.KindOf(err) != article.KindSummarizer {
		t.Fatalf("expected summarizer failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected cause in message, got %v", err)
	}
	if len(stub.requests) != 1 {
		t.Errorf("expected no retry after capability error, got %d calls", len(stub.requests))
	}
}

func TestServiceRetriesMalformedOutput(t *testing.T) {
	stub := &stubCapability{
		errs:      []error{ErrMalformedOutput},
		responses: []*Candidate{nil, validCandidate()},
	}

	s, err := New(stub, testConfig()).Summarize(context.Background(), testContent(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s == nil {
		t.Fatal("expected summary")
	}
	fb := stub.requests[1].Feedback
	if len(fb) != 1 || fb[0].Field != "response" {
		t.Errorf("expected response feedback, got %v", fb)
	}
}

func TestServiceRequiresBodyText(t *testing.T) {
	stub := &stubCapability{responses: []*Candidate{validCandidate()}}
	content := testContent()
	content.BodyText = ""

	_, err := New(stub, testConfig()).Summarize(context.Background(), content, nil)
	if article.KindOf(err) != article.KindContentNotFound {
		t.Fatalf("expected content-not-found failure, got %v", err)
	}
	if len(stub.requests) != 0 {
		t.Error("expected no summarizer call without body text")
	}
}

type mockProvider struct {
	response string
	err      error
	prompt   string
}

func (m *mockProvider) Generate(_ context.Context, prompt string, _ int) (string, error) {
	m.prompt = prompt
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return true }

func TestLLMCapabilityDecodesCandidate(t *testing.T) {
	p := &mockProvider{response: "```json\n{\"title\":\"Foo\",\"one_line_summary\":\"short\",\"key_points\":[\"a\",\"b\"]}\n```"}
	cand, err := NewLLMCapability(p, 0, "English").Summarize(context.Background(), Request{Content: testContent()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cand.Title != "Foo" || cand.OneLineSummary != "short" || len(cand.KeyPoints) != 2 {
		t.Errorf("unexpected candidate %+v", cand)
	}
	if !strings.Contains(p.prompt, "The article body goes here.") {
		t.Error("expected body text in prompt")
	}
}

func TestLLMCapabilityMalformedResponse(t *testing.T) {
	p := &mockProvider{response: "I cannot summarize this article."}
	_, err := NewLLMCapability(p, 512, "").Summarize(context.Background(), Request{Content: testContent()})
	if !errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("expected malformed output error, got %v", err)
	}
}

func TestLLMCapabilityProviderError(t *testing.T) {
	p := &mockProvider{err: errors.New("boom")}
	_, err := NewLLMCapability(p, 512, "").Summarize(context.Background(), Request{Content: testContent()})
	if err == nil || errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("expected provider error, got %v", err)
	}

	if _, err := NewLLMCapability(nil, 512, "").Summarize(context.Background(), Request{}); err == nil {
		t.Error("expected error without provider")
	}
}
