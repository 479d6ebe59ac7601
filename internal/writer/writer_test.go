package writer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"bookpress/internal/book"
	"bookpress/internal/types"
)

// fakeProvider answers with a fixed reply. A prompt containing a key of
// failures fails that many times first; -1 fails forever.
type fakeProvider struct {
	mu       sync.Mutex
	calls    int
	failures map[string]int
	reply    string
}

func (p *fakeProvider) Name() string  { return "fake" }
func (p *fakeProvider) Model() string { return "fake-1" }

func (p *fakeProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++

	if err := ctx.Err(); err != nil {
		return "", err
	}
	for key, n := range p.failures {
		if strings.Contains(prompt, key) && n != 0 {
			if n > 0 {
				p.failures[key] = n - 1
			}
			return "", errors.New("upstream unavailable")
		}
	}
	if p.reply != "" {
		return p.reply, nil
	}
	return "  Rewritten passage.  ", nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func testSections() []book.Section {
	return []book.Section{
		{ChapterID: "1", ChapterName: "Chapter: Origins", SectionNumber: "1", SectionName: "Section:  The   Start", Text: "notes about the start"},
		{ChapterID: "1", ChapterName: "Chapter: Origins", SectionNumber: "2", SectionName: "Empty", Text: "   "},
		{ChapterID: "2", ChapterName: "Growth", SectionNumber: "1", SectionName: "Scaling", Text: "notes about scaling"},
	}
}

func fastOptions(path string) Options {
	return Options{MaxAttempts: 2, InitialDelay: time.Millisecond, CheckpointPath: path}
}

func TestRewrite_WritesAndCheckpoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "articles.json")
	p := &fakeProvider{}

	articles, stats, err := New(p, fastOptions(path)).Rewrite(context.Background(), testSections())
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if stats.Written != 2 || stats.Skipped != 1 || stats.Failed != 0 || stats.Resumed != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if p.callCount() != 2 {
		t.Errorf("provider calls = %d, want 2", p.callCount())
	}
	if len(articles) != 2 {
		t.Fatalf("len(articles) = %d, want 2", len(articles))
	}

	first := articles[0]
	if first.ChapterName != "Origins" || first.SectionName != "The Start" {
		t.Errorf("names not cleaned: %q / %q", first.ChapterName, first.SectionName)
	}
	if first.Text != "Rewritten passage." {
		t.Errorf("Text = %q", first.Text)
	}
	if first.SourceHash != SourceHash(testSections()[0]) {
		t.Error("SourceHash does not match the input section")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("checkpoint not written: %v", err)
	}
	sections, err := book.DecodeSections(data)
	if err != nil {
		t.Fatalf("checkpoint is not a valid sections file: %v", err)
	}
	if len(sections) != 2 || sections[1].ChapterID != "2" || sections[1].SectionName != "Scaling" {
		t.Errorf("decoded sections = %+v", sections)
	}
	if !strings.Contains(string(data), `"provider": "fake"`) {
		t.Error("checkpoint metadata missing provider")
	}
}

func TestRewrite_ResumesFromCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.json")

	if _, _, err := New(&fakeProvider{}, fastOptions(path)).Rewrite(context.Background(), testSections()); err != nil {
		t.Fatalf("first Rewrite() error = %v", err)
	}

	p := &fakeProvider{}
	articles, stats, err := New(p, fastOptions(path)).Rewrite(context.Background(), testSections())
	if err != nil {
		t.Fatalf("second Rewrite() error = %v", err)
	}
	if p.callCount() != 0 {
		t.Errorf("provider called %d times on resume", p.callCount())
	}
	if stats.Resumed != 2 || stats.Written != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if len(articles) != 2 {
		t.Errorf("len(articles) = %d", len(articles))
	}

	// Changed text is sent again.
	changed := testSections()
	changed[2].Text = "revised notes about scaling"
	p = &fakeProvider{}
	_, stats, err = New(p, fastOptions(path)).Rewrite(context.Background(), changed)
	if err != nil {
		t.Fatal(err)
	}
	if p.callCount() != 1 || stats.Resumed != 1 || stats.Written != 1 {
		t.Errorf("calls = %d, stats = %+v", p.callCount(), stats)
	}
}

func TestRewrite_RetriesAndSkipsFailures(t *testing.T) {
	p := &fakeProvider{failures: map[string]int{
		"about the start": 1,  // recovers on retry
		"about scaling":   -1, // never recovers
	}}

	articles, stats, err := New(p, fastOptions("")).Rewrite(context.Background(), testSections())
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if stats.Written != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(articles) != 1 || articles[0].ChapterID != "1" {
		t.Errorf("articles = %+v", articles)
	}
	// one retry for the first section, every attempt for the second
	if p.callCount() < 4 {
		t.Errorf("provider calls = %d, want at least 4", p.callCount())
	}
}

func TestRewrite_AllFailed(t *testing.T) {
	p := &fakeProvider{failures: map[string]int{"notes": -1}}

	_, stats, err := New(p, fastOptions("")).Rewrite(context.Background(), testSections())
	if !types.IsCode(err, types.ErrAPICall) {
		t.Errorf("Rewrite() error = %v, want %s", err, types.ErrAPICall)
	}
	if stats.Failed != 2 {
		t.Errorf("Failed = %d, want 2", stats.Failed)
	}
}

func TestRewrite_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := New(&fakeProvider{}, fastOptions("")).Rewrite(ctx, testSections())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Rewrite() error = %v, want context.Canceled", err)
	}
}

func TestRewrite_BadCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.json")
	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}
	_, _, err := New(&fakeProvider{}, fastOptions(path)).Rewrite(context.Background(), testSections())
	if !types.IsCode(err, types.ErrConfigParse) {
		t.Errorf("Rewrite() error = %v, want %s", err, types.ErrConfigParse)
	}
}

func TestCheckpoint_AddReplaces(t *testing.T) {
	c := NewCheckpoint("")
	c.Add(Article{SourceHash: "h1", Section: book.Section{Text: "one"}})
	c.Add(Article{SourceHash: "h1", Section: book.Section{Text: "two"}})
	c.Add(Article{Section: book.Section{Text: "unhashed"}})

	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
	a, ok := c.Get("h1")
	if !ok || a.Text != "two" {
		t.Errorf("Get(h1) = %+v, %v", a, ok)
	}
	if err := c.Save(); err != nil {
		t.Errorf("in-memory Save() error = %v", err)
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Chapter: Introduction", "Introduction"},
		{"SECTION:   Setup  Steps", "Setup Steps"},
		{"chapter 3", "3"},
		{"  Plain   Title ", "Plain Title"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanName(tt.input); got != tt.expected {
			t.Errorf("CleanName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("Chapter: Origins", "Section: Start", "line one\n\n  line two")

	for _, want := range []string{
		"Chapter: Origins\n",
		"Section: Start\n",
		"Input Text:\nline one line two\n",
		"<writing_guidelines>",
		"<output_format>",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "Chapter: Chapter:") {
		t.Error("chapter label not cleaned")
	}
}

func TestCopyright(t *testing.T) {
	info := CopyrightInfo{Title: "Field Notes", Author: "R. Vale", Year: 2024, ISBN: "978-0-00-000000-0"}

	t.Run("no provider", func(t *testing.T) {
		text := Copyright(context.Background(), nil, info)
		for _, want := range []string{"**Field Notes**", "First Edition", "© 2024 R. Vale. All rights reserved.", "Self-Published", "ISBN: 978-0-00-000000-0"} {
			if !strings.Contains(text, want) {
				t.Errorf("fallback missing %q:\n%s", want, text)
			}
		}
	})

	t.Run("provider fails", func(t *testing.T) {
		p := &fakeProvider{failures: map[string]int{"Field Notes": -1}}
		text := Copyright(context.Background(), p, info)
		if !strings.Contains(text, "All rights reserved.") {
			t.Errorf("expected fallback text, got %q", text)
		}
	})

	t.Run("provider succeeds", func(t *testing.T) {
		p := &fakeProvider{reply: "\n© 2024 R. Vale\n"}
		if got := Copyright(context.Background(), p, info); got != "© 2024 R. Vale" {
			t.Errorf("Copyright() = %q", got)
		}
	})
}

func TestCopyrightInfo_Defaults(t *testing.T) {
	got := CopyrightInfo{Author: "Ann"}.withDefaults()
	if got.Holder != "Ann" || got.Title != "The Book" || got.Year != time.Now().Year() {
		t.Errorf("withDefaults() = %+v", got)
	}
}

func TestNewProvider_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  ProviderConfig
	}{
		{"missing key", ProviderConfig{Name: "openai", Model: "gpt-4o"}},
		{"missing model", ProviderConfig{Name: "anthropic", APIKey: "k"}},
		{"unknown provider", ProviderConfig{Name: "mystery", APIKey: "k", Model: "m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(context.Background(), tt.cfg)
			if !types.IsCode(err, types.ErrConfig) {
				t.Errorf("NewProvider() error = %v, want %s", err, types.ErrConfig)
			}
			if p != nil {
				t.Errorf("NewProvider() returned provider %v", p)
			}
		})
	}
}

func TestNewProvider_Selects(t *testing.T) {
	p, err := NewProvider(context.Background(), ProviderConfig{Name: "Claude", APIKey: "k", Model: "claude-3-5-sonnet-latest"})
	if err != nil {
		t.Fatalf("NewProvider(claude) error = %v", err)
	}
	if p.Name() != "anthropic" || p.Model() != "claude-3-5-sonnet-latest" {
		t.Errorf("got %s/%s", p.Name(), p.Model())
	}
}
