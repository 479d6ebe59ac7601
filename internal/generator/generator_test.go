package generator

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"

	"bookpress/internal/book"
	"bookpress/internal/planner"
	"bookpress/internal/render"
	"bookpress/internal/style"
	"bookpress/internal/types"
)

// recorder is a Renderer that remembers jobs and fails or panics on demand.
type recorder struct {
	mu     sync.Mutex
	jobs   []render.Job
	fail   map[string]bool // output file names
	panics map[string]bool
}

func (r *recorder) Render(ctx context.Context, job render.Job) error {
	r.mu.Lock()
	r.jobs = append(r.jobs, job)
	r.mu.Unlock()

	name := filepath.Base(job.OutputPath)
	if r.panics[name] {
		panic("backend exploded")
	}
	if r.fail[name] {
		return errors.New("backend failed")
	}
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

func chapters(sizes ...int) []book.Chapter {
	out := make([]book.Chapter, len(sizes))
	for i, n := range sizes {
		id := strconv.Itoa(i + 1)
		out[i] = book.Chapter{
			ID:     id,
			Title:  "Chapter " + id,
			Blocks: []book.Block{{Type: book.BlockParagraph, Text: strings.Repeat("x", n)}},
		}
	}
	return out
}

func mustFormats(t *testing.T, tokens ...string) []planner.FormatSpec {
	t.Helper()
	formats, err := planner.ParseFormats(tokens)
	if err != nil {
		t.Fatalf("ParseFormats(%v): %v", tokens, err)
	}
	return formats
}

func newGenerator(t *testing.T, r render.Renderer, opts Options) *Generator {
	t.Helper()
	if opts.OutputDir == "" {
		opts.OutputDir = t.TempDir()
	}
	return New(style.NewStore(t.TempDir()), r, opts)
}

func TestPlan_MatchesPartitionPerFormat(t *testing.T) {
	g := newGenerator(t, &recorder{}, Options{})
	req := Request{
		Style:           "classic",
		BaseName:        "My Book",
		Chapters:        chapters(4000, 9000, 2500, 30000, 1200, 6000),
		Formats:         mustFormats(t, "A4", "A5"),
		Split:           true,
		MaxPagesPerPart: 6,
	}

	plan, err := g.Plan(req)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if plan.RunID == "" {
		t.Error("RunID is empty")
	}

	base := style.Default()
	var want []JobKey
	var wantIDs [][]string
	for _, f := range req.Formats {
		adapted, err := planner.Adapt(base, f)
		if err != nil {
			t.Fatal(err)
		}
		est, err := planner.NewEstimator(adapted)
		if err != nil {
			t.Fatal(err)
		}
		parts, err := planner.Partition(req.Chapters, est, req.MaxPagesPerPart)
		if err != nil {
			t.Fatal(err)
		}
		for _, p := range parts.Parts {
			want = append(want, JobKey{Format: f.Name, Part: p.Number})
			wantIDs = append(wantIDs, p.ChapterIDs())
		}
	}

	var got []JobKey
	var gotIDs [][]string
	for _, j := range plan.Jobs {
		got = append(got, j.Key)
		gotIDs = append(gotIDs, j.ChapterIDs)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("job keys = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(gotIDs, wantIDs) {
		t.Errorf("chapter groups = %v, want %v", gotIDs, wantIDs)
	}

	for _, j := range plan.Jobs {
		if j.Style.Page.Size != j.Format.Size {
			t.Errorf("job %s style page size = %q, want %q", j.Key, j.Style.Page.Size, j.Format.Size)
		}
		if j.Key.Part > j.PartCount {
			t.Errorf("job %s part beyond count %d", j.Key, j.PartCount)
		}
	}

	// The 30000-character chapter cannot fit in six pages.
	if len(plan.Warnings) == 0 {
		t.Error("expected oversized chapter warnings")
	}
	for _, w := range plan.Warnings {
		if w.Chapter.ChapterID != "4" {
			t.Errorf("unexpected warning %s", w)
		}
	}
}

func TestPlan_OrderAndNaming(t *testing.T) {
	dir := t.TempDir()
	g := newGenerator(t, &recorder{}, Options{OutputDir: dir})
	plan, err := g.Plan(Request{
		BaseName:        "Guide",
		Chapters:        chapters(20000, 20000, 20000),
		Formats:         mustFormats(t, "LETTER", "Pocket=CUSTOM:4x6in"),
		Split:           true,
		MaxPagesPerPart: 1,
	})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if plan.Style != style.DefaultName {
		t.Errorf("Style = %q, want %q", plan.Style, style.DefaultName)
	}

	var names []string
	for _, j := range plan.Jobs {
		if filepath.Dir(j.OutputPath) != dir {
			t.Errorf("output %q not in %q", j.OutputPath, dir)
		}
		names = append(names, filepath.Base(j.OutputPath))
	}
	want := []string{
		"Guide_Part1_LETTER.pdf", "Guide_Part2_LETTER.pdf", "Guide_Part3_LETTER.pdf",
		"Guide_Part1_Pocket.pdf", "Guide_Part2_Pocket.pdf", "Guide_Part3_Pocket.pdf",
	}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("output names = %v, want %v", names, want)
	}
	if len(plan.Warnings) != 6 {
		t.Errorf("len(Warnings) = %d, want 6", len(plan.Warnings))
	}
}

func TestPlan_SingleFormatNoSplit(t *testing.T) {
	g := newGenerator(t, &recorder{}, Options{})
	plan, err := g.Plan(Request{BaseName: "Solo", Chapters: chapters(50000, 50000)})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(plan.Jobs) != 1 {
		t.Fatalf("len(Jobs) = %d, want 1", len(plan.Jobs))
	}
	job := plan.Jobs[0]
	if got := filepath.Base(job.OutputPath); got != "Solo.pdf" {
		t.Errorf("output = %q, want Solo.pdf", got)
	}
	if job.Key != (JobKey{Format: "A4", Part: 1}) {
		t.Errorf("key = %v", job.Key)
	}
	if len(plan.Warnings) != 0 {
		t.Errorf("unbounded plan has warnings: %v", plan.Warnings)
	}
}

func TestPlan_Deterministic(t *testing.T) {
	g := newGenerator(t, &recorder{}, Options{})
	req := Request{
		BaseName:        "Det",
		Chapters:        chapters(3000, 12000, 700, 8000, 8000, 100, 25000),
		Formats:         mustFormats(t, "A4", "US_TRADE", "CUSTOM:300x400"),
		Split:           true,
		MaxPagesPerPart: 5,
	}
	first, err := g.Plan(req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := g.Plan(req)
	if err != nil {
		t.Fatal(err)
	}
	if first.RunID == second.RunID {
		t.Error("run IDs should differ between runs")
	}
	if len(first.Jobs) != len(second.Jobs) {
		t.Fatalf("job counts differ: %d vs %d", len(first.Jobs), len(second.Jobs))
	}
	for i := range first.Jobs {
		a, b := first.Jobs[i], second.Jobs[i]
		if a.Key != b.Key || a.OutputPath != b.OutputPath || a.EstimatedPages != b.EstimatedPages ||
			!reflect.DeepEqual(a.ChapterIDs, b.ChapterIDs) {
			t.Errorf("job %d differs: %+v vs %+v", i, a, b)
		}
	}
}

func TestPlan_Errors(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		code types.ErrorCode
	}{
		{"zero budget", Request{Chapters: chapters(10), Split: true, MaxPagesPerPart: 0}, types.ErrInvalidBudget},
		{"negative budget", Request{Chapters: chapters(10), Split: true, MaxPagesPerPart: -3}, types.ErrInvalidBudget},
		{"unknown style", Request{Style: "nope", Chapters: chapters(10)}, types.ErrConfigNotFound},
		{"duplicate format", Request{Chapters: chapters(10), Formats: []planner.FormatSpec{planner.DefaultFormat(), planner.DefaultFormat()}}, types.ErrInvalidFormat},
		{"unknown size", Request{Chapters: chapters(10), Formats: []planner.FormatSpec{{Name: "X", Size: "FOOLSCAP"}}}, types.ErrInvalidFormat},
		{"names share a file", Request{Chapters: chapters(10), Formats: []planner.FormatSpec{{Name: "Pocket/1", Size: "A5"}, {Name: "Pocket1", Size: "A4"}}}, types.ErrInvalidFormat},
		{"names differ by case", Request{Chapters: chapters(10), Formats: []planner.FormatSpec{{Name: "pocket", Size: "A5"}, {Name: "POCKET", Size: "A4"}}}, types.ErrInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{}
			g := newGenerator(t, r, Options{})
			summary, err := g.Run(context.Background(), tt.req)
			if !types.IsCode(err, tt.code) {
				t.Fatalf("Run() error = %v, want %s", err, tt.code)
			}
			if summary != nil {
				t.Error("summary returned with a fatal error")
			}
			if r.count() != 0 {
				t.Errorf("renderer called %d times", r.count())
			}
		})
	}
}

func TestPlan_SharedFileNamesBothFormats(t *testing.T) {
	g := newGenerator(t, &recorder{}, Options{})
	_, err := g.Plan(Request{
		BaseName: "book",
		Chapters: chapters(10),
		Formats:  mustFormats(t, "Pocket/1=A5", "Pocket1=A4"),
	})
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrInvalidFormat {
		t.Fatalf("Plan() error = %v, want %s", err, types.ErrInvalidFormat)
	}
	if !strings.Contains(appErr.Details, "Pocket/1") || !strings.Contains(appErr.Details, "Pocket1") || !strings.Contains(appErr.Details, "book_Pocket1.pdf") {
		t.Errorf("Details = %q, want both format names and the file", appErr.Details)
	}
}

func TestPlan_OutputPathsUnique(t *testing.T) {
	g := newGenerator(t, &recorder{}, Options{})
	plan, err := g.Plan(Request{
		BaseName:        "book",
		Chapters:        chapters(4000, 4000, 4000),
		Formats:         mustFormats(t, "A4", "A5", "Pocket=CUSTOM:4x6in"),
		Split:           true,
		MaxPagesPerPart: 2,
	})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	seen := make(map[string]JobKey)
	for _, job := range plan.Jobs {
		if other, ok := seen[job.OutputPath]; ok {
			t.Errorf("%s and %s both write %s", other, job.Key, job.OutputPath)
		}
		seen[job.OutputPath] = job.Key
	}
}

func TestRun_NoChapters(t *testing.T) {
	r := &recorder{}
	g := newGenerator(t, r, Options{})
	summary, err := g.Run(context.Background(), Request{Formats: mustFormats(t, "A4", "A5"), Split: true, MaxPagesPerPart: 10})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(summary.Results) != 0 || r.count() != 0 {
		t.Errorf("results = %d, renders = %d, want none", len(summary.Results), r.count())
	}
}

func TestRun_IsolatesFailures(t *testing.T) {
	r := &recorder{
		fail:   map[string]bool{"Iso_A5.pdf": true},
		panics: map[string]bool{"Iso_LETTER.pdf": true},
	}
	var progress []int
	var mu sync.Mutex
	g := newGenerator(t, r, Options{
		Concurrency: 3,
		Progress: func(done, total int, _ JobResult) {
			mu.Lock()
			progress = append(progress, done)
			mu.Unlock()
			if total != 5 {
				t.Errorf("progress total = %d, want 5", total)
			}
		},
	})

	summary, err := g.Run(context.Background(), Request{
		BaseName: "Iso",
		Chapters: chapters(100, 200),
		Formats:  mustFormats(t, "A4", "A5", "LETTER", "LEGAL", "B5"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if r.count() != 5 {
		t.Errorf("renders = %d, want 5", r.count())
	}
	if got := summary.Failed(); got != 2 {
		t.Errorf("Failed() = %d, want 2", got)
	}

	var order []string
	for _, res := range summary.Results {
		order = append(order, res.Key.Format)
	}
	if want := []string{"A4", "A5", "LETTER", "LEGAL", "B5"}; !reflect.DeepEqual(order, want) {
		t.Errorf("result order = %v, want %v", order, want)
	}

	outcomes := summary.Outcomes()
	for _, f := range []string{"A4", "LEGAL", "B5"} {
		if got := outcomes[JobKey{Format: f, Part: 1}]; got != "ok" {
			t.Errorf("outcome %s = %q, want ok", f, got)
		}
	}
	for _, f := range []string{"A5", "LETTER"} {
		res := summary.Results[indexOf(order, f)]
		if !types.IsCode(res.Err, types.ErrRenderJob) {
			t.Errorf("%s error = %v, want %s", f, res.Err, types.ErrRenderJob)
		}
		if res.Error == "" || outcomes[res.Key] != res.Error {
			t.Errorf("%s outcome = %q, error text = %q", f, outcomes[res.Key], res.Error)
		}
	}
	if !strings.Contains(outcomes[JobKey{Format: "LETTER", Part: 1}], "panicked") {
		t.Errorf("panic outcome = %q", outcomes[JobKey{Format: "LETTER", Part: 1}])
	}
	if len(progress) != 5 {
		t.Errorf("progress calls = %d, want 5", len(progress))
	}
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func TestRun_Cancelled(t *testing.T) {
	r := &recorder{}
	g := newGenerator(t, r, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := g.Run(ctx, Request{Chapters: chapters(100), Formats: mustFormats(t, "A4", "A5")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Failed() != 2 {
		t.Errorf("Failed() = %d, want 2", summary.Failed())
	}
	for _, res := range summary.Results {
		if !errors.Is(res.Err, context.Canceled) {
			t.Errorf("%s error = %v, want context.Canceled", res.Key, res.Err)
		}
	}
	if r.count() != 0 {
		t.Errorf("renderer called %d times", r.count())
	}
}

func TestRun_VerifiesRenderedPDFs(t *testing.T) {
	dir := t.TempDir()
	g := newGenerator(t, render.NewFPDF(""), Options{OutputDir: dir, Verify: true, Concurrency: 2})
	summary, err := g.Run(context.Background(), Request{
		BaseName:        "Verified",
		Meta:            book.Meta{Title: "Verified", Author: "Tester"},
		Chapters:        chapters(3000, 3000, 3000),
		Formats:         mustFormats(t, "A5"),
		Split:           true,
		MaxPagesPerPart: 3,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Failed() != 0 {
		t.Fatalf("failures: %v", summary.Outcomes())
	}
	for _, res := range summary.Results {
		if res.ActualPages == 0 {
			t.Errorf("%s has no verified page count", res.Key)
		}
	}

	// A renderer that writes nothing fails verification.
	empty := newGenerator(t, render.RendererFunc(func(context.Context, render.Job) error { return nil }),
		Options{OutputDir: dir, Verify: true})
	summary, err = empty.Run(context.Background(), Request{BaseName: "Ghost", Chapters: chapters(10)})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed() != 1 || !types.IsCode(summary.Results[0].Err, types.ErrFileNotFound) {
		t.Errorf("ghost result = %v", summary.Results[0].Err)
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		base        string
		part        int
		multiPart   bool
		format      string
		multiFormat bool
		want        string
	}{
		{"My Book", 1, false, "A4", false, "My Book.pdf"},
		{"My Book", 2, true, "A4", false, "My Book_Part2.pdf"},
		{"My Book", 1, false, "A5", true, "My Book_A5.pdf"},
		{"My Book", 3, true, "US_TRADE", true, "My Book_Part3_US_TRADE.pdf"},
		{"Café: Crème/Brûlée?", 1, false, "", false, "Cafe CremeBrulee.pdf"},
		{"  ***  ", 1, false, "", false, "book.pdf"},
		{"", 1, true, "CUSTOM_6x9in", true, "book_Part1_CUSTOM_6x9in.pdf"},
		{"notes_v2-final", 1, false, "", false, "notes_v2-final.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := OutputName(tt.base, tt.part, tt.multiPart, tt.format, tt.multiFormat)
			if got != tt.want {
				t.Errorf("OutputName(%q, %d, %v, %q, %v) = %q, want %q",
					tt.base, tt.part, tt.multiPart, tt.format, tt.multiFormat, got, tt.want)
			}
		})
	}
}
