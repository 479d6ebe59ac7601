package planner

import (
	"math/rand"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"testing/quick"

	"bookpress/internal/book"
	"bookpress/internal/style"
	"bookpress/internal/types"
)

func quickConfig() *quick.Config {
	return &quick.Config{
		MaxCount: 200,
		Rand:     rand.New(rand.NewSource(42)),
	}
}

// fixedCounter returns preset page counts keyed by chapter ID.
type fixedCounter map[string]int

func (f fixedCounter) EstimatePages(ch book.Chapter) int {
	return f[ch.ID]
}

func chaptersWithPages(pages []int) ([]book.Chapter, fixedCounter) {
	chapters := make([]book.Chapter, len(pages))
	counter := fixedCounter{}
	for i, p := range pages {
		id := strconv.Itoa(i + 1)
		chapters[i] = book.Chapter{ID: id, Title: "Chapter " + id}
		counter[id] = p
	}
	return chapters, counter
}

// boxStyle is a 100x100pt text area holding 20 chars x 10 lines.
func boxStyle() *style.Config {
	return &style.Config{
		Name: "box",
		Page: style.Page{
			Size:    style.Custom,
			Width:   172,
			Height:  172,
			Margins: style.Margins{Left: 36, Right: 36, Top: 36, Bottom: 36},
		},
		Paragraph: style.TextStyle{Size: 10, Leading: 10},
	}
}

func paragraphChapter(id, text string) book.Chapter {
	return book.Chapter{ID: id, Blocks: []book.Block{{Type: book.BlockParagraph, Text: text}}}
}

func TestPartition_ConcreteScenario(t *testing.T) {
	chapters, counter := chaptersWithPages([]int{3, 4, 2, 10, 1})

	result, err := Partition(chapters, counter, 8)
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}

	want := [][]string{{"1", "2"}, {"3"}, {"4"}, {"5"}}
	var got [][]string
	for _, p := range result.Parts {
		got = append(got, p.ChapterIDs())
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Expected parts %v, got %v", want, got)
	}

	wantPages := []int{7, 2, 10, 1}
	for i, p := range result.Parts {
		if p.Number != i+1 {
			t.Errorf("Expected part number %d, got %d", i+1, p.Number)
		}
		if p.Pages != wantPages[i] {
			t.Errorf("Part %d: expected %d pages, got %d", p.Number, wantPages[i], p.Pages)
		}
	}

	if len(result.Warnings) != 1 {
		t.Fatalf("Expected 1 oversized warning, got %d", len(result.Warnings))
	}
	w := result.Warnings[0]
	if w.ChapterID != "4" || w.Pages != 10 || w.Budget != 8 {
		t.Errorf("Unexpected warning: %+v", w)
	}
	if !strings.Contains(w.String(), "over the budget of 8") {
		t.Errorf("Unexpected warning text: %s", w.String())
	}
}

func TestPartition_InvalidBudget(t *testing.T) {
	chapters, counter := chaptersWithPages([]int{1, 2})
	for _, budget := range []int{0, -1, -100} {
		t.Run(strconv.Itoa(budget), func(t *testing.T) {
			result, err := Partition(chapters, counter, budget)
			if !types.IsCode(err, types.ErrInvalidBudget) {
				t.Errorf("Expected ErrInvalidBudget, got %v", err)
			}
			if result != nil {
				t.Error("Expected no partitioning on error")
			}
		})
	}
}

func TestPartition_EmptyInput(t *testing.T) {
	result, err := Partition(nil, fixedCounter{}, 8)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(result.Parts) != 0 || len(result.Warnings) != 0 {
		t.Errorf("Expected no parts and no warnings, got %+v", result)
	}
}

func TestPartition_Unbounded(t *testing.T) {
	chapters, counter := chaptersWithPages([]int{500, 900, 1200})
	result, err := Partition(chapters, counter, Unbounded)
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}
	if len(result.Parts) != 1 || result.Parts[0].Pages != 2600 {
		t.Errorf("Expected a single part of 2600 pages, got %+v", result.Parts)
	}
}

func TestPartition_ExactFit(t *testing.T) {
	chapters, counter := chaptersWithPages([]int{4, 4, 8})
	result, err := Partition(chapters, counter, 8)
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}
	if len(result.Parts) != 2 || len(result.Warnings) != 0 {
		t.Errorf("Expected 2 parts without warnings, got %d parts, %d warnings", len(result.Parts), len(result.Warnings))
	}
}

func TestPartition_Properties(t *testing.T) {
	f := func(raw []uint8, rawBudget uint8) bool {
		budget := int(rawBudget)%20 + 1
		pages := make([]int, len(raw))
		for i, r := range raw {
			pages[i] = int(r)%25 + 1
		}
		chapters, counter := chaptersWithPages(pages)

		result, err := Partition(chapters, counter, budget)
		if err != nil {
			return false
		}

		// Order preservation: flattening reproduces the input.
		var flat []string
		for i, p := range result.Parts {
			if p.Number != i+1 || len(p.Chapters) == 0 {
				return false
			}
			flat = append(flat, p.ChapterIDs()...)
		}
		var want []string
		for _, ch := range chapters {
			want = append(want, ch.ID)
		}
		if !reflect.DeepEqual(flat, want) {
			return false
		}

		warned := map[string]bool{}
		for _, w := range result.Warnings {
			warned[w.ChapterID] = true
		}
		for _, p := range result.Parts {
			oversized := false
			for _, ch := range p.Chapters {
				if counter[ch.ID] > budget {
					oversized = true
					// Oversized chapters are alone and reported.
					if len(p.Chapters) != 1 || !warned[ch.ID] {
						return false
					}
				}
			}
			// Budget respected everywhere else.
			if !oversized && p.Pages > budget {
				return false
			}
		}
		return true
	}
	if err := quick.Check(f, quickConfig()); err != nil {
		t.Error(err)
	}
}

func TestPartition_Deterministic(t *testing.T) {
	chapters, counter := chaptersWithPages([]int{5, 1, 7, 3, 3, 9, 2})
	first, err := Partition(chapters, counter, 8)
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}
	second, _ := Partition(chapters, counter, 8)
	if !reflect.DeepEqual(first, second) {
		t.Error("Expected identical partitions for identical input")
	}
}

func TestEstimator_Capacity(t *testing.T) {
	est, err := NewEstimator(boxStyle())
	if err != nil {
		t.Fatalf("NewEstimator failed: %v", err)
	}
	if est.CharsPerPage() != 200 {
		t.Fatalf("Expected 200 chars per page, got %d", est.CharsPerPage())
	}

	testCases := []struct {
		name string
		ch   book.Chapter
		want int
	}{
		{"empty chapter still takes a page", book.Chapter{ID: "e"}, 1},
		{"exactly one page", paragraphChapter("a", strings.Repeat("x", 200)), 1},
		{"one char over", paragraphChapter("b", strings.Repeat("x", 201)), 2},
		{"multibyte runes count once", paragraphChapter("c", strings.Repeat("é", 200)), 1},
		{"one image", book.Chapter{ID: "i1", Blocks: []book.Block{{Type: book.BlockImage}}}, 1},
		{"three images", book.Chapter{ID: "i3", Blocks: []book.Block{
			{Type: book.BlockImage}, {Type: book.BlockImage}, {Type: book.BlockImage},
		}}, 2},
		{"text and image", book.Chapter{ID: "ti", Blocks: []book.Block{
			{Type: book.BlockParagraph, Text: strings.Repeat("x", 150)},
			{Type: book.BlockImage, Alt: strings.Repeat("y", 50)},
		}}, 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := est.EstimatePages(tc.ch); got != tc.want {
				t.Errorf("Expected %d pages, got %d", tc.want, got)
			}
		})
	}
}

func TestEstimator_PageBreakAddsPage(t *testing.T) {
	cfg := boxStyle()
	cfg.ChapterHeading.PageBreak.Before = true
	est, err := NewEstimator(cfg)
	if err != nil {
		t.Fatalf("NewEstimator failed: %v", err)
	}
	if got := est.EstimatePages(paragraphChapter("a", "short")); got != 2 {
		t.Errorf("Expected 2 pages with a forced break, got %d", got)
	}
}

func TestEstimator_Fallbacks(t *testing.T) {
	cfg := boxStyle()
	cfg.Paragraph = style.TextStyle{}
	est, err := NewEstimator(cfg)
	if err != nil {
		t.Fatalf("NewEstimator failed: %v", err)
	}
	// 100 / (11*0.5) = 18 chars per line, 100 / 13.2 = 7 lines.
	if est.CharsPerPage() != 126 {
		t.Errorf("Expected 126 chars per page, got %d", est.CharsPerPage())
	}
}

func TestEstimator_PathologicalStyle(t *testing.T) {
	cfg := boxStyle()
	cfg.Page.Margins = style.Margins{Left: 500, Right: 500, Top: 500, Bottom: 500}
	cfg.Paragraph = style.TextStyle{Size: 400, Leading: 400}
	est, err := NewEstimator(cfg)
	if err != nil {
		t.Fatalf("NewEstimator failed: %v", err)
	}
	if est.CharsPerPage() != 1 {
		t.Errorf("Expected capacity floored at 1, got %d", est.CharsPerPage())
	}
	if got := est.EstimatePages(paragraphChapter("a", "abc")); got != 3 {
		t.Errorf("Expected 3 pages, got %d", got)
	}
}

func TestEstimator_InvalidPage(t *testing.T) {
	cfg := boxStyle()
	cfg.Page.Width = 0
	if _, err := NewEstimator(cfg); !types.IsCode(err, types.ErrConfigParse) {
		t.Errorf("Expected ErrConfigParse, got %v", err)
	}
}

func TestEstimator_Monotonic(t *testing.T) {
	est, err := NewEstimator(style.Default())
	if err != nil {
		t.Fatalf("NewEstimator failed: %v", err)
	}

	f := func(base, extra string, images uint8) bool {
		if extra == "" {
			extra = "x"
		}
		blocks := []book.Block{{Type: book.BlockParagraph, Text: base}}
		for i := 0; i < int(images)%4; i++ {
			blocks = append(blocks, book.Block{Type: book.BlockImage})
		}
		before := book.Chapter{ID: "m", Title: "T", Blocks: blocks}

		grown := append(append([]book.Block(nil), blocks...), book.Block{Type: book.BlockParagraph, Text: extra})
		after := book.Chapter{ID: "m", Title: "T", Blocks: grown}

		a, b := est.EstimatePages(before), est.EstimatePages(after)
		return a >= 1 && b >= a
	}
	if err := quick.Check(f, quickConfig()); err != nil {
		t.Error(err)
	}

	long := paragraphChapter("big", strings.Repeat("word ", 20000))
	bigger := paragraphChapter("big", strings.Repeat("word ", 40000))
	if est.EstimatePages(bigger) <= est.EstimatePages(long) {
		t.Error("Expected doubling the text to add pages")
	}
}

func TestEstimator_MemoKeyedByContent(t *testing.T) {
	est, err := NewEstimator(boxStyle())
	if err != nil {
		t.Fatalf("NewEstimator failed: %v", err)
	}
	short := paragraphChapter("same-id", "x")
	long := paragraphChapter("same-id", strings.Repeat("x", 1000))

	if est.EstimatePages(short) != 1 {
		t.Fatal("Expected short chapter to be one page")
	}
	if got := est.EstimatePages(long); got != 5 {
		t.Errorf("Expected a stale cache entry not to be reused, got %d pages", got)
	}
	if est.EstimatePages(short) != 1 {
		t.Error("Expected cached estimate to be stable")
	}
}

func TestParseFormat(t *testing.T) {
	testCases := []struct {
		token string
		want  FormatSpec
	}{
		{"A4", FormatSpec{Name: "A4", Size: "A4"}},
		{"us_trade", FormatSpec{Name: "US_TRADE", Size: "US_TRADE"}},
		{"us-trade", FormatSpec{Name: "US_TRADE", Size: "US_TRADE"}},
		{" Letter ", FormatSpec{Name: "LETTER", Size: "LETTER"}},
		{"CUSTOM:6x9in", FormatSpec{Name: "CUSTOM_6x9in", Size: "CUSTOM", Width: 6, Height: 9, Unit: UnitInch}},
		{"custom:432x648", FormatSpec{Name: "CUSTOM_432x648pt", Size: "CUSTOM", Width: 432, Height: 648, Unit: UnitPoint}},
		{"CUSTOM:148x210mm", FormatSpec{Name: "CUSTOM_148x210mm", Size: "CUSTOM", Width: 148, Height: 210, Unit: UnitMM}},
		{"Pocket=CUSTOM:4.25x6.87in", FormatSpec{Name: "Pocket", Size: "CUSTOM", Width: 4.25, Height: 6.87, Unit: UnitInch}},
		{"Big=A4", FormatSpec{Name: "Big", Size: "A4"}},
	}
	for _, tc := range testCases {
		t.Run(tc.token, func(t *testing.T) {
			got, err := ParseFormat(tc.token)
			if err != nil {
				t.Fatalf("ParseFormat failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("Expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestParseFormat_Invalid(t *testing.T) {
	for _, token := range []string{"", "A10", "CUSTOM", "CUSTOM:6by9", "CUSTOM:0x9in", "CUSTOM:axb", "A4:6x9", "=A4", "CUSTOM:6x9ft", "!!=A5", "-_ =CUSTOM:6x9in"} {
		t.Run(token, func(t *testing.T) {
			if _, err := ParseFormat(token); !types.IsCode(err, types.ErrInvalidFormat) {
				t.Errorf("Expected ErrInvalidFormat for %q, got %v", token, err)
			}
		})
	}
}

func TestParseFormats(t *testing.T) {
	specs, err := ParseFormats(nil)
	if err != nil {
		t.Fatalf("ParseFormats failed: %v", err)
	}
	if !reflect.DeepEqual(specs, []FormatSpec{DefaultFormat()}) {
		t.Errorf("Expected the default format, got %+v", specs)
	}

	specs, err = ParseFormats([]string{"A4,LETTER", "CUSTOM:6x9in"})
	if err != nil {
		t.Fatalf("ParseFormats failed: %v", err)
	}
	var names []string
	for _, s := range specs {
		names = append(names, s.Name)
	}
	if want := []string{"A4", "LETTER", "CUSTOM_6x9in"}; !reflect.DeepEqual(names, want) {
		t.Errorf("Expected %v in caller order, got %v", want, names)
	}
}

func TestFormatSpec_StringRoundTrip(t *testing.T) {
	for _, token := range []string{"A4", "Pocket=CUSTOM:4.25x6.87in", "CUSTOM_432x648pt=CUSTOM:432x648pt"} {
		spec, err := ParseFormat(token)
		if err != nil {
			t.Fatalf("ParseFormat(%q) failed: %v", token, err)
		}
		again, err := ParseFormat(spec.String())
		if err != nil {
			t.Fatalf("ParseFormat(%q) failed: %v", spec.String(), err)
		}
		if again != spec {
			t.Errorf("Round trip changed %+v into %+v", spec, again)
		}
	}
}

func TestAdapt_SameFormatNoDrift(t *testing.T) {
	for _, base := range []*style.Config{style.Default(), boxStyle()} {
		t.Run(base.Name, func(t *testing.T) {
			spec := FormatSpec{Name: base.Page.Size, Size: base.Page.Size}
			if spec.IsCustom() {
				spec.Width, spec.Height, spec.Unit = base.Page.Width, base.Page.Height, UnitPoint
			}
			adapted, err := Adapt(base, spec)
			if err != nil {
				t.Fatalf("Adapt failed: %v", err)
			}
			if !reflect.DeepEqual(adapted, base) {
				t.Errorf("Expected adapting to the base format to change nothing")
			}
			if adapted == base {
				t.Error("Expected a distinct copy")
			}
		})
	}
}

func TestAdapt_HalfSizeScalesEverything(t *testing.T) {
	base := style.Default()
	snapshot := base.Clone()
	dims, _ := base.PageDimensions()

	spec := FormatSpec{Name: "Half", Size: style.Custom, Width: dims.Width * 0.5, Height: dims.Height * 0.5, Unit: UnitPoint}
	adapted, err := Adapt(base, spec)
	if err != nil {
		t.Fatalf("Adapt failed: %v", err)
	}

	if !reflect.DeepEqual(base, snapshot) {
		t.Fatal("Expected the base style to be left untouched")
	}

	want := base.Clone()
	want.ScaleMargins(0.5, 0.5)
	want.ScaleTypography(0.5)
	want.Page.Size = style.Custom
	want.Page.Width, want.Page.Height = spec.Width, spec.Height
	if !reflect.DeepEqual(adapted, want) {
		t.Errorf("Expected every typography value halved")
	}

	checks := []struct {
		name      string
		got, base float64
	}{
		{"paragraph size", adapted.Paragraph.Size, base.Paragraph.Size},
		{"paragraph leading", adapted.Paragraph.Leading, base.Paragraph.Leading},
		{"chapter title size", adapted.ChapterHeading.Title.Size, base.ChapterHeading.Title.Size},
		{"toc level 1 size", adapted.TableOfContents.Level(0).Size, base.TableOfContents.Level(0).Size},
		{"left margin", adapted.Page.Margins.Left, base.Page.Margins.Left},
		{"top margin", adapted.Page.Margins.Top, base.Page.Margins.Top},
	}
	for _, c := range checks {
		if c.base > 0 && c.got != c.base*0.5 {
			t.Errorf("%s: expected %v, got %v", c.name, c.base*0.5, c.got)
		}
	}
	if !reflect.DeepEqual(adapted.Fonts, base.Fonts) {
		t.Error("Expected fonts to be untouched")
	}
}

func TestAdapt_SmallShrinkKeepsTypography(t *testing.T) {
	base := style.Default()
	// A4 to LETTER: width grows, height shrinks by about 6%.
	adapted, err := Adapt(base, FormatSpec{Name: "LETTER", Size: "LETTER"})
	if err != nil {
		t.Fatalf("Adapt failed: %v", err)
	}
	if adapted.Paragraph.Size != base.Paragraph.Size {
		t.Errorf("Expected paragraph size unchanged, got %v", adapted.Paragraph.Size)
	}
	if adapted.Page.Margins.Left <= base.Page.Margins.Left {
		t.Error("Expected horizontal margins to grow with the width")
	}
	if adapted.Page.Margins.Top >= base.Page.Margins.Top {
		t.Error("Expected vertical margins to shrink with the height")
	}
	if adapted.Page.Size != "LETTER" || adapted.Page.Width != 0 {
		t.Errorf("Expected page to carry the target size, got %+v", adapted.Page)
	}
}

func TestAdapt_EnlargeNeverScalesTypographyUp(t *testing.T) {
	base := style.Default()
	base.Page.Size = "A5"
	adapted, err := Adapt(base, FormatSpec{Name: "A4", Size: "A4"})
	if err != nil {
		t.Fatalf("Adapt failed: %v", err)
	}
	if adapted.Paragraph.Size != base.Paragraph.Size {
		t.Errorf("Expected paragraph size unchanged when enlarging, got %v", adapted.Paragraph.Size)
	}
}

func TestAdapt_PositiveStaysPositive(t *testing.T) {
	base := style.Default()
	f := func(rw, rh uint16) bool {
		spec := FormatSpec{Size: style.Custom, Width: float64(rw%2000) + 1, Height: float64(rh%2000) + 1, Unit: UnitPoint}
		adapted, err := Adapt(base, spec)
		if err != nil {
			return false
		}
		return adapted.Paragraph.Size > 0 && adapted.Paragraph.Leading > 0 &&
			adapted.ChapterHeading.Title.Size > 0 && adapted.Page.Margins.Left > 0
	}
	if err := quick.Check(f, quickConfig()); err != nil {
		t.Error(err)
	}
}

func TestAdapt_InvalidFormat(t *testing.T) {
	_, err := Adapt(style.Default(), FormatSpec{Size: style.Custom, Width: -1, Height: 5})
	if !types.IsCode(err, types.ErrInvalidFormat) {
		t.Errorf("Expected ErrInvalidFormat, got %v", err)
	}
}
