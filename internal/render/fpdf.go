package render

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"

	"bookpress/internal/book"
	"bookpress/internal/logger"
	"bookpress/internal/style"
	"bookpress/internal/types"
)

const (
	defaultTitleTop     = 0.3
	defaultTitleBetween = 0.2
	defaultFolioSize    = 9.0
	tocNumberWidth      = 36.0
)

// FPDF lays books out with go-pdf/fpdf. Every document is laid out twice:
// the first pass records where chapters and sections land so the contents
// page and "{total}" folios of the second pass are exact.
type FPDF struct {
	fontsDir string
}

// NewFPDF returns a renderer that loads custom TrueType families from fontsDir.
func NewFPDF(fontsDir string) *FPDF {
	return &FPDF{fontsDir: fontsDir}
}

// Render implements Renderer.
func (r *FPDF) Render(ctx context.Context, job Job) error {
	if job.Style == nil {
		return types.NewAppError(types.ErrInvalidInput, "render job has no style", nil)
	}
	if job.OutputPath == "" {
		return types.NewAppError(types.ErrInvalidInput, "render job has no output path", nil)
	}
	dims, err := job.Style.PageDimensions()
	if err != nil {
		return types.NewAppError(types.ErrConfigParse, "cannot resolve page size", err)
	}

	toc := buildTOC(job)

	draft, err := r.layout(ctx, job, dims, toc, 0)
	if err != nil {
		return err
	}
	final, err := r.layout(ctx, job, dims, draft.toc, draft.pdf.PageCount())
	if err != nil {
		return err
	}

	if dir := filepath.Dir(job.OutputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return types.NewAppError(types.ErrRenderJob, "failed to create output directory", err)
		}
	}
	if err := final.pdf.OutputFileAndClose(job.OutputPath); err != nil {
		return types.NewAppErrorWithDetails(types.ErrRenderJob, "failed to write PDF", job.OutputPath, err)
	}

	logger.Info("PDF written",
		logger.String("path", job.OutputPath),
		logger.Int("pages", final.pdf.PageCount()),
		logger.Int("chapters", len(job.Chapters)))
	return nil
}

type tocEntry struct {
	Title string
	Level int
	Page  int
}

// buildTOC lists chapters and, when the style has a second contents level,
// their level-2 headings, in reading order.
func buildTOC(job Job) []tocEntry {
	sections := len(job.Style.TableOfContents.Levels) > 1
	var toc []tocEntry
	for _, ch := range job.Chapters {
		toc = append(toc, tocEntry{Title: ch.Title, Level: 0})
		if !sections {
			continue
		}
		for _, h := range ch.Headings(2) {
			toc = append(toc, tocEntry{Title: h, Level: 1})
		}
	}
	return toc
}

// doc is the state of one layout pass.
type doc struct {
	pdf   *fpdf.Fpdf
	cfg   *style.Config
	job   Job
	fonts *fontSet
	tr    func(string) string
	utf8  bool

	pageW, pageH float64
	left, width  float64

	toc         []tocEntry
	tocNext     int
	tocSections bool
	total       int
}

func (r *FPDF) layout(ctx context.Context, job Job, dims style.Dimensions, toc []tocEntry, total int) (*doc, error) {
	cfg := job.Style
	m := cfg.Page.Margins

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: dims.Width, Ht: dims.Height},
	})
	pdf.SetMargins(m.Left, m.Top, m.Right)
	pdf.SetAutoPageBreak(true, m.Bottom)
	pdf.SetTitle(job.Meta.Title, true)
	pdf.SetAuthor(job.Meta.Author, true)
	pdf.SetCreator("bookpress", true)
	if job.FormatName != "" {
		pdf.SetSubject(job.FormatName, true)
	}

	d := &doc{
		pdf:         pdf,
		cfg:         cfg,
		job:         job,
		tr:          pdf.UnicodeTranslatorFromDescriptor(""),
		pageW:       dims.Width,
		pageH:       dims.Height,
		left:        m.Left,
		width:       dims.Width - m.Left - m.Right,
		toc:         append([]tocEntry(nil), toc...),
		tocSections: len(cfg.TableOfContents.Levels) > 1,
		total:       total,
	}
	d.fonts = newFontSet(pdf, cfg, r.fontsDir)

	if cfg.PageNumbers.Show {
		if strings.HasPrefix(strings.ToLower(cfg.PageNumbers.Position), "top") {
			pdf.SetHeaderFuncMode(d.folio, true)
		} else {
			pdf.SetFooterFunc(d.folio)
		}
	}

	if cfg.TitlePage.Show {
		d.titlePage()
	}
	if strings.TrimSpace(job.Meta.FrontMatter) != "" {
		if err := d.frontMatter(); err != nil {
			return nil, err
		}
	}
	if cfg.TableOfContents.Show && len(d.toc) > 0 {
		d.contents()
	}
	for i, ch := range job.Chapters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d.chapter(i, ch)
	}
	if pdf.PageNo() == 0 {
		pdf.AddPage()
	}

	if err := pdf.Error(); err != nil {
		return nil, types.NewAppError(types.ErrRenderJob, "PDF layout failed", err)
	}
	return d, nil
}

// text prepares s for the current font: core fonts need cp1252.
func (d *doc) text(s string) string {
	if d.utf8 {
		return s
	}
	return d.tr(s)
}

func (d *doc) measure(s string) float64 {
	return d.pdf.GetStringWidth(d.text(s))
}

// use selects font, size and color for ts.
func (d *doc) use(ts style.TextStyle, defFont string, defSize float64, extra string) {
	face := d.fonts.resolve(ts.Font, defFont).withStyle(extra)
	d.pdf.SetFont(face.Family, face.Style, ts.SizeOr(defSize))
	d.utf8 = face.UTF8
	c := parseColor(ts.ColorOr("#000000"), rgb{})
	d.pdf.SetTextColor(c.R, c.G, c.B)
}

// ensureSpace starts a new page unless h points still fit on this one.
func (d *doc) ensureSpace(h float64) {
	if d.pdf.GetY()+h > d.pageH-d.cfg.Page.Margins.Bottom {
		d.pdf.AddPage()
	}
}

func (d *doc) markTOC(level int) {
	if d.tocNext < len(d.toc) && d.toc[d.tocNext].Level == level {
		d.toc[d.tocNext].Page = d.pdf.PageNo()
		d.tocNext++
	}
}

// textDefaults are the fallbacks for a TextStyle left partly empty.
type textDefaults struct {
	font  string
	size  float64
	align string
	extra string
}

// textBlock writes a wrapped paragraph in ts, honouring spacing, indents,
// background and case.
func (d *doc) textBlock(text string, ts style.TextStyle, def textDefaults) {
	text = applyCase(ts.Case, strings.TrimSpace(text))
	if text == "" {
		return
	}
	if ts.SpaceBefore > 0 {
		d.pdf.Ln(ts.SpaceBefore)
	}
	d.use(ts, def.font, def.size, def.extra)
	leading := ts.LeadingOr(def.size)
	align := ts.AlignOr(def.align)

	fill := ts.Background != ""
	if fill {
		bg := parseColor(ts.Background, rgb{255, 255, 255})
		d.pdf.SetFillColor(bg.R, bg.G, bg.B)
	}

	x := d.left + ts.Indent
	w := d.width - ts.Indent
	if ts.FirstLineIndent > 0 && ts.FirstLineIndent < w {
		first, rest := splitFirstLine(text, w-ts.FirstLineIndent, d.measure)
		d.pdf.SetX(x + ts.FirstLineIndent)
		d.pdf.MultiCell(w-ts.FirstLineIndent, leading, d.text(first), "", cellAlign(align), fill)
		text = rest
	}
	if text != "" {
		d.pdf.SetX(x)
		d.pdf.MultiCell(w, leading, d.text(text), "", align, fill)
	}

	if ts.SpaceAfter > 0 {
		d.pdf.Ln(ts.SpaceAfter)
	}
}

// folio draws the page number; installed as header or footer.
func (d *doc) folio() {
	pn := d.cfg.PageNumbers
	n := d.pdf.PageNo()
	if n < max(pn.StartPage, 1) {
		return
	}
	total := d.total
	if total == 0 {
		total = n
	}

	// fpdf restores the body font after the header or footer; the
	// encoding flag has to follow it.
	defer func(utf8 bool) { d.utf8 = utf8 }(d.utf8)

	m := d.cfg.Page.Margins
	size := pn.SizeOr(defaultFolioSize)
	d.use(pn.TextStyle, "Helvetica", defaultFolioSize, "")

	vertical, horizontal, _ := strings.Cut(strings.ToLower(pn.Position), "-")
	y := d.pageH - m.Bottom/2 - size/2
	if vertical == "top" {
		y = m.Top/2 - size/2
	}
	align := "C"
	switch horizontal {
	case "left":
		align = "L"
	case "right":
		align = "R"
	}

	d.pdf.SetXY(d.left, y)
	d.pdf.CellFormat(d.width, size, d.text(folio(pn.FormatOr(), n, total)), "", 0, align, false, 0, "")
}

func (d *doc) titlePage() {
	tp := d.cfg.TitlePage
	meta := d.job.Meta
	d.pdf.AddPage()

	top := tp.Top
	if top <= 0 || top >= 1 {
		top = defaultTitleTop
	}
	d.pdf.SetY(d.pageH * top)

	title := meta.Title
	if strings.TrimSpace(title) == "" {
		title = "Untitled"
	}
	titleDef := textDefaults{font: "heading", size: 28, align: "C"}
	if strings.EqualFold(tp.Title.Layout, "words") {
		ts := tp.Title.TextStyle
		ts.SpaceAfter = 0
		for _, w := range strings.Fields(title) {
			d.textBlock(w, ts, titleDef)
		}
	} else {
		d.textBlock(title, tp.Title.TextStyle, titleDef)
	}

	sub := tp.Author.TextStyle
	sub.Case, sub.SpaceBefore = "", sub.SizeOr(14)/2
	if meta.Subtitle != "" {
		d.textBlock(meta.Subtitle, sub, textDefaults{font: "body", size: 14, align: "C", extra: "I"})
	}
	if d.job.PartCount > 1 {
		label := "Part " + strconv.Itoa(d.job.Part) + " of " + strconv.Itoa(d.job.PartCount)
		d.textBlock(label, sub, textDefaults{font: "body", size: 14, align: "C"})
	}

	if meta.Author == "" {
		return
	}
	between := tp.Between
	if between <= 0 || between >= 1 {
		between = defaultTitleBetween
	}
	d.pdf.Ln(d.pageH * between)
	authorDef := textDefaults{font: "body", size: 14, align: "C"}
	if tp.Author.Prefix != "" {
		ts := tp.Author.TextStyle
		ts.SpaceAfter = 0
		d.textBlock(tp.Author.Prefix, ts, authorDef)
	}
	d.textBlock(meta.Author, tp.Author.TextStyle, authorDef)
}

func (d *doc) frontMatter() error {
	blocks, err := book.ParseMarkdown([]byte(d.job.Meta.FrontMatter))
	if err != nil {
		return types.NewAppError(types.ErrInvalidInput, "invalid front matter", err)
	}
	d.pdf.AddPage()
	d.blocks(blocks, false)
	return nil
}

func (d *doc) contents() {
	t := d.cfg.TableOfContents
	d.pdf.AddPage()

	title := t.Title.Text
	if title == "" {
		title = "Contents"
	}
	d.textBlock(title, t.Title.TextStyle, textDefaults{font: "heading", size: 18, align: "C"})
	if t.Title.SpaceAfter == 0 {
		d.pdf.Ln(12)
	}

	for _, e := range d.toc {
		ts := t.Level(e.Level)
		d.use(ts, "body", 11, "")
		leading := ts.LeadingOr(11)

		titleW := d.width - ts.Indent - tocNumberWidth
		label := fitText(e.Title, titleW, d.measure)
		if dot := d.measure("."); dot > 0 {
			gap := titleW - d.measure(label+" ")
			if n := int(gap / dot); n > 2 {
				label += " " + strings.Repeat(".", n-1)
			}
		}

		d.pdf.SetX(d.left + ts.Indent)
		d.pdf.CellFormat(titleW, leading, d.text(label), "", 0, "L", false, 0, "")
		d.pdf.CellFormat(tocNumberWidth, leading, strconv.Itoa(e.Page), "", 1, "R", false, 0, "")
	}
}

// fitText shortens s with an ellipsis until it fits in width.
func fitText(s string, width float64, measure func(string) float64) string {
	if measure(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && measure(string(r)+"...") > width {
		r = r[:len(r)-1]
	}
	return strings.TrimSpace(string(r)) + "..."
}

func (d *doc) chapter(i int, ch book.Chapter) {
	h := d.cfg.ChapterHeading
	if h.PageBreak.Before || d.pdf.PageNo() == 0 {
		d.pdf.AddPage()
	} else {
		d.ensureSpace(d.pageH / 4)
	}
	if h.TopSpace > 0 && h.TopSpace < 1 {
		m := d.cfg.Page.Margins
		d.pdf.Ln((d.pageH - m.Top - m.Bottom) * h.TopSpace)
	}

	d.markTOC(0)
	d.pdf.Bookmark(ch.Title, 0, -1)

	if h.Number.Prefix != "" {
		label := ch.ID
		if label == "" {
			label = strconv.Itoa(i + 1)
		}
		d.textBlock(h.Number.Prefix+" "+label, h.Number.TextStyle, textDefaults{font: "heading", size: 14, align: "C"})
	}
	d.textBlock(ch.Title, h.Title, textDefaults{font: "heading", size: 20, align: "C"})
	if h.Divider.Visible() {
		d.divider(h.Divider)
	}
	if h.PageBreak.After {
		d.pdf.AddPage()
	}

	d.blocks(ch.Blocks, true)
}
