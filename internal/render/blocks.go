package render

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"

	"bookpress/internal/book"
	"bookpress/internal/logger"
	"bookpress/internal/style"
)

const (
	quoteIndent = 18.0
	ruleSpace   = 8.0
)

var (
	ruleColor   = rgb{150, 150, 150}
	borderColor = rgb{127, 140, 141}
	codeColor   = rgb{244, 246, 247}
)

// blocks lays out chapter content. mark records section pages for the
// contents page; front matter is laid out without it.
func (d *doc) blocks(blocks []book.Block, mark bool) {
	para := textDefaults{font: "body", size: 11, align: "L"}
	for _, b := range blocks {
		switch b.Type {
		case book.BlockHeading:
			d.heading(b, mark)
		case book.BlockParagraph:
			d.textBlock(b.Text, d.cfg.Paragraph, para)
		case book.BlockList:
			d.list(b)
		case book.BlockQuote:
			d.quote(b)
		case book.BlockCode:
			d.code(b)
		case book.BlockTable:
			d.table(b)
		case book.BlockImage:
			d.image(b)
		case book.BlockRule:
			d.rule()
		}
	}
}

func (d *doc) heading(b book.Block, mark bool) {
	sh := d.cfg.SectionHeading
	ts := sh.TextStyle
	def := textDefaults{font: "heading", size: 14, align: "L"}

	if b.Level > 2 {
		body := d.cfg.Paragraph.SizeOr(11)
		ts.Size = max(ts.SizeOr(14)-2*float64(b.Level-2), body)
		ts.Leading = 0
	}

	// Keep the heading with at least two lines of what follows.
	d.ensureSpace(ts.SpaceBefore + ts.LeadingOr(def.size)*3)

	if mark && b.Level <= 2 {
		if b.Level == 2 && d.tocSections {
			d.markTOC(1)
		}
		d.pdf.Bookmark(b.Text, 1, -1)
	}
	d.textBlock(b.Text, ts, def)
	if b.Level <= 2 && sh.Divider.Visible() {
		d.divider(sh.Divider)
	}
}

func (d *doc) list(b book.Block) {
	ts := d.cfg.Paragraph
	ts.FirstLineIndent, ts.Background = 0, ""
	size := ts.SizeOr(11)
	leading := ts.LeadingOr(11)
	indent := ts.Indent + size
	markerW := size * 1.8

	if ts.SpaceBefore > 0 {
		d.pdf.Ln(ts.SpaceBefore)
	}
	d.use(ts, "body", 11, "")
	for i, item := range b.Items {
		marker := "•"
		if b.Ordered {
			marker = strconv.Itoa(i+1) + "."
		}
		d.pdf.SetX(d.left + indent)
		d.pdf.CellFormat(markerW, leading, d.text(marker), "", 0, "L", false, 0, "")
		d.pdf.MultiCell(d.width-indent-markerW, leading, d.text(applyCase(ts.Case, item)), "", "L", false)
	}
	if ts.SpaceAfter > 0 {
		d.pdf.Ln(ts.SpaceAfter)
	}
}

func (d *doc) quote(b book.Block) {
	ts := d.cfg.Paragraph
	ts.Indent += quoteIndent
	ts.FirstLineIndent, ts.Alignment = 0, "left"

	page, y0 := d.pdf.PageNo(), d.pdf.GetY()+ts.SpaceBefore
	d.textBlock(b.Text, ts, textDefaults{font: "body", size: 11, align: "L", extra: "I"})
	y1 := d.pdf.GetY() - ts.SpaceAfter

	if d.pdf.PageNo() == page && y1 > y0 {
		x := d.left + quoteIndent/2
		d.pdf.SetDrawColor(ruleColor.R, ruleColor.G, ruleColor.B)
		d.pdf.SetLineWidth(1.5)
		d.pdf.Line(x, y0, x, y1)
	}
}

func (d *doc) code(b book.Block) {
	ts := d.cfg.CodeBlock
	size := ts.SizeOr(9)
	leading := ts.LeadingOr(9)
	pad := ts.Padding

	if ts.SpaceBefore > 0 {
		d.pdf.Ln(ts.SpaceBefore)
	}
	d.ensureSpace(leading + 2*pad)
	d.use(ts, "mono", size, "")
	bg := parseColor(ts.Background, codeColor)
	d.pdf.SetFillColor(bg.R, bg.G, bg.B)

	text := strings.ReplaceAll(b.Text, "\t", "    ")
	margin := d.pdf.GetCellMargin()
	d.pdf.SetCellMargin(pad)
	d.pdf.SetX(d.left + ts.Indent)
	if pad > 0 {
		d.pdf.CellFormat(d.width-ts.Indent, pad, "", "", 2, "", true, 0, "")
	}
	d.pdf.MultiCell(d.width-ts.Indent, leading, d.text(text), "", "L", true)
	if pad > 0 {
		d.pdf.SetX(d.left + ts.Indent)
		d.pdf.CellFormat(d.width-ts.Indent, pad, "", "", 1, "", true, 0, "")
	}
	d.pdf.SetCellMargin(margin)

	if ts.SpaceAfter > 0 {
		d.pdf.Ln(ts.SpaceAfter)
	}
}

func (d *doc) table(b book.Block) {
	cols := len(b.Headers)
	for _, row := range b.Rows {
		cols = max(cols, len(row))
	}
	if cols == 0 {
		return
	}
	t := d.cfg.Table
	colW := d.width / float64(cols)

	if t.SpaceBefore > 0 {
		d.pdf.Ln(t.SpaceBefore)
	}
	if len(b.Headers) > 0 {
		d.tableRow(b.Headers, cols, colW, t.Header, textDefaults{font: "Helvetica-Bold", size: 10, align: "L"})
	}
	for _, row := range b.Rows {
		d.tableRow(row, cols, colW, t.Cell, textDefaults{font: "Helvetica", size: 10, align: "L"})
	}
	if t.SpaceAfter > 0 {
		d.pdf.Ln(t.SpaceAfter)
	}
}

func (d *doc) tableRow(cells []string, cols int, colW float64, ts style.TextStyle, def textDefaults) {
	t := d.cfg.Table
	d.use(ts, def.font, def.size, def.extra)
	leading := ts.LeadingOr(def.size)
	pad := ts.Padding
	inner := max(colW-2*pad, 1)

	wrapped := make([][]string, cols)
	lines := 1
	for c := 0; c < cols; c++ {
		if c < len(cells) {
			wrapped[c] = wrapLines(applyCase(ts.Case, cells[c]), inner, d.measure)
		}
		lines = max(lines, len(wrapped[c]))
	}
	rowH := float64(lines)*leading + 2*pad
	d.ensureSpace(rowH)

	rectStyle := "D"
	if ts.Background != "" {
		bg := parseColor(ts.Background, rgb{255, 255, 255})
		d.pdf.SetFillColor(bg.R, bg.G, bg.B)
		rectStyle = "FD"
	}
	border := parseColor(t.BorderColor, borderColor)
	d.pdf.SetDrawColor(border.R, border.G, border.B)
	lw := t.BorderWidth
	if lw <= 0 {
		rectStyle = strings.TrimSuffix(rectStyle, "D")
	} else {
		d.pdf.SetLineWidth(lw)
	}

	y := d.pdf.GetY()
	for c := 0; c < cols; c++ {
		x := d.left + float64(c)*colW
		if rectStyle != "" {
			d.pdf.Rect(x, y, colW, rowH, rectStyle)
		}
		for i, line := range wrapped[c] {
			d.pdf.SetXY(x+pad, y+pad+float64(i)*leading)
			d.pdf.CellFormat(inner, leading, d.text(line), "", 0, ts.AlignOr(def.align), false, 0, "")
		}
	}
	d.pdf.SetXY(d.left, y+rowH)
}

// wrapLines breaks text into lines no wider than width.
func wrapLines(text string, width float64, measure func(string) float64) []string {
	var lines []string
	for rest := strings.TrimSpace(text); rest != ""; {
		var line string
		line, rest = splitFirstLine(rest, width, measure)
		lines = append(lines, line)
	}
	return lines
}

func (d *doc) image(b book.Block) {
	img := d.cfg.Image
	caption := textDefaults{font: "Times-Italic", size: 9, align: "C"}
	if img.SpaceBefore > 0 {
		d.pdf.Ln(img.SpaceBefore)
	}

	w, h, ok := imageSize(b.Path)
	if !ok {
		logger.Warn("image unavailable, writing placeholder", logger.String("path", b.Path))
		label := b.Alt
		if label == "" {
			label = filepath.Base(b.Path)
		}
		d.textBlock("[Image: "+label+"]", img.Caption, caption)
	} else {
		m := d.cfg.Page.Margins
		maxW := d.width * img.MaxWidthOr(1)
		maxH := (d.pageH - m.Top - m.Bottom) * 0.8
		if w > maxW {
			h, w = h*maxW/w, maxW
		}
		if h > maxH {
			w, h = w*maxH/h, maxH
		}

		d.ensureSpace(h)
		y := d.pdf.GetY()
		opts := fpdf.ImageOptions{ReadDpi: true}
		d.pdf.ImageOptions(b.Path, d.left+(d.width-w)/2, y, w, h, false, opts, 0, "")
		d.pdf.SetY(y + h)
		d.textBlock(b.Alt, img.Caption, caption)
	}

	if img.SpaceAfter > 0 {
		d.pdf.Ln(img.SpaceAfter)
	}
}

// imageSize reports the pixel size of a local PNG, JPEG or GIF, taken as
// points. Remote or unreadable images report false.
func imageSize(path string) (float64, float64, bool) {
	if path == "" || strings.Contains(path, "://") {
		return 0, 0, false
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif":
	default:
		return 0, 0, false
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		return 0, 0, false
	}
	return float64(cfg.Width), float64(cfg.Height), true
}

func (d *doc) rule() {
	d.pdf.Ln(ruleSpace)
	d.pdf.SetDrawColor(ruleColor.R, ruleColor.G, ruleColor.B)
	d.pdf.SetLineWidth(0.5)
	y := d.pdf.GetY()
	d.pdf.Line(d.left, y, d.left+d.width, y)
	d.pdf.Ln(ruleSpace)
}

func (d *doc) divider(dv style.Divider) {
	if dv.SpaceBefore > 0 {
		d.pdf.Ln(dv.SpaceBefore)
	}
	c := parseColor(dv.Color, rgb{})
	lw := dv.Width
	if lw <= 0 {
		lw = 0.5
	}
	d.pdf.SetDrawColor(c.R, c.G, c.B)
	d.pdf.SetLineWidth(lw)
	if strings.EqualFold(dv.Type, "dotted") {
		d.pdf.SetDashPattern([]float64{lw, 2*lw + 1}, 0)
	}
	y := d.pdf.GetY()
	d.pdf.Line(d.left, y, d.left+d.width, y)
	d.pdf.SetDashPattern([]float64{}, 0)
	d.pdf.Ln(lw + dv.SpaceAfter)
}
