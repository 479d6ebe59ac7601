package style

// Clone returns a deep copy; mutating the copy never affects c.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	if c.Fonts != nil {
		out.Fonts = make(map[string]FontSpec, len(c.Fonts))
		for k, v := range c.Fonts {
			out.Fonts[k] = v
		}
	}
	if c.TableOfContents.Levels != nil {
		out.TableOfContents.Levels = append([]TextStyle(nil), c.TableOfContents.Levels...)
	}
	return &out
}

// ScaleMargins multiplies left/right by ws and top/bottom by hs.
func (c *Config) ScaleMargins(ws, hs float64) {
	m := &c.Page.Margins
	m.Left *= ws
	m.Right *= ws
	m.Top *= hs
	m.Bottom *= hs
}

// ScaleTypography multiplies every typography and spacing length in every
// section by f. Font mappings, colors and the title page's fractional
// spacing are left alone.
func (c *Config) ScaleTypography(f float64) {
	for _, t := range c.textStyles() {
		t.scale(f)
	}
	for _, d := range c.dividers() {
		d.Width *= f
		d.SpaceBefore *= f
		d.SpaceAfter *= f
	}
	c.Table.BorderWidth *= f
	c.Table.SpaceBefore *= f
	c.Table.SpaceAfter *= f
	c.Image.SpaceBefore *= f
	c.Image.SpaceAfter *= f
}

func (t *TextStyle) scale(f float64) {
	t.Size *= f
	t.Leading *= f
	t.SpaceBefore *= f
	t.SpaceAfter *= f
	t.Indent *= f
	t.FirstLineIndent *= f
	t.Padding *= f
	t.BorderWidth *= f
}

// textStyles returns pointers to every TextStyle in c, TOC levels included.
func (c *Config) textStyles() []*TextStyle {
	out := []*TextStyle{
		&c.TitlePage.Title.TextStyle,
		&c.TitlePage.Author.TextStyle,
		&c.PageNumbers.TextStyle,
		&c.TableOfContents.Title.TextStyle,
		&c.ChapterHeading.Number.TextStyle,
		&c.ChapterHeading.Title,
		&c.SectionHeading.TextStyle,
		&c.Paragraph,
		&c.CodeBlock,
		&c.Table.Header,
		&c.Table.Cell,
		&c.Image.Caption,
	}
	for i := range c.TableOfContents.Levels {
		out = append(out, &c.TableOfContents.Levels[i])
	}
	return out
}

func (c *Config) dividers() []*Divider {
	return []*Divider{&c.ChapterHeading.Divider, &c.SectionHeading.Divider}
}
