package style

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the template once at load time. Missing sections are fine;
// present values must be usable: the page size resolves, margins and lengths
// are non-negative and margins leave room on the page.
func (c *Config) Validate() error {
	var errs []error

	dims, err := c.Page.Dimensions()
	if err != nil {
		errs = append(errs, err)
	}

	m := c.Page.Margins
	if m.Left < 0 || m.Right < 0 || m.Top < 0 || m.Bottom < 0 {
		errs = append(errs, errors.New("page margins must be non-negative"))
	} else if err == nil && (m.Left+m.Right >= dims.Width || m.Top+m.Bottom >= dims.Height) {
		errs = append(errs, fmt.Errorf("page margins leave no usable area on a %.0fx%.0fpt page", dims.Width, dims.Height))
	}

	for _, t := range c.textStyles() {
		if t.Size < 0 || t.Leading < 0 || t.SpaceBefore < 0 || t.SpaceAfter < 0 ||
			t.Indent < 0 || t.FirstLineIndent < 0 || t.Padding < 0 || t.BorderWidth < 0 {
			errs = append(errs, errors.New("typography and spacing values must be non-negative"))
			break
		}
	}
	for _, d := range c.dividers() {
		if d.Width < 0 || d.SpaceBefore < 0 || d.SpaceAfter < 0 {
			errs = append(errs, errors.New("divider values must be non-negative"))
			break
		}
	}
	if c.Table.BorderWidth < 0 || c.Image.MaxWidth < 0 || c.Image.MaxWidth > 1 {
		errs = append(errs, errors.New("table border must be non-negative and image max_width within 0..1"))
	}

	for name, f := range c.Fonts {
		if f.Standard == "" && f.Normal == "" {
			errs = append(errs, fmt.Errorf("font %q has neither a standard name nor a normal face", name))
		}
	}

	if pos := c.PageNumbers.Position; pos != "" && !validPosition(pos) {
		errs = append(errs, fmt.Errorf("page number position %q is not <top|bottom>-<left|center|right>", pos))
	}

	return errors.Join(errs...)
}

func validPosition(pos string) bool {
	v, h, ok := strings.Cut(strings.ToLower(pos), "-")
	if !ok {
		return false
	}
	return (v == "top" || v == "bottom") && (h == "left" || h == "center" || h == "right")
}
