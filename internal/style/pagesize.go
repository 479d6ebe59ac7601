package style

import (
	"fmt"
	"sort"
	"strings"
)

// Custom marks a page whose dimensions are given explicitly.
const Custom = "CUSTOM"

// PointsPerInch converts inches to PDF points.
const PointsPerInch = 72.0

// Dimensions is a page width and height in points.
type Dimensions struct {
	Width  float64
	Height float64
}

var pageSizes = map[string]Dimensions{
	"A4":       {595.2756, 841.8898},
	"A5":       {419.5276, 595.2756},
	"B5":       {498.8976, 708.6614},
	"LETTER":   {612, 792},
	"LEGAL":    {612, 1008},
	"US_TRADE": {432, 648},
}

// NormalizeSizeName upper-cases name and folds '-' and ' ' to '_'.
func NormalizeSizeName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	return strings.NewReplacer("-", "_", " ", "_").Replace(name)
}

// PageSize looks up a named page size.
func PageSize(name string) (Dimensions, bool) {
	d, ok := pageSizes[NormalizeSizeName(name)]
	return d, ok
}

// PageSizeNames lists the known named sizes, sorted.
func PageSizeNames() []string {
	names := make([]string, 0, len(pageSizes))
	for n := range pageSizes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PageDimensions resolves the page geometry. An empty size with explicit
// width and height is treated as custom; an empty size without them is A4.
func (c *Config) PageDimensions() (Dimensions, error) {
	return c.Page.Dimensions()
}

// Dimensions resolves the page geometry, see Config.PageDimensions.
func (p Page) Dimensions() (Dimensions, error) {
	size := NormalizeSizeName(p.Size)
	if size == Custom || (size == "" && p.Width > 0 && p.Height > 0) {
		if p.Width <= 0 || p.Height <= 0 {
			return Dimensions{}, fmt.Errorf("page size %s requires positive width and height", Custom)
		}
		return Dimensions{Width: p.Width, Height: p.Height}, nil
	}
	if size == "" {
		return pageSizes["A4"], nil
	}
	d, ok := pageSizes[size]
	if !ok {
		return Dimensions{}, fmt.Errorf("unknown page size %q (known: %s)", p.Size, strings.Join(PageSizeNames(), ", "))
	}
	return d, nil
}
