package planner

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"bookpress/internal/logger"
	"bookpress/internal/style"
	"bookpress/internal/types"
)

// TypographyScaleThreshold is the scale below which typography shrinks with
// the page. Smaller reductions only move the margins.
const TypographyScaleThreshold = 0.9

// Unit is the length unit of a custom format.
type Unit string

const (
	UnitPoint Unit = "pt"
	UnitInch  Unit = "in"
	UnitMM    Unit = "mm"
)

// Points converts v in unit u to points. An empty unit means points.
func (u Unit) Points(v float64) (float64, error) {
	switch u {
	case "", UnitPoint:
		return v, nil
	case UnitInch:
		return v * style.PointsPerInch, nil
	case UnitMM:
		return v * style.PointsPerInch / 25.4, nil
	}
	return 0, fmt.Errorf("unknown unit %q", string(u))
}

// FormatSpec is a requested output page geometry.
type FormatSpec struct {
	Name   string  `json:"name"`
	Size   string  `json:"size"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	Unit   Unit    `json:"unit,omitempty"`
}

// DefaultFormat is used when a caller requests no format.
func DefaultFormat() FormatSpec {
	return FormatSpec{Name: "A4", Size: "A4"}
}

// IsCustom reports whether the format has explicit dimensions.
func (f FormatSpec) IsCustom() bool {
	return style.NormalizeSizeName(f.Size) == style.Custom
}

// Dimensions resolves the format to points.
func (f FormatSpec) Dimensions() (style.Dimensions, error) {
	if !f.IsCustom() {
		d, ok := style.PageSize(f.Size)
		if !ok {
			return style.Dimensions{}, types.NewAppErrorWithDetails(types.ErrInvalidFormat,
				"unknown page size", f.Size, nil)
		}
		return d, nil
	}

	w, err := f.Unit.Points(f.Width)
	if err != nil {
		return style.Dimensions{}, types.NewAppError(types.ErrInvalidFormat, "invalid custom format", err)
	}
	h, _ := f.Unit.Points(f.Height)
	if w <= 0 || h <= 0 {
		return style.Dimensions{}, types.NewAppErrorWithDetails(types.ErrInvalidFormat,
			"custom format requires positive width and height", f.String(), nil)
	}
	return style.Dimensions{Width: w, Height: h}, nil
}

// String renders the format in the syntax ParseFormat accepts.
func (f FormatSpec) String() string {
	body := style.NormalizeSizeName(f.Size)
	if f.IsCustom() {
		body = fmt.Sprintf("%s:%sx%s%s", style.Custom, trimFloat(f.Width), trimFloat(f.Height), f.Unit)
	}
	if f.Name != "" && f.Name != style.NormalizeSizeName(f.Size) {
		return f.Name + "=" + body
	}
	return body
}

// ParseFormat parses a format token:
//
//	A4, us_trade, Letter                named sizes
//	CUSTOM:6x9in, CUSTOM:432x648        explicit width x height (pt, in or mm)
//	Pocket=CUSTOM:4.25x6.87in           any of the above with a display name
func ParseFormat(token string) (FormatSpec, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return FormatSpec{}, types.NewAppError(types.ErrInvalidFormat, "empty format", nil)
	}

	var spec FormatSpec
	if name, rest, ok := strings.Cut(token, "="); ok {
		spec.Name = strings.TrimSpace(name)
		token = strings.TrimSpace(rest)
		if spec.Name == "" {
			return FormatSpec{}, types.NewAppErrorWithDetails(types.ErrInvalidFormat, "empty format name", token, nil)
		}
		if strings.IndexFunc(spec.Name, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) < 0 {
			return FormatSpec{}, types.NewAppErrorWithDetails(types.ErrInvalidFormat,
				"format name needs a letter or digit", spec.Name, nil)
		}
	}

	head, dims, custom := strings.Cut(token, ":")
	if !custom {
		size := style.NormalizeSizeName(token)
		if size == style.Custom {
			return FormatSpec{}, types.NewAppErrorWithDetails(types.ErrInvalidFormat,
				"custom format needs dimensions, e.g. CUSTOM:6x9in", token, nil)
		}
		if _, ok := style.PageSize(size); !ok {
			return FormatSpec{}, types.NewAppErrorWithDetails(types.ErrInvalidFormat,
				"unknown page size (known: "+strings.Join(style.PageSizeNames(), ", ")+")", token, nil)
		}
		spec.Size = size
		if spec.Name == "" {
			spec.Name = size
		}
		return spec, nil
	}

	if style.NormalizeSizeName(head) != style.Custom {
		return FormatSpec{}, types.NewAppErrorWithDetails(types.ErrInvalidFormat,
			"only CUSTOM takes dimensions", token, nil)
	}
	spec.Size = style.Custom

	dims = strings.ToLower(strings.TrimSpace(dims))
	for _, u := range []Unit{UnitInch, UnitMM, UnitPoint} {
		if strings.HasSuffix(dims, string(u)) {
			spec.Unit = u
			dims = strings.TrimSuffix(dims, string(u))
			break
		}
	}
	ws, hs, ok := strings.Cut(dims, "x")
	if !ok {
		return FormatSpec{}, types.NewAppErrorWithDetails(types.ErrInvalidFormat,
			"custom dimensions must be WIDTHxHEIGHT", token, nil)
	}
	var err error
	if spec.Width, err = strconv.ParseFloat(strings.TrimSpace(ws), 64); err != nil {
		return FormatSpec{}, types.NewAppErrorWithDetails(types.ErrInvalidFormat, "invalid width", token, err)
	}
	if spec.Height, err = strconv.ParseFloat(strings.TrimSpace(hs), 64); err != nil {
		return FormatSpec{}, types.NewAppErrorWithDetails(types.ErrInvalidFormat, "invalid height", token, err)
	}
	if spec.Unit == "" {
		spec.Unit = UnitPoint
	}
	if spec.Name == "" {
		spec.Name = style.Custom + "_" + trimFloat(spec.Width) + "x" + trimFloat(spec.Height) + string(spec.Unit)
	}

	if _, err := spec.Dimensions(); err != nil {
		return FormatSpec{}, err
	}
	return spec, nil
}

// ParseFormats parses each token, allowing comma-separated lists inside a
// token. No tokens yields DefaultFormat.
func ParseFormats(tokens []string) ([]FormatSpec, error) {
	var specs []FormatSpec
	for _, t := range tokens {
		for _, part := range strings.Split(t, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			spec, err := ParseFormat(part)
			if err != nil {
				return nil, err
			}
			specs = append(specs, spec)
		}
	}
	if len(specs) == 0 {
		specs = []FormatSpec{DefaultFormat()}
	}
	return specs, nil
}

// Adapt returns a copy of base fitted to the target format. Margins scale
// per axis; typography scales by the smaller axis factor only when that
// factor is below TypographyScaleThreshold. Fonts are never changed and
// base is never mutated.
func Adapt(base *style.Config, spec FormatSpec) (*style.Config, error) {
	from, err := base.PageDimensions()
	if err != nil {
		return nil, types.NewAppError(types.ErrConfigParse, "cannot resolve base page size", err)
	}
	to, err := spec.Dimensions()
	if err != nil {
		return nil, err
	}

	adapted := base.Clone()
	ws := to.Width / from.Width
	hs := to.Height / from.Height
	adapted.ScaleMargins(ws, hs)

	factor := math.Min(ws, hs)
	scaled := factor < TypographyScaleThreshold
	if scaled {
		adapted.ScaleTypography(factor)
	}

	adapted.Page.Size = style.NormalizeSizeName(spec.Size)
	adapted.Page.Width, adapted.Page.Height = 0, 0
	if spec.IsCustom() {
		adapted.Page.Width, adapted.Page.Height = to.Width, to.Height
	}

	logger.Debug("style adapted to format",
		logger.String("style", base.Name),
		logger.String("format", spec.Name),
		logger.Float64("widthScale", ws),
		logger.Float64("heightScale", hs),
		logger.Bool("typographyScaled", scaled))
	return adapted, nil
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
