// Package render turns a styled chapter group into a PDF file. The FPDF
// renderer lays out the book with go-pdf/fpdf; Inspect and Merge operate on
// finished files with pdfcpu and ledongthuc/pdf.
package render

import (
	"context"

	"bookpress/internal/book"
	"bookpress/internal/style"
)

// Job is everything a renderer needs to produce one document.
type Job struct {
	Style      *style.Config
	Meta       book.Meta
	Chapters   []book.Chapter
	OutputPath string
	// Part and PartCount label multi-part output ("Part 2 of 3").
	Part      int
	PartCount int
	// FormatName is informational, used in PDF metadata.
	FormatName string
}

// Renderer writes a Job to Job.OutputPath.
type Renderer interface {
	Render(ctx context.Context, job Job) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, job Job) error

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, job Job) error {
	return f(ctx, job)
}
