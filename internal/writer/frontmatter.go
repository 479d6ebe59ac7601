package writer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bookpress/internal/logger"
)

// CopyrightInfo describes the book for its copyright page. Empty fields get
// defaults.
type CopyrightInfo struct {
	Title     string
	Author    string
	Publisher string
	Year      int
	Edition   string
	ISBN      string
	Holder    string
}

func (c CopyrightInfo) withDefaults() CopyrightInfo {
	if c.Title == "" {
		c.Title = "The Book"
	}
	if c.Author == "" {
		c.Author = "The Author"
	}
	if c.Publisher == "" {
		c.Publisher = "Self-Published"
	}
	if c.Year == 0 {
		c.Year = time.Now().Year()
	}
	if c.Edition == "" {
		c.Edition = "First Edition"
	}
	if c.Holder == "" {
		c.Holder = c.Author
	}
	return c
}

// Copyright returns a Markdown copyright page written by p. When p is nil or
// the call fails, a standard text is returned instead.
func Copyright(ctx context.Context, p Provider, info CopyrightInfo) string {
	info = info.withDefaults()
	if p == nil {
		return copyrightFallback(info)
	}

	text, err := p.Complete(ctx, "", copyrightPrompt(info))
	if err != nil || strings.TrimSpace(text) == "" {
		logger.Warn("copyright page generation failed, using standard text",
			logger.String("provider", p.Name()),
			logger.Err(err))
		return copyrightFallback(info)
	}
	logger.Info("copyright page generated", logger.String("provider", p.Name()))
	return strings.TrimSpace(text)
}

func copyrightPrompt(info CopyrightInfo) string {
	var b strings.Builder
	b.WriteString("Generate a professional copyright page for a book with the following information:\n\n")
	fmt.Fprintf(&b, "Title: %s\nAuthor: %s\nPublisher: %s\nYear: %d\nEdition: %s\nCopyright Holder: %s\n",
		info.Title, info.Author, info.Publisher, info.Year, info.Edition, info.Holder)
	if info.ISBN != "" {
		b.WriteString("ISBN: " + info.ISBN + "\n")
	}
	b.WriteString(`
Include standard copyright language, a rights reserved statement and publisher information.
The output MUST be Markdown with plain paragraphs.
Do not add a "Copyright Page" title; start with the copyright statement.`)
	return b.String()
}

func copyrightFallback(info CopyrightInfo) string {
	lines := []string{
		"**" + info.Title + "**",
		info.Edition,
		"© " + strconv.Itoa(info.Year) + " " + info.Holder + ". All rights reserved.",
		"No part of this publication may be reproduced, distributed, or transmitted in any form or by any " +
			"means, including photocopying, recording, or other electronic or mechanical methods, without the " +
			"prior written permission of the publisher, except in the case of brief quotations embodied in " +
			"critical reviews and certain other noncommercial uses permitted by copyright law.",
		info.Publisher,
	}
	if info.ISBN != "" {
		lines = append(lines, "ISBN: "+info.ISBN)
	}
	return strings.Join(lines, "\n\n") + "\n"
}
