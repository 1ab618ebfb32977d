// Copyright 2024-2026 Aiku AI

package bot

import (
	"errors"
	"fmt"
	"regexp"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/format"
)

// ErrUnsupportedFormat is returned when a message carries a rich-text
// format other than org.matrix.custom.html. It aborts the whole
// commandless path rather than a single matcher.
var ErrUnsupportedFormat = errors.New("unsupported message format")

// Code spans must not trigger conversions or links, so they are removed
// from the HTML before it is flattened to text.
var codeSpanRE = regexp.MustCompile(`(?s)<pre(?:\s[^>]*)?>.*?</pre>|<code(?:\s[^>]*)?>.*?</code>`)

// CleanBody returns the plain-text view of a message that commandless
// matchers run against. Plain messages pass through unchanged; HTML
// messages have their code and pre spans stripped before the remaining
// markup is flattened. Any other format value is an error.
func CleanBody(msg Message) (string, error) {
	switch msg.Format {
	case "":
		return msg.Body, nil
	case event.FormatHTML:
		return format.HTMLToText(codeSpanRE.ReplaceAllString(msg.FormattedBody, "")), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, msg.Format)
	}
}
