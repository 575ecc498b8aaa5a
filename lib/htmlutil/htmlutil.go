package htmlutil

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"unicode"

	"courtwatch/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html"
)

var tracer = telemetry.Tracer("courtwatch.lib.htmlutil")

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		getTextRecursive(child, buffer)
	}
}

var innerWhitespace = regexp.MustCompile(`\s+`)

// Normalize drops non printable runes, trims and collapses whitespace.
func Normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
	s = innerWhitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NodeText is the normalized text content of the first node of sel.
func NodeText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	return Normalize(GetText(sel.Nodes[0]))
}

// ParseDocument parses an html snapshot (e.g. the outer html of a page).
func ParseDocument(ctx context.Context, contents string) (*goquery.Document, error) {
	_, span := tracer.Start(ctx, "ParseDocument")
	defer span.End()
	span.SetAttributes(attribute.Int("bytes", len(contents)))

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(contents))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, err
	}
	return doc, nil
}
