package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

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
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// NormalizeText collapses inner whitespace and strips non-printable
// runes, the usual cleanup before comparing scraped text.
func NormalizeText(s string) string {
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n")
	return innerWhitespace.ReplaceAllString(s, " ")
}

// FindLabelValue locates the first node matching labelSelector whose
// text contains label and returns the normalized text of its next
// sibling matching valueSelector (falling back to whichever element
// comes next). The empty string means the label was not found or had
// no value container.
func FindLabelValue(doc *goquery.Document, labelSelector, label, valueSelector string) string {
	value := ""
	doc.Find(labelSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := NormalizeText(sel.Text())
		if !strings.Contains(text, label) {
			return true
		}
		sibling := sel.NextFiltered(valueSelector)
		if sibling.Length() == 0 {
			sibling = sel.Next()
		}
		if sibling.Length() == 0 {
			return false
		}
		value = NormalizeText(sibling.Text())
		return false
	})
	return value
}
