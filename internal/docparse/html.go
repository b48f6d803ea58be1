package docparse

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	ErrStartNotFound = errors.New("start anchor not found")
	ErrEndNotFound   = errors.New("end anchor not reached")
)

// ReadOptions locates the documented region and maps heading tags to node kinds.
type ReadOptions struct {
	Container   string
	StartID     string
	EndID       string
	SectionTag  string
	EndpointTag string
	NoteTag     string
}

// DefaultReadOptions matches the exchange's reference layout.
func DefaultReadOptions(startID, endID string) ReadOptions {
	return ReadOptions{
		Container:   ".page-wrapper .content",
		StartID:     startID,
		EndID:       endID,
		SectionTag:  "h2",
		EndpointTag: "h3",
		NoteTag:     "h4",
	}
}

// ReadHTML walks the immediate siblings from #StartID up to, not including,
// #EndID and converts each into a Node.
func ReadHTML(html []byte, opts ReadOptions) ([]Node, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	start := doc.Find(opts.Container).Find("#" + opts.StartID).First()
	if start.Length() == 0 {
		start = doc.Find("#" + opts.StartID).First()
	}
	if start.Length() == 0 {
		return nil, fmt.Errorf("%w: #%s", ErrStartNotFound, opts.StartID)
	}

	var nodes []Node
	for sel := start; ; sel = sel.Next() {
		if sel.Length() == 0 {
			return nil, fmt.Errorf("%w: #%s", ErrEndNotFound, opts.EndID)
		}
		if id, _ := sel.Attr("id"); id == opts.EndID {
			break
		}
		nodes = append(nodes, toNode(sel, opts))
	}
	return nodes, nil
}

func toNode(sel *goquery.Selection, opts ReadOptions) Node {
	id, _ := sel.Attr("id")
	n := Node{ID: id, Text: sel.Text()}

	switch tag := goquery.NodeName(sel); tag {
	case opts.SectionTag:
		n.Kind = KindSectionHeading
	case opts.EndpointTag:
		n.Kind = KindEndpointHeading
	case opts.NoteTag:
		n.Kind = KindNoteHeading
	case "p":
		n.Kind = KindParagraph
		n.HasInlineCode = sel.Find("code").Length() > 0
	case "div", "pre":
		if flavor := codeFlavor(sel); flavor != "" {
			n.Kind = KindCode
			n.Flavor = flavor
		}
	case "table":
		n.Kind = KindTable
		n.Header, n.Rows = tableCells(sel)
	}
	return n
}

func codeFlavor(sel *goquery.Selection) string {
	switch {
	case sel.Find(".plaintext code").Length() > 0, sel.Is("pre.plaintext"):
		return FlavorPlaintext
	case sel.Find(".json code").Length() > 0, sel.Is("pre.json"):
		return FlavorJSON
	}
	return ""
}

func tableCells(sel *goquery.Selection) ([]string, [][]string) {
	var header []string
	sel.Find("th").Each(func(_ int, th *goquery.Selection) {
		header = append(header, strings.TrimSpace(th.Text()))
	})
	var rows [][]string
	sel.Find("tbody > tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, td.Text())
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})
	return header, rows
}
