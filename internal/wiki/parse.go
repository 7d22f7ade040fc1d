// Package wiki ingests the BEMANIWiki title conversion table: historical
// renamings that become csv_wiki aliases in the arcade scope.
package wiki

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/iidx-tools/songmaster/internal/util"
)

var spaceRE = regexp.MustCompile(`\s+`)

// targetHeaders is the exact header row of the conversion table:
// 正式曲名 / 置き換え後の曲名 / 備考.
var targetHeaders = []string{
	"正式曲名",
	"置き換え後の曲名",
	"備考",
}

// AliasRow is one conversion definition: the official title and the
// historical alternate titles it replaced, insertion order preserved.
type AliasRow struct {
	OfficialTitle  string
	ReplacedTitles []string
	Note           string
}

// ParseReport carries diagnostic counters for one parse run
type ParseReport struct {
	TablesScanned      int
	MatchedTables      int
	SelectedTableIndex int
	ParsedRowsTotal    int
	DefinitionRows     int
	SkippedByReason    map[string]int
}

// ParseTitleAliasTable extracts conversion definitions from the page.
// Exactly one table.style_table must carry the target header row; zero or
// multiple matches are fatal because they mean the page layout changed.
func ParseTitleAliasTable(htmlText string) ([]AliasRow, *ParseReport, error) {
	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: wiki html: %v", util.ErrParse, err)
	}

	tables := findStyleTables(doc)

	var matched []int
	for index, table := range tables {
		if headersMatch(tableHeaders(table), targetHeaders) {
			matched = append(matched, index)
		}
	}

	if len(matched) == 0 {
		return nil, nil, fmt.Errorf("%w: conversion table not found (target header mismatch)", util.ErrParse)
	}
	if len(matched) > 1 {
		return nil, nil, fmt.Errorf("%w: conversion table matched %d tables", util.ErrParse, len(matched))
	}

	report := &ParseReport{
		TablesScanned:      len(tables),
		MatchedTables:      1,
		SelectedTableIndex: matched[0],
		SkippedByReason: map[string]int{
			"section_header":            0,
			"colspan2_special":          0,
			"missing_required_cell":     0,
			"empty_replaced_candidates": 0,
			"unexpected_structure":      0,
		},
	}

	var rows []AliasRow
	body := tableBody(tables[matched[0]])
	for _, tr := range directChildren(body, "tr") {
		report.ParsedRowsTotal++
		tds := directChildren(tr, "td")

		switch {
		case len(tds) == 0:
			report.SkippedByReason["unexpected_structure"]++
			continue
		case len(tds) == 1 && colspan(tds[0]) >= 3:
			report.SkippedByReason["section_header"]++
			continue
		case len(tds) == 2 && colspan(tds[0]) == 2:
			report.SkippedByReason["colspan2_special"]++
			continue
		case len(tds) != 3:
			report.SkippedByReason["unexpected_structure"]++
			continue
		case colspan(tds[0]) > 1 || colspan(tds[1]) > 1 || colspan(tds[2]) > 1:
			report.SkippedByReason["unexpected_structure"]++
			continue
		}

		officialTitle := normalizeCellText(textContent(tds[0], " "))
		replacedRaw := textContent(tds[1], "\n")
		note := normalizeCellText(textContent(tds[2], " "))

		if officialTitle == "" || strings.TrimSpace(replacedRaw) == "" {
			report.SkippedByReason["missing_required_cell"]++
			continue
		}

		var replacedTitles []string
		for _, line := range strings.Split(replacedRaw, "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				replacedTitles = append(replacedTitles, trimmed)
			}
		}
		if len(replacedTitles) == 0 {
			report.SkippedByReason["empty_replaced_candidates"]++
			continue
		}

		rows = append(rows, AliasRow{
			OfficialTitle:  officialTitle,
			ReplacedTitles: replacedTitles,
			Note:           note,
		})
	}

	report.DefinitionRows = len(rows)
	return rows, report, nil
}

func normalizeCellText(s string) string {
	return strings.TrimSpace(spaceRE.ReplaceAllString(s, " "))
}

func headersMatch(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func findStyleTables(n *html.Node) []*html.Node {
	var tables []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "table" && hasClass(node, "style_table") {
			tables = append(tables, node)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return tables
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key == "class" {
			for _, c := range strings.Fields(attr.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

// tableHeaders reads the first thead row's th/td texts
func tableHeaders(table *html.Node) []string {
	thead := firstDescendant(table, "thead")
	if thead == nil {
		return nil
	}
	row := firstDescendant(thead, "tr")
	if row == nil {
		return nil
	}

	var headers []string
	for child := row.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && (child.Data == "th" || child.Data == "td") {
			headers = append(headers, normalizeCellText(textContent(child, " ")))
		}
	}
	return headers
}

// tableBody returns the tbody, or the table itself when tbody is absent
func tableBody(table *html.Node) *html.Node {
	if tbody := firstDescendant(table, "tbody"); tbody != nil {
		return tbody
	}
	return table
}

func firstDescendant(n *html.Node, name string) *html.Node {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.Data == name {
			return child
		}
		if found := firstDescendant(child, name); found != nil {
			return found
		}
	}
	return nil
}

func directChildren(n *html.Node, name string) []*html.Node {
	var children []*html.Node
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.Data == name {
			children = append(children, child)
		}
	}
	return children
}

func colspan(td *html.Node) int {
	for _, attr := range td.Attr {
		if attr.Key == "colspan" {
			if n, err := strconv.Atoi(strings.TrimSpace(attr.Val)); err == nil {
				return n
			}
			return 1
		}
	}
	return 1
}

// textContent flattens a cell's text, writing sep at <br> boundaries
func textContent(n *html.Node, sep string) string {
	var out strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			out.WriteString(node.Data)
			return
		}
		if node.Type == html.ElementNode && node.Data == "br" {
			out.WriteString(sep)
			return
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		walk(child)
	}
	return out.String()
}
