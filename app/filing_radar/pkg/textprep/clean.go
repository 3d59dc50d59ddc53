package textprep

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"
)

// 隐藏元素，结构化解析时整块删除
const hiddenSelector = "[style*='display:none'], [style*='display: none']"

// 非正文元素，遍历时跳过
var skipTags = map[string]bool{
	"script": true, "style": true, "head": true, "noscript": true,
	"template": true, "svg": true, "ix:header": true,
}

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "tr": true, "li": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "ul": true, "ol": true, "pre": true,
	"blockquote": true, "hr": true, "title": true, "center": true,
}

var cellTags = map[string]bool{"td": true, "th": true}

var (
	reDropBlock  = regexp.MustCompile(`(?is)<(script|style|head|noscript|template|svg|ix:header)\b.*?</(script|style|head|noscript|template|svg|ix:header)\s*>`)
	reComment    = regexp.MustCompile(`(?s)<!--.*?-->`)
	reBlockTag   = regexp.MustCompile(`(?i)</?(p|div|br|tr|li|table|h[1-6]|section|article|ul|ol|pre|blockquote|hr|title|center)\b[^>]*>`)
	reCellTag    = regexp.MustCompile(`(?i)</?(td|th)\b[^>]*>`)
	reAnyTag     = regexp.MustCompile(`(?s)<[^>]*>`)
	reSeparators = regexp.MustCompile(`[-=_*·•~]{4,}`)
	reHSpace     = regexp.MustCompile(`[ \t\f\v\x{00a0}\x{2007}\x{202f}]+`)
	reBlankLines = regexp.MustCompile(`\n{3,}`)
)

// HTMLToText 把标记文本转换为纯文本；小于阈值时用 goquery 结构化解析，否则用正则快速剥离
func HTMLToText(raw []byte, threshold int) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ""
	}
	var text string
	if threshold <= 0 || len(raw) < threshold {
		text = structuralText(raw)
	} else {
		text = regexText(raw)
	}
	return Normalize(text)
}

// structuralText 基于 DOM 的转换，块级元素之间换行
func structuralText(raw []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return regexText(raw)
	}
	doc.Find(hiddenSelector).Remove()

	var sb strings.Builder
	for _, n := range doc.Nodes {
		walk(n, &sb)
	}
	return sb.String()
}

func walk(n *xhtml.Node, sb *strings.Builder) {
	switch n.Type {
	case xhtml.TextNode:
		sb.WriteString(n.Data)
		return
	case xhtml.CommentNode:
		return
	}

	name := strings.ToLower(n.Data)
	if n.Type == xhtml.ElementNode && skipTags[name] {
		return
	}
	block := n.Type == xhtml.ElementNode && blockTags[name]
	cell := n.Type == xhtml.ElementNode && cellTags[name]
	if block {
		sb.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, sb)
	}
	if block {
		sb.WriteByte('\n')
	}
	if cell {
		sb.WriteByte(' ')
	}
}

// regexText 大文件路径：牺牲准确度换取有界内存
func regexText(raw []byte) string {
	s := string(raw)
	s = reComment.ReplaceAllString(s, " ")
	s = reDropBlock.ReplaceAllString(s, " ")
	s = reBlockTag.ReplaceAllString(s, "\n")
	s = reCellTag.ReplaceAllString(s, " ")
	s = reAnyTag.ReplaceAllString(s, "")
	return html.UnescapeString(s)
}

// Normalize 去掉分隔符串、折叠空白与多余空行
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = reSeparators.ReplaceAllString(s, " ")
	s = reHSpace.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	s = reBlankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
