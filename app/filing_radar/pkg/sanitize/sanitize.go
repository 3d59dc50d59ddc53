package sanitize

import (
	"html"
	"strings"

	xhtml "golang.org/x/net/html"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/model"
)

// AllowedTags 允许保留的行内标签，属性一律丢弃
var AllowedTags = map[string]bool{
	"b":      true,
	"strong": true,
	"i":      true,
	"em":     true,
	"br":     true,
}

// 内容整体丢弃的标签
var dropContent = map[string]bool{"script": true, "style": true}

// Sanitize 去掉白名单之外的全部标记，文本统一转义；对结果再次调用不会改变它
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	z := xhtml.NewTokenizer(strings.NewReader(s))
	var sb strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case xhtml.ErrorToken:
			return sb.String()
		case xhtml.TextToken:
			if skip == 0 {
				text := strings.ReplaceAll(string(z.Text()), "\x00", "")
				sb.WriteString(html.EscapeString(text))
			}
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if dropContent[tag] {
				if tt == xhtml.StartTagToken {
					skip++
				}
				continue
			}
			if skip == 0 && AllowedTags[tag] {
				sb.WriteString("<" + tag + ">")
			}
		case xhtml.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if dropContent[tag] {
				if skip > 0 {
					skip--
				}
				continue
			}
			if skip == 0 && AllowedTags[tag] && tag != "br" {
				sb.WriteString("</" + tag + ">")
			}
		}
	}
}

// Report 清理报告中所有章节的洞察与正文，原地修改
func Report(r *model.StructuredReport) {
	if r == nil {
		return
	}
	for i := range r.Sections {
		s := &r.Sections[i]
		for j, in := range s.Insights {
			s.Insights[j] = Sanitize(in)
		}
		s.Body = model.Text(Sanitize(string(s.Body)))
	}
}
