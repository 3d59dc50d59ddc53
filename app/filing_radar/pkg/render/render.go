package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/model"
)

// Func 渲染函数，流水线只依赖这个签名
type Func func(rec *model.ReportOutput) (string, error)

// 未开启 WithUnsafe，模型输出里的原始 HTML 会被丢弃
var md = goldmark.New(goldmark.WithExtensions(extension.Strikethrough))

// Markdown 把叙述字段转换为 HTML
func Markdown(s string) template.HTML {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(s), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(s))
	}
	return template.HTML(buf.String())
}

var funcs = template.FuncMap{
	"markdown": Markdown,
	// inline 输出已经过白名单清洗的片段
	"inline": func(v any) template.HTML { return template.HTML(fmt.Sprint(v)) },
	"pct": func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return fmt.Sprintf("%+.2f%%", *v)
	},
	"num": func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return formatNumber(*v)
	},
}

var page = template.Must(template.New("report").Funcs(funcs).Parse(reportTpl))
var missing = template.Must(template.New("missing").Parse(placeholderTpl))

// Render 把记录渲染为完整的 HTML 文档
func Render(rec *model.ReportOutput) (string, error) {
	if rec == nil || rec.Report == nil {
		return "", fmt.Errorf("nothing to render")
	}
	var buf bytes.Buffer
	if err := page.Execute(&buf, rec); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}

// Placeholder 尚未生成时返回的提示页
func Placeholder(subject, filingKey string) string {
	var buf bytes.Buffer
	_ = missing.Execute(&buf, map[string]string{"Subject": subject, "FilingKey": filingKey})
	return buf.String()
}

func formatNumber(v float64) string {
	abs := v
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1e12:
		return fmt.Sprintf("%.2fT", v/1e12)
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

const placeholderTpl = `<!DOCTYPE html>
<html lang="zh-CN">
<head><meta charset="UTF-8"><title>报告尚未生成</title></head>
<body>
    <h1>{{.Subject}} · {{.FilingKey}}</h1>
    <p>该文件的报告尚未生成，请先调用 POST /api/reports/generate，然后轮询状态接口。</p>
</body>
</html>
`

const reportTpl = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Report.Cover.Title}} | 财报雷达</title>
    <style>
        :root {
            --primary-color: #2563eb;
            --bg-color: #f8fafc;
            --card-bg: #ffffff;
            --text-main: #1e293b;
            --text-secondary: #64748b;
            --border-color: #e2e8f0;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            background-color: var(--bg-color);
            color: var(--text-main);
            line-height: 1.6;
            margin: 0;
            padding: 20px;
        }
        .container { max-width: 960px; margin: 0 auto; }
        header { text-align: center; margin-bottom: 32px; }
        .meta { color: var(--text-secondary); }
        .kpis { display: grid; gap: 16px; grid-template-columns: repeat(4, 1fr); margin-bottom: 32px; }
        .kpi, .section, .enrichment { background: var(--card-bg); border: 1px solid var(--border-color); border-radius: 12px; padding: 20px; }
        .kpi-value { font-size: 1.6rem; font-weight: 800; }
        .section { margin-bottom: 24px; }
        .insights { background: #eff6ff; border-left: 4px solid var(--primary-color); padding: 10px 16px; }
        .bull { border-left: 4px solid #22c55e; background: #f0fdf4; padding: 10px 16px; }
        .bear { border-left: 4px solid #ef4444; background: #fef2f2; padding: 10px 16px; }
        table { width: 100%; border-collapse: collapse; }
        td, th { border-bottom: 1px solid var(--border-color); padding: 6px; text-align: left; }
    </style>
</head>
<body>
<div class="container">
    {{with .Report}}
    <header>
        <h1>{{.Cover.Title}}</h1>
        <div class="meta">{{.Cover.Subtitle}}</div>
        <div class="meta">{{.Meta.Company}} ({{.Meta.Ticker}}) • {{.Meta.FilingType}} • 截至 {{.Meta.PeriodEnd}} • 提交于 {{.Meta.FiledDate}}</div>
    </header>

    <div class="kpis">
        {{range .Cover.KPIs}}
        <div class="kpi"><div class="meta">{{.Label}}</div><div class="kpi-value">{{.Value}}</div><div>{{.Delta}}</div></div>
        {{end}}
    </div>

    <nav class="section">
        <ol>{{range .TOC}}<li><a href="#{{.ID}}">{{.Title}}</a></li>{{end}}</ol>
    </nav>

    {{range .Sections}}
    <div class="section" id="{{.ID}}" data-type="{{.Type}}">
        <h2>{{.Title}}</h2>
        {{if .Body}}<p>{{inline .Body}}</p>{{end}}
        {{if .Rows}}
        <table>
            <tr><th>指标</th><th>本期</th><th>上期</th><th>变化</th></tr>
            {{range .Rows}}<tr><td>{{.Label}}</td><td>{{.Current}}</td><td>{{.Prior}}</td><td>{{.Change}}</td></tr>{{end}}
        </table>
        {{end}}
        {{range .Bars}}<div>{{.Label}}: {{.Value}} ({{.Share}})</div>{{end}}
        {{range .Cards}}<div><b>{{.Label}}</b> {{.Value}} <span class="meta">{{.Note}}</span></div>{{end}}
        {{if .Timeline}}<ol>{{range .Timeline}}<li>{{.Label}}: {{.Value}}</li>{{end}}</ol>{{end}}
        {{range .Statements}}<p><b>{{.Metric}}</b> {{.Text}}</p>{{end}}
        {{range .Risks}}<p><b>{{.Title}}</b> [{{.Severity}}] {{.Detail}}</p>{{end}}
        {{range .Quotes}}<blockquote>{{.Text}} <footer>{{.Speaker}}</footer></blockquote>{{end}}
        {{if .Insights}}
        <div class="insights"><ul>{{range .Insights}}<li>{{inline .}}</li>{{end}}</ul></div>
        {{end}}
    </div>
    {{end}}
    {{end}}

    {{if or .Consensus .Surprise}}
    <div class="enrichment section">
        <h2>预期与实际</h2>
        <table>
            <tr><th></th><th>一致预期</th><th>实际</th><th>偏离</th></tr>
            <tr><td>EPS</td><td>{{if .Consensus}}{{num .Consensus.EPS}}{{end}}</td><td>{{if .Actuals}}{{num .Actuals.EPS}}{{end}}</td><td>{{if .Surprise}}{{pct .Surprise.EPS}}{{end}}</td></tr>
            <tr><td>Revenue</td><td>{{if .Consensus}}{{num .Consensus.Revenue}}{{end}}</td><td>{{if .Actuals}}{{num .Actuals.Revenue}}{{end}}</td><td>{{if .Surprise}}{{pct .Surprise.Revenue}}{{end}}</td></tr>
            <tr><td>EBITDA</td><td>{{if .Consensus}}{{num .Consensus.EBITDA}}{{end}}</td><td>{{if .Actuals}}{{num .Actuals.EBITDA}}{{end}}</td><td>{{if .Surprise}}{{pct .Surprise.EBITDA}}{{end}}</td></tr>
        </table>
        {{if .Consensus}}<div class="meta">来源: {{.Consensus.Source}}</div>{{end}}
    </div>
    {{end}}

    {{with .Reaction}}
    <div class="enrichment section">
        <h2>市场反应</h2>
        <p><b>驱动因素:</b> {{.Driver}} • <b>超预期质量:</b> {{.BeatQuality}} • <b>指引:</b> {{.GuidanceSignal}}</p>
        <div class="bull">{{markdown .BullCase}}</div>
        <div class="bear">{{markdown .BearCase}}</div>
        {{markdown .Summary}}
    </div>
    {{end}}

    {{with .Narrative}}
    <div class="enrichment section">
        <h2>叙事变化 <span class="meta">对比 {{.PriorFilingKey}} ({{.PriorPeriodEnd}})</span></h2>
        <p><b>基调:</b> {{.ToneShift}}</p>
        {{if .NewRiskThemes}}<p><b>新增风险:</b> {{range $i, $t := .NewRiskThemes}}{{if $i}}, {{end}}{{$t}}{{end}}</p>{{end}}
        {{if .RemovedRiskThemes}}<p><b>移除风险:</b> {{range $i, $t := .RemovedRiskThemes}}{{if $i}}, {{end}}{{$t}}{{end}}</p>{{end}}
        {{if .NewGrowthFocus}}<p><b>新增增长重点:</b> {{range $i, $t := .NewGrowthFocus}}{{if $i}}, {{end}}{{$t}}{{end}}</p>{{end}}
        {{markdown .ManagementToneDelta}}
    </div>
    {{end}}

    <div class="meta">模型: {{.Model}} • schema {{.SchemaVersion}}</div>
</div>
</body>
</html>
`
