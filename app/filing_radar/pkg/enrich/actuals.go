package enrich

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/model"
)

// 各指标的标签关键词，比较前统一做 NFKC 与大小写折叠
var metricKeywords = map[model.Metric][]string{
	model.MetricEPS: {
		"eps", "earnings per share", "每股收益", "每股盈利", "每股盈余",
		"gewinn je aktie", "beneficio por acción", "bénéfice par action",
	},
	model.MetricRevenue: {
		"revenue", "net sales", "total sales", "turnover",
		"营业收入", "营收", "收入", "売上高", "umsatz", "ingresos", "chiffre d'affaires",
	},
	model.MetricEBITDA: {"ebitda"},
}

// 含这些词的标签描述的是比率或增速，不是金额
var ratioWords = []string{"margin", "growth", "yoy", "y/y", "ratio", "per employee", "增长", "增速", "率", "同比"}

// 带这些限定词的标签是相关科目而不是该指标本身，例如营业成本、递延收入、净收入
var metricExclusions = map[model.Metric][]string{
	model.MetricRevenue: {
		"cost of", "deferred", "unearned", "other", "per share",
		"净", "成本", "递延", "其他", "预收",
	},
}

var folder = cases.Fold()

func fold(s string) string {
	return folder.String(norm.NFKC.String(s))
}

func matchMetric(label string) (model.Metric, bool) {
	l := fold(label)
	for _, w := range ratioWords {
		if strings.Contains(l, w) {
			return "", false
		}
	}
	for _, m := range []model.Metric{model.MetricEPS, model.MetricEBITDA, model.MetricRevenue} {
		if !containsAny(l, metricKeywords[m]) {
			continue
		}
		if containsAny(l, metricExclusions[m]) {
			return "", false
		}
		return m, true
	}
	return "", false
}

func containsAny(l string, words []string) bool {
	for _, w := range words {
		if strings.Contains(l, fold(w)) {
			return true
		}
	}
	return false
}

// ExtractActuals 从指标表与盈利能力卡片中读回实际值，不调用模型
func ExtractActuals(r *model.StructuredReport) *model.ActualsSnapshot {
	out := &model.ActualsSnapshot{}
	if r == nil {
		return out
	}

	type pair struct{ label, value string }
	var pairs []pair
	if s := r.SectionByType(model.SectionMetricsTable); s != nil {
		for _, row := range s.Rows {
			pairs = append(pairs, pair{string(row.Label), string(row.Current)})
		}
	}
	if s := r.SectionByType(model.SectionProfitabilityCards); s != nil {
		for _, c := range s.Cards {
			pairs = append(pairs, pair{string(c.Label), string(c.Value)})
		}
	}

	slots := map[model.Metric]**float64{
		model.MetricEPS:     &out.EPS,
		model.MetricRevenue: &out.Revenue,
		model.MetricEBITDA:  &out.EBITDA,
	}
	for _, p := range pairs {
		m, ok := matchMetric(p.label)
		if !ok || *slots[m] != nil || strings.Contains(p.value, "%") {
			continue
		}
		*slots[m] = ParseNumber(p.value)
	}

	if s := r.SectionByType(model.SectionGuidance); s != nil {
		var texts []string
		for _, st := range s.Statements {
			texts = append(texts, string(st.Text))
		}
		out.GuidanceMidpoint = GuidanceMidpoint(texts)
	}
	return out
}

var (
	reNumber = regexp.MustCompile(`^(\d+(?:\.\d+)?|\.\d+)\s*([a-z%]*)\.?$`)

	currencyPrefixes = []string{"us$", "a$", "c$", "hk$", "usd", "eur", "gbp", "rmb", "cny", "$", "€", "£", "¥"}

	multipliers = map[string]float64{
		"":         1,
		"%":        1,
		"k":        1e3,
		"thousand": 1e3,
		"m":        1e6,
		"mn":       1e6,
		"mm":       1e6,
		"million":  1e6,
		"b":        1e9,
		"bn":       1e9,
		"billion":  1e9,
		"t":        1e12,
		"tn":       1e12,
		"trillion": 1e12,
	}
)

// ParseNumber 解析带货币前缀、量级后缀或百分号的数值；倍数、比值等无法确定含义的写法返回 nil
func ParseNumber(s string) *float64 {
	s = strings.ToLower(strings.TrimSpace(norm.NFKC.String(s)))
	if s == "" {
		return nil
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s, n1 := stripSign(s)
	s = stripCurrency(s)
	s, n2 := stripSign(s)
	neg = neg != (n1 != n2)

	s = strings.ReplaceAll(s, ",", "")
	m := reNumber.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	mult, ok := multipliers[m[2]]
	if !ok {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	v *= mult
	if neg {
		v = -v
	}
	return &v
}

// stripSign 去掉开头的正负号，返回是否为负
func stripSign(s string) (string, bool) {
	for _, p := range []string{"-", "−", "–", "—"} {
		if rest, ok := strings.CutPrefix(s, p); ok {
			return strings.TrimSpace(rest), true
		}
	}
	if rest, ok := strings.CutPrefix(s, "+"); ok {
		return strings.TrimSpace(rest), false
	}
	return s, false
}

func stripCurrency(s string) string {
	for _, p := range currencyPrefixes {
		if rest, ok := strings.CutPrefix(s, p); ok {
			return strings.TrimSpace(rest)
		}
	}
	return s
}

const (
	numPart  = `((?:us\$|[$€£¥])?\s*\d[\d,]*(?:\.\d+)?)`
	unitPart = `\s*(thousand|million|billion|trillion|bn|mn|mm|tn|[kmbt])?\b`
)

var reRange = regexp.MustCompile(`(?i)` + numPart + unitPart + `\s*(?:-|\x{2013}|\x{2014}|to|and)\s*` + numPart + unitPart)

// GuidanceMidpoint 取每条指引中第一个数值区间的中点，再求平均；没有区间时返回 nil
func GuidanceMidpoint(statements []string) *float64 {
	var sum float64
	var n int
	for _, st := range statements {
		m := reRange.FindStringSubmatch(norm.NFKC.String(st))
		if m == nil {
			continue
		}
		loUnit, hiUnit := m[2], m[4]
		if loUnit == "" {
			loUnit = hiUnit
		}
		if looksLikeYears(m[1], m[3], loUnit) {
			continue
		}
		lo, hi := ParseNumber(m[1]+loUnit), ParseNumber(m[3]+hiUnit)
		if lo == nil || hi == nil {
			continue
		}
		sum += (*lo + *hi) / 2
		n++
	}
	if n == 0 {
		return nil
	}
	mid := sum / float64(n)
	return &mid
}

// looksLikeYears 过滤 "between 2024 and 2025" 这类年份区间
func looksLikeYears(a, b, unit string) bool {
	if unit != "" {
		return false
	}
	isYear := func(s string) bool {
		y, err := strconv.Atoi(strings.TrimSpace(s))
		return err == nil && y >= 1900 && y <= 2100
	}
	return isYear(a) && isYear(b)
}
