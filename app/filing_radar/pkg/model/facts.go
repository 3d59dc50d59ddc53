package model

import "encoding/json"

// FactItem 分块抽取出的单条事实，结构由模型决定
type FactItem map[string]any

// KeyMetrics 标量关键指标，nil 表示未抽取到
type KeyMetrics struct {
	Revenue         *string `json:"revenue"`
	EPS             *string `json:"eps"`
	NetIncome       *string `json:"net_income"`
	EBITDA          *string `json:"ebitda"`
	GrossMargin     *string `json:"gross_margin"`
	OperatingMargin *string `json:"operating_margin"`
	FreeCashFlow    *string `json:"free_cash_flow"`
}

// PeriodInfo 报告期信息
type PeriodInfo struct {
	FiscalPeriod *string `json:"fiscal_period"`
	PeriodEnd    *string `json:"period_end"`
	Currency     *string `json:"currency"`
}

// FactsBag 单个分块的结构化抽取结果
type FactsBag struct {
	Revenue          []FactItem `json:"revenue"`
	Profitability    []FactItem `json:"profitability"`
	CashFlow         []FactItem `json:"cash_flow"`
	BalanceSheet     []FactItem `json:"balance_sheet"`
	Guidance         []FactItem `json:"guidance"`
	Risks            []FactItem `json:"risks"`
	ManagementQuotes []FactItem `json:"management_quotes"`
	Segments         []FactItem `json:"segments"`
	KeyMetrics       KeyMetrics `json:"key_metrics"`
	Period           PeriodInfo `json:"period"`
}

// ItemCount 列表字段条目总数
func (b *FactsBag) ItemCount() int {
	n := 0
	for _, l := range b.lists() {
		n += len(*l)
	}
	return n
}

func (b *FactsBag) lists() []*[]FactItem {
	return []*[]FactItem{
		&b.Revenue, &b.Profitability, &b.CashFlow, &b.BalanceSheet,
		&b.Guidance, &b.Risks, &b.ManagementQuotes, &b.Segments,
	}
}

func (m *KeyMetrics) scalars() []**string {
	return []**string{
		&m.Revenue, &m.EPS, &m.NetIncome, &m.EBITDA,
		&m.GrossMargin, &m.OperatingMargin, &m.FreeCashFlow,
	}
}

func (p *PeriodInfo) scalars() []**string {
	return []**string{&p.FiscalPeriod, &p.PeriodEnd, &p.Currency}
}

// Fingerprint 条目的结构指纹，map 序列化时键有序，因此结构相同即指纹相同
func Fingerprint(item FactItem) string {
	data, err := json.Marshal(item)
	if err != nil {
		return ""
	}
	return string(data)
}

// MergeFacts 合并多个 FactsBag：列表字段拼接并按结构指纹去重，标量字段取第一个非空值（空串视为空）
func MergeFacts(bags ...*FactsBag) *FactsBag {
	out := &FactsBag{}
	outLists := out.lists()
	seen := make([]map[string]struct{}, len(outLists))
	for i := range seen {
		seen[i] = make(map[string]struct{})
	}

	for _, bag := range bags {
		if bag == nil {
			continue
		}
		for i, l := range bag.lists() {
			for _, item := range *l {
				if len(item) == 0 {
					continue
				}
				fp := Fingerprint(item)
				if _, dup := seen[i][fp]; dup {
					continue
				}
				seen[i][fp] = struct{}{}
				*outLists[i] = append(*outLists[i], item)
			}
		}
		firstNonNil(out.KeyMetrics.scalars(), bag.KeyMetrics.scalars())
		firstNonNil(out.Period.scalars(), bag.Period.scalars())
	}
	return out
}

func firstNonNil(dst, src []**string) {
	for i := range dst {
		if *dst[i] == nil && *src[i] != nil && **src[i] != "" {
			v := **src[i]
			*dst[i] = &v
		}
	}
}
