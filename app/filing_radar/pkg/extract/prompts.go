package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/llm"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/model"
)

const extractTpl = `FILING: %s %s (period end %s)
CHUNK: %d/%d

Read the filing excerpt below and extract the financial facts it states.
Return strictly one JSON object with these keys:
{
  "revenue": [], "profitability": [], "cash_flow": [], "balance_sheet": [],
  "guidance": [], "risks": [], "management_quotes": [], "segments": [],
  "key_metrics": {"revenue": null, "eps": null, "net_income": null, "ebitda": null,
                  "gross_margin": null, "operating_margin": null, "free_cash_flow": null},
  "period": {"fiscal_period": null, "period_end": null, "currency": null}
}
List items are objects such as {"label": "...", "value": "...", "prior": "..."}.
Keep numbers exactly as written in the filing. Use null for anything not stated.

EXCERPT:
%s`

const reduceTpl = `FILING: %s %s
COMPANY: %s
PERIOD END: %s
FILED: %s

Write the structured report for this filing from the merged facts below.
Return strictly one JSON object:
{
  "schema": %q,
  "meta": {"ticker": "", "company": "", "filing_type": "", "period_end": "", "filed_date": "", "currency": ""},
  "cover": {"title": "", "subtitle": "", "kpis": [exactly %d objects {"label","value","delta"}]},
  "toc": [exactly %d objects {"id","title"}],
  "sections": [exactly %d objects in this order]
}
Section ids are s1..s%d. Section types in order and their payload keys:
%s
Every section also has "title", "insights" (list of short strings; only <b>, <strong>, <i>, <em>, <br> allowed) and optional "body".

MERGED FACTS:
%s`

var sectionPayload = map[model.SectionType]string{
	model.SectionOverview:           `"body"`,
	model.SectionMetricsTable:       `"rows": [{"label","current","prior","change"}]`,
	model.SectionSegmentBars:        `"bars": [{"label","value","share"}]`,
	model.SectionProfitabilityCards: `"cards": [{"label","value","note"}]`,
	model.SectionCashFlowTimeline:   `"timeline": [{"label","value"}]`,
	model.SectionBalanceSheetCards:  `"cards": [{"label","value","note"}]`,
	model.SectionGuidance:           `"statements": [{"metric","text"}]`,
	model.SectionRiskFactors:        `"risks": [{"title","severity","detail"}]`,
	model.SectionQuotes:             `"quotes": [{"speaker","text"}]`,
	model.SectionAnalystTakeaways:   `"body"`,
}

func extractPrompt(ref model.FilingRef, chunk string, idx, total int) string {
	return llm.Header(llm.TaskExtract, ref.Subject) +
		fmt.Sprintf(extractTpl, ref.Subject, ref.DocType, ref.PeriodEnd, idx+1, total, chunk)
}

func reducePrompt(ref model.FilingRef, facts *model.FactsBag) string {
	var layout strings.Builder
	for i, t := range model.SectionOrder {
		fmt.Fprintf(&layout, "- %s: type %q, %s\n", model.SectionID(i), t, sectionPayload[t])
	}
	data, _ := json.MarshalIndent(facts, "", "  ")

	return llm.Header(llm.TaskReduce, ref.Subject) + fmt.Sprintf(reduceTpl,
		ref.Subject, ref.DocType, ref.Company, ref.PeriodEnd, ref.FiledDate,
		model.SchemaVersion, model.KPICount, model.SectionCount, model.SectionCount, model.SectionCount,
		layout.String(), data)
}
