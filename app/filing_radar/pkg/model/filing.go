package model

// FilingRef 已解析的文件引用，由外部元数据服务创建，流水线只读
type FilingRef struct {
	Subject   string `json:"subject"`
	FilingKey string `json:"filing_key"`
	DocType   string `json:"doc_type"`
	PeriodEnd string `json:"period_end"` // YYYY-MM-DD
	FiledDate string `json:"filed_date"` // YYYY-MM-DD
	SourceURL string `json:"source_url"`
	Company   string `json:"company,omitempty"`
}

// FilingTextArtifact 文件的文本产物，原始 HTML 用完即弃
type FilingTextArtifact struct {
	CleanText    string   `json:"-"`
	RelevantText string   `json:"relevant_text"`
	Chunks       []string `json:"chunks"`
	// Topics 命中的主题分组，按文档顺序
	Topics []string `json:"topics,omitempty"`
}
