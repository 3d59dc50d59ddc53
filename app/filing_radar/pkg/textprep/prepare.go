package textprep

import "github.com/iWorld-y/filing_radar/app/filing_radar/pkg/model"

// Options 文本准备参数
type Options struct {
	ParserThreshold  int
	WindowLines      int
	MaxRelevantChars int
	ChunkSize        int
	ChunkOverlap     int
}

// Prepare 把原始文件转换为文本产物；相同输入总是得到相同输出，不返回错误
func Prepare(raw []byte, markup bool, opts Options) *model.FilingTextArtifact {
	var clean string
	if markup {
		clean = HTMLToText(raw, opts.ParserThreshold)
	} else {
		clean = Normalize(string(raw))
	}

	relevant, topics := SelectRelevant(clean, opts.WindowLines, opts.MaxRelevantChars)
	return &model.FilingTextArtifact{
		CleanText:    clean,
		RelevantText: relevant,
		Chunks:       Chunk(relevant, opts.ChunkSize, opts.ChunkOverlap),
		Topics:       topics,
	}
}
