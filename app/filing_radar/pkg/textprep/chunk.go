package textprep

// Chunk 以固定窗口和重叠切分文本，每块长度不超过 size（按 rune 计），相邻块首尾相接无缺口
func Chunk(text string, size, overlap int) []string {
	if text == "" || size <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	r := []rune(text)
	step := size - overlap
	var chunks []string
	for start := 0; ; start += step {
		end := start + size
		if end > len(r) {
			end = len(r)
		}
		chunks = append(chunks, string(r[start:end]))
		if end == len(r) {
			break
		}
	}
	return chunks
}
