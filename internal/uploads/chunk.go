package uploads

import "strings"

// Chunk splits each page into chunks of at most size runes, consecutive
// chunks of a page sharing overlap runes. It returns the chunks and the
// 1-based page of each one. Blank pages produce no chunk.
func Chunk(pages []string, size, overlap int) ([]string, []int) {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	step := size - overlap

	var chunks []string
	var pageOf []int
	for p, page := range pages {
		runes := []rune(strings.Join(strings.Fields(page), " "))
		if len(runes) == 0 {
			continue
		}
		for start := 0; ; start += step {
			end := start + size
			if end > len(runes) {
				end = len(runes)
			}
			chunks = append(chunks, string(runes[start:end]))
			pageOf = append(pageOf, p+1)
			if end == len(runes) {
				break
			}
		}
	}
	return chunks, pageOf
}

// PageForChunk spreads chunks evenly over pageCount pages. It is used for
// sidecars that do not record the page of each chunk.
func PageForChunk(index, total, pageCount int) int {
	if pageCount <= 1 || total <= 0 {
		return 1
	}
	perPage := (total + pageCount - 1) / pageCount
	page := index/perPage + 1
	if page > pageCount {
		page = pageCount
	}
	return page
}
