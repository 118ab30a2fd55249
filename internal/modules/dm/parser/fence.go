package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	fenceMarker = "```"
	fenceTag    = "json"
)

// fence 一个 json 定界块在原文中的位置
type fence struct {
	start      int // 起始 ``` 的下标
	innerStart int // 语言标签之后
	innerEnd   int // 结束 ``` 的下标
	end        int // 结束 ``` 之后
}

func (f fence) inner(raw string) string {
	return strings.TrimSpace(raw[f.innerStart:f.innerEnd])
}

// scanFences 阶段一：按顺序找出所有闭合的 json 定界块。
// 非 json 的代码块整体跳过，避免把它的结束标记误认为开始标记；
// 没有结束标记的开始标记不算块。
func scanFences(raw string) []fence {
	var fences []fence
	pos := 0
	for pos < len(raw) {
		idx := strings.Index(raw[pos:], fenceMarker)
		if idx < 0 {
			break
		}
		open := pos + idx
		afterMarker := open + len(fenceMarker)

		tagEnd, isJSON := matchTag(raw, afterMarker)
		closeIdx := strings.Index(raw[afterMarker:], fenceMarker)
		if closeIdx < 0 {
			break
		}
		closeStart := afterMarker + closeIdx

		if isJSON && tagEnd <= closeStart {
			fences = append(fences, fence{
				start:      open,
				innerStart: tagEnd,
				innerEnd:   closeStart,
				end:        closeStart + len(fenceMarker),
			})
		}
		pos = closeStart + len(fenceMarker)
	}
	return fences
}

// matchTag 判断 ``` 之后是否是 json 标签（不区分大小写，后接空白或文本结尾）
func matchTag(raw string, at int) (int, bool) {
	end := at + len(fenceTag)
	if end > len(raw) || !strings.EqualFold(raw[at:end], fenceTag) {
		return at, false
	}
	if end == len(raw) {
		return end, true
	}
	r, _ := utf8.DecodeRuneInString(raw[end:])
	return end, unicode.IsSpace(r)
}

// removeSpans 删除给定区间（已按起点排序且互不重叠）
func removeSpans(raw string, spans [][2]int) string {
	var b strings.Builder
	b.Grow(len(raw))
	last := 0
	for _, s := range spans {
		b.WriteString(raw[last:s[0]])
		last = s[1]
	}
	b.WriteString(raw[last:])
	return b.String()
}

// shiftSpans 区间整体前移 offset
func shiftSpans(spans [][2]int, offset int) [][2]int {
	out := make([][2]int, len(spans))
	for i, s := range spans {
		out[i] = [2]int{s[0] - offset, s[1] - offset}
	}
	return out
}
