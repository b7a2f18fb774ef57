// Package markup implements the draft document model: a sanitized HTML
// string annotated by wrapping [start,end) ranges of its tag-free text in
// tagged spans. 오프셋은 태그를 제거한 본문 기준이며, 엔티티는 한 글자로 센다.
package markup

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// 추적 표식에 쓰는 태그/속성
const (
	AttrChangeID  = "data-change-id"
	AttrCommentID = "data-comment-id"
	ClassInserted = "tracked-insert"
	ClassComment  = "comment-highlight"
	ClassResolved = "resolved"
)

var (
	ErrOutOfRange      = errors.New("markup: range out of bounds")
	ErrCrossesBoundary = errors.New("markup: range crosses element boundary")
	ErrMalformed       = errors.New("markup: malformed markup")
)

var (
	richPolicy   = newRichPolicy()
	strictPolicy = bluemonday.StrictPolicy()
)

// newRichPolicy 서면 편집기에서 허용하는 태그 집합
// 추적 표식(mark/span)의 data 속성과 class는 남긴다
func newRichPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "b", "i", "u", "s",
		"strong", "em", "ul", "ol", "li",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"blockquote", "pre", "code", "table", "thead", "tbody", "tr", "th", "td",
		"mark", "span", "ins", "del",
	)
	p.AllowAttrs("href", "title", "target").OnElements("a")
	p.AllowStandardURLs()
	p.AllowAttrs("class").OnElements("mark", "span", "ins", "del")
	p.AllowAttrs(AttrChangeID).OnElements("mark", "span", "ins", "del")
	p.AllowAttrs(AttrCommentID).OnElements("mark", "span")
	return p
}

// Sanitize 저장/전송 경계마다 호출되는 마크업 살균
func Sanitize(s string) string {
	return richPolicy.Sanitize(s)
}

// StripTags 태그를 모두 제거한 본문 텍스트를 돌려준다
func StripTags(s string) string {
	return html.UnescapeString(strictPolicy.Sanitize(s))
}

// EscapeText escapes plain text for safe re-insertion into markup
func EscapeText(s string) string {
	return html.EscapeString(s)
}

// TextLength returns the rune length of the stripped text
func TextLength(s string) int {
	return utf8.RuneCountInString(StripTags(s))
}

// WrapTagged builds a tagged span around escaped plain text
func WrapTagged(text, attr, id, class string) string {
	return fmt.Sprintf(`<mark class=%q %s=%q>%s</mark>`, class, attr, id, EscapeText(text))
}

// mapRange resolves a stripped-text [start,end) range to byte offsets in the
// markup. crossed가 true면 범위 안에 태그가 끼어 있어 바로 감쌀 수 없다.
func mapRange(content string, start, end int) (startByte, endByte int, crossed bool, err error) {
	if start < 0 || end <= start {
		return 0, 0, false, ErrOutOfRange
	}

	startByte, endByte = -1, -1
	pos, textPos := 0, 0

	for pos < len(content) && endByte == -1 {
		if content[pos] == '<' {
			close := strings.IndexByte(content[pos:], '>')
			if close < 0 {
				return 0, 0, false, ErrMalformed
			}
			if startByte != -1 {
				crossed = true
			}
			pos += close + 1
			continue
		}

		if startByte == -1 && textPos == start {
			startByte = pos
		}

		if content[pos] == '&' {
			// 엔티티는 한 글자로 취급
			if semi := strings.IndexByte(content[pos:min(pos+10, len(content))], ';'); semi > 0 {
				pos += semi + 1
			} else {
				pos++
			}
		} else {
			_, size := utf8.DecodeRuneInString(content[pos:])
			pos += size
		}
		textPos++

		if textPos == end && startByte != -1 {
			endByte = pos
		}
	}

	if startByte == -1 || endByte == -1 {
		return 0, 0, false, ErrOutOfRange
	}
	return startByte, endByte, crossed, nil
}

// Annotate wraps the [start,end) stripped-text range in a tagged span.
// 범위가 요소 경계를 가로지르면 ErrCrossesBoundary를 반환한다 (호출부가
// ReplaceRange 폴백을 쓴다).
func Annotate(content string, start, end int, attr, id, class string) (string, error) {
	startByte, endByte, crossed, err := mapRange(content, start, end)
	if err != nil {
		return content, err
	}
	if crossed {
		return content, ErrCrossesBoundary
	}

	open := fmt.Sprintf(`<mark class=%q %s=%q>`, class, attr, id)
	return content[:startByte] + open + content[startByte:endByte] + "</mark>" + content[endByte:], nil
}

// ReplaceRange replaces the [start,end) stripped-text range with replacement
// markup, dropping any tags the range crossed. Annotate의 폴백 경로.
func ReplaceRange(content string, start, end int, replacement string) (string, error) {
	startByte, endByte, _, err := mapRange(content, start, end)
	if err != nil {
		return content, err
	}
	return content[:startByte] + replacement + content[endByte:], nil
}

// InsertAt splices fragment into content at the stripped-text offset pos.
// pos가 본문 길이와 같으면 맨 끝에 덧붙인다.
func InsertAt(content string, pos int, fragment string) (string, error) {
	if pos < 0 {
		return content, ErrOutOfRange
	}

	bytePos := -1
	p, textPos := 0, 0
	for p < len(content) {
		if content[p] == '<' {
			close := strings.IndexByte(content[p:], '>')
			if close < 0 {
				return content, ErrMalformed
			}
			p += close + 1
			continue
		}
		if textPos == pos {
			bytePos = p
			break
		}
		if content[p] == '&' {
			if semi := strings.IndexByte(content[p:min(p+10, len(content))], ';'); semi > 0 {
				p += semi + 1
			} else {
				p++
			}
		} else {
			_, size := utf8.DecodeRuneInString(content[p:])
			p += size
		}
		textPos++
	}
	if bytePos == -1 {
		if textPos != pos {
			return content, ErrOutOfRange
		}
		bytePos = len(content)
	}
	return content[:bytePos] + fragment + content[bytePos:], nil
}

// ExtractText returns the stripped text of the [start,end) range
func ExtractText(content string, start, end int) (string, error) {
	startByte, endByte, _, err := mapRange(content, start, end)
	if err != nil {
		return "", err
	}
	return StripTags(content[startByte:endByte]), nil
}

// SetSpanClass adds or removes a class on every tag carrying attr=id.
// 같은 값으로 다시 호출해도 결과가 변하지 않는다 (idempotent).
func SetSpanClass(content, attr, id, class string, on bool) string {
	needle := fmt.Sprintf(`%s="%s"`, attr, id)

	var b strings.Builder
	pos := 0
	for pos < len(content) {
		lt := strings.IndexByte(content[pos:], '<')
		if lt < 0 {
			b.WriteString(content[pos:])
			break
		}
		lt += pos
		gt := strings.IndexByte(content[lt:], '>')
		if gt < 0 {
			b.WriteString(content[pos:])
			break
		}
		gt += lt

		tag := content[lt : gt+1]
		b.WriteString(content[pos:lt])
		if strings.Contains(tag, needle) {
			b.WriteString(rewriteTagClass(tag, class, on))
		} else {
			b.WriteString(tag)
		}
		pos = gt + 1
	}
	return b.String()
}

// rewriteTagClass rewrites the class attribute of a single tag
func rewriteTagClass(tag, class string, on bool) string {
	start := strings.Index(tag, `class="`)
	if start < 0 {
		if !on {
			return tag
		}
		// class 속성이 없으면 태그명 바로 뒤에 붙인다
		nameEnd := strings.IndexAny(tag, " >")
		if nameEnd < 0 {
			return tag
		}
		return tag[:nameEnd] + fmt.Sprintf(` class=%q`, class) + tag[nameEnd:]
	}

	valStart := start + len(`class="`)
	valEnd := strings.IndexByte(tag[valStart:], '"')
	if valEnd < 0 {
		return tag
	}
	valEnd += valStart

	classes := strings.Fields(tag[valStart:valEnd])
	out := classes[:0]
	found := false
	for _, c := range classes {
		if c == class {
			found = true
			if !on {
				continue
			}
		}
		out = append(out, c)
	}
	if on && !found {
		out = append(out, class)
	}
	return tag[:valStart] + strings.Join(out, " ") + tag[valEnd:]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
