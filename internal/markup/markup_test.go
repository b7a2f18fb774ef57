package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeRemovesScript(t *testing.T) {
	dirty := `<p>손해배상</p><script>alert(1)</script>`
	clean := Sanitize(dirty)

	assert.Contains(t, clean, "<p>손해배상</p>")
	assert.NotContains(t, clean, "<script>")
	assert.NotContains(t, clean, "alert(1)")
}

func TestSanitizeKeepsTrackingAttributes(t *testing.T) {
	in := `<p>전문 <mark class="tracked-insert" data-change-id="c1">추가</mark></p>`
	out := Sanitize(in)

	assert.Contains(t, out, `data-change-id="c1"`)
	assert.Contains(t, out, `class="tracked-insert"`)
}

func TestSanitizeDropsEventHandlers(t *testing.T) {
	in := `<p onclick="steal()">본문</p><span data-comment-id="x" onmouseover="x()">인용</span>`
	out := Sanitize(in)

	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "onmouseover")
	assert.Contains(t, out, `data-comment-id="x"`)
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "갑은 을에게 손해배상", StripTags("<p>갑은 <b>을에게</b> 손해배상</p>"))
	assert.Equal(t, "a & b", StripTags("<p>a &amp; b</p>"))
	assert.Equal(t, "", StripTags("<p><br></p>"))
}

func TestAnnotateWrapsRange(t *testing.T) {
	content := "<p>갑은 을에게 손해배상을 청구한다</p>"
	// 태그 제거 본문: "갑은 을에게 손해배상을 청구한다" — "손해배상"은 [7,11)
	out, err := Annotate(content, 7, 11, AttrCommentID, "cm-1", ClassComment)
	require.NoError(t, err)

	assert.Contains(t, out, `<mark class="comment-highlight" data-comment-id="cm-1">손해배상</mark>`)
	assert.Equal(t, "갑은 을에게 손해배상을 청구한다", StripTags(out))
}

func TestAnnotateCrossingBoundaryFails(t *testing.T) {
	content := "<p>갑은</p><p>을은</p>"
	// [1,4)는 첫 문단과 둘째 문단에 걸친다
	_, err := Annotate(content, 1, 4, AttrCommentID, "cm-1", ClassComment)
	assert.ErrorIs(t, err, ErrCrossesBoundary)
}

func TestAnnotateOutOfRange(t *testing.T) {
	content := "<p>짧은 글</p>"

	_, err := Annotate(content, 2, 100, AttrCommentID, "cm-1", ClassComment)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = Annotate(content, 3, 3, AttrCommentID, "cm-1", ClassComment)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = Annotate(content, -1, 2, AttrCommentID, "cm-1", ClassComment)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestAnnotateEntityCountsAsOneChar(t *testing.T) {
	content := "<p>a &amp; b</p>"
	// 본문 "a & b" — "&"는 [2,3)
	out, err := Annotate(content, 2, 3, AttrCommentID, "cm-1", ClassComment)
	require.NoError(t, err)
	assert.Contains(t, out, `>&amp;</mark>`)
}

func TestReplaceRangeFallback(t *testing.T) {
	content := "<p>갑은</p><p>을은</p>"
	span := WrapTagged("은을은", AttrCommentID, "cm-2", ClassComment)

	out, err := ReplaceRange(content, 1, 4, span)
	require.NoError(t, err)
	assert.Contains(t, out, `data-comment-id="cm-2"`)
	// 원래 걸쳐 있던 닫는/여는 태그는 버려진다
	assert.Equal(t, "갑은을은", StripTags(out))
}

func TestExtractText(t *testing.T) {
	content := "<p>갑은 <b>을에게</b> 청구한다</p>"
	got, err := ExtractText(content, 3, 6)
	require.NoError(t, err)
	assert.Equal(t, "을에게", got)
}

func TestWrapTaggedEscapes(t *testing.T) {
	out := WrapTagged(`<img src=x onerror=y>`, AttrCommentID, "cm-3", ClassComment)
	assert.NotContains(t, out, "<img")
	assert.Contains(t, out, "&lt;img")
}

func TestSetSpanClass(t *testing.T) {
	content := `<p><mark class="comment-highlight" data-comment-id="cm-1">인용</mark> 외 ` +
		`<mark class="comment-highlight" data-comment-id="cm-2">다른 인용</mark></p>`

	on := SetSpanClass(content, AttrCommentID, "cm-1", ClassResolved, true)
	assert.Contains(t, on, `class="comment-highlight resolved" data-comment-id="cm-1"`)
	// 다른 comment id는 건드리지 않는다
	assert.Contains(t, on, `class="comment-highlight" data-comment-id="cm-2"`)

	// 같은 값으로 다시 적용해도 변화 없음
	again := SetSpanClass(on, AttrCommentID, "cm-1", ClassResolved, true)
	assert.Equal(t, on, again)

	off := SetSpanClass(on, AttrCommentID, "cm-1", ClassResolved, false)
	assert.Equal(t, content, off)
}

func TestSetSpanClassMultipleNodes(t *testing.T) {
	content := `<mark class="c" data-comment-id="cm-1">하나</mark><p>중간</p>` +
		`<mark class="c" data-comment-id="cm-1">둘</mark>`

	out := SetSpanClass(content, AttrCommentID, "cm-1", ClassResolved, true)
	assert.Equal(t, 2, strings.Count(out, ClassResolved))
}

func TestTextLength(t *testing.T) {
	assert.Equal(t, 5, TextLength("<p>a &amp; b</p>"))
	assert.Equal(t, 0, TextLength("<p></p>"))
}
