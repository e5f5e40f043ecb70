package extractor

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/docqa-backend/internal/domain"
)

func pageOfWords(n int) string {
	ws := make([]string, n)
	for i := range ws {
		ws[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(ws, " ")
}

func TestAreaFromPageTextLargeAreaReturnsWholePage(t *testing.T) {
	text := "the whole\npage text"
	got := AreaFromPageText(text, domain.Coordinates{Width: 595, Height: 842})
	require.Equal(t, text, got)
}

func TestAreaFromPageTextSmallAreaWindow(t *testing.T) {
	text := pageOfWords(1000)
	// ratio = 100*100/(595*842) ~= 0.01996 -> 1000*0.01996*2 = 39 words.
	got := strings.Fields(AreaFromPageText(text, domain.Coordinates{X: 0, Y: 421, Width: 100, Height: 100}))
	require.Len(t, got, 39)
	require.Equal(t, "w500", got[0])
}

func TestAreaFromPageTextMinimumWords(t *testing.T) {
	text := pageOfWords(50)
	got := strings.Fields(AreaFromPageText(text, domain.Coordinates{Y: 0, Width: 10, Height: 10}))
	require.Len(t, got, 10)
	require.Equal(t, "w0", got[0])
}

func TestAreaFromPageTextClampsAtPageEnd(t *testing.T) {
	text := pageOfWords(20)
	got := strings.Fields(AreaFromPageText(text, domain.Coordinates{Y: 842, Width: 10, Height: 10}))
	require.Empty(t, got)
	got = strings.Fields(AreaFromPageText(text, domain.Coordinates{Y: 800, Width: 10, Height: 10}))
	require.Equal(t, []string{"w19"}, got)
}

func TestExtractRejectsNonPDF(t *testing.T) {
	_, err := New().Extract([]byte("hello world"))
	require.True(t, errors.Is(err, ErrNotPDF))
	_, err = New().AreaText(nil, 1, domain.Coordinates{})
	require.True(t, errors.Is(err, ErrNotPDF))
}

func TestCleanText(t *testing.T) {
	require.Equal(t, "", cleanText(""))
	require.Equal(t, "plain text", cleanText("plain text"))
	require.Equal(t, "ab", cleanText("a\x00b"))
	require.Equal(t, "a b", cleanText("a\xffb"))
	require.True(t, isPDFHeader([]byte("%PDF-1.7")))
	require.False(t, isPDFHeader([]byte("%PD")))
}
