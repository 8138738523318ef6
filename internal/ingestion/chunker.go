package ingestion

import (
	"strings"

	"github.com/jdkato/prose/v2"
)

// Chunk is the unit of retrieval: a bounded window of document text.
type Chunk struct {
	Text  string
	Index int
	Start int
}

// Chunker slides a fixed-size window over document text, advancing by
// size-overlap each step. Windows shorter than minLen after trimming are
// discarded, which also handles the final partial window.
type Chunker struct {
	size         int
	overlap      int
	minLen       int
	sentenceSnap bool
}

func NewChunker(size, overlap, minLen int, sentenceSnap bool) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 100
	}
	if minLen <= 0 {
		minLen = 50
	}
	return &Chunker{
		size:         size,
		overlap:      overlap,
		minLen:       minLen,
		sentenceSnap: sentenceSnap,
	}
}

func (c *Chunker) Chunk(text string) []Chunk {
	runes := []rune(text)
	if len(runes) < c.minLen {
		return nil
	}

	step := c.size - c.overlap
	var chunks []Chunk
	index := 0

	for start := 0; start < len(runes); start += step {
		end := start + c.size
		last := false
		if end >= len(runes) {
			end = len(runes)
			last = true
		}

		window := string(runes[start:end])
		if c.sentenceSnap && !last {
			window = snapToSentence(window)
		}
		window = strings.TrimSpace(window)

		if len([]rune(window)) >= c.minLen {
			chunks = append(chunks, Chunk{
				Text:  window,
				Index: index,
				Start: start,
			})
			index++
		}

		if last {
			break
		}
	}

	return chunks
}

// snapToSentence trims a window back to its last complete sentence so a
// chunk does not end mid-thought. The window start is left untouched; the
// sliding-window advance stays constant either way.
func snapToSentence(window string) string {
	doc, err := prose.NewDocument(window,
		prose.WithExtraction(false),
		prose.WithTagging(false),
	)
	if err != nil {
		return window
	}

	sentences := doc.Sentences()
	if len(sentences) < 2 {
		return window
	}

	last := sentences[len(sentences)-1].Text
	if strings.HasSuffix(strings.TrimSpace(window), strings.TrimSpace(last)) &&
		!endsSentence(last) {
		cut := strings.LastIndex(window, last)
		if cut > 0 {
			return window[:cut]
		}
	}

	return window
}

func endsSentence(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
