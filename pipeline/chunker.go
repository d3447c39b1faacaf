package pipeline

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MasterofGames77/game-ai-assistant/settings"
)

// ChunkDelay is the pause between consecutive chunk sends, respecting the
// platform's burst limits. Applied inside the sending user's serialized
// chain only; other users are unaffected.
const ChunkDelay = 1500 * time.Millisecond

// FormatResponse splits text into platform-sized messages and applies the
// channel's mention policy. Concatenating the returned chunks with their
// mention prefixes stripped reproduces text exactly.
func FormatResponse(text, displayName string, st settings.ChannelSettings) []string {
	prefix := mentionPrefix(displayName, st)

	budget := func(i int) int {
		b := st.MaxMessageLength
		if prefixed(i, st) {
			b -= utf8.RuneCountInString(prefix)
		}
		if b < 1 {
			b = st.MaxMessageLength // pathological config; skip the prefix instead
		}
		return b
	}

	chunks := splitChunks(text, budget)
	for i := range chunks {
		if prefixed(i, st) && budget(i) != st.MaxMessageLength {
			chunks[i] = prefix + chunks[i]
		}
	}
	return chunks
}

func mentionPrefix(displayName string, st settings.ChannelSettings) string {
	switch st.ResponseStyle {
	case settings.StyleMention, settings.StyleCompact:
		return "@" + displayName + " "
	default:
		return ""
	}
}

// prefixed reports whether chunk i carries the mention prefix under the
// channel's style.
func prefixed(i int, st settings.ChannelSettings) bool {
	switch st.ResponseStyle {
	case settings.StyleNoMention:
		return false
	case settings.StyleMention, settings.StyleCompact:
		return i == 0 || !st.MentionFirstOnly
	default:
		return false
	}
}

// splitChunks partitions text into pieces where piece i holds at most
// budget(i) runes. It prefers sentence boundaries, falls back to word
// boundaries inside an oversized sentence, and hard-splits an oversized
// word. The pieces concatenate back to the original text.
func splitChunks(text string, budget func(int) int) []string {
	if utf8.RuneCountInString(text) <= budget(0) {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}
	idx := func() int { return len(chunks) }

	appendSegment := func(seg string) {
		segLen := utf8.RuneCountInString(seg)
		if curLen+segLen <= budget(idx()) {
			cur.WriteString(seg)
			curLen += segLen
			return
		}
		flush()
		if segLen <= budget(idx()) {
			cur.WriteString(seg)
			curLen = segLen
			return
		}
		// Oversized segment: hard-split on rune boundaries.
		runes := []rune(seg)
		for len(runes) > 0 {
			space := budget(idx()) - curLen
			if space <= 0 {
				flush()
				space = budget(idx())
			}
			if space > len(runes) {
				space = len(runes)
			}
			cur.WriteString(string(runes[:space]))
			curLen += space
			runes = runes[space:]
		}
	}

	for _, sentence := range splitSentences(text) {
		segLen := utf8.RuneCountInString(sentence)
		// A sentence that fits the space left in this chunk, or a fresh next
		// chunk, stays whole; otherwise fall back to word boundaries.
		if segLen <= budget(idx())-curLen || segLen <= budget(idx()+1) {
			appendSegment(sentence)
			continue
		}
		for _, word := range splitWords(sentence) {
			appendSegment(word)
		}
	}
	flush()
	return chunks
}

// splitSentences cuts after runs of sentence-ending punctuation, keeping the
// punctuation and any following whitespace attached so concatenation is
// lossless.
func splitSentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		// Extend over the punctuation run and trailing whitespace.
		j := i
		for j+1 < len(runes) && (runes[j+1] == '.' || runes[j+1] == '!' || runes[j+1] == '?') {
			j++
		}
		for j+1 < len(runes) && (runes[j+1] == ' ' || runes[j+1] == '\n' || runes[j+1] == '\t') {
			j++
		}
		out = append(out, string(runes[start:j+1]))
		start = j + 1
		i = j
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

// splitWords cuts after runs of whitespace, keeping the whitespace attached
// to the preceding word.
func splitWords(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if runes[i] != ' ' && runes[i] != '\n' && runes[i] != '\t' {
			continue
		}
		j := i
		for j+1 < len(runes) && (runes[j+1] == ' ' || runes[j+1] == '\n' || runes[j+1] == '\t') {
			j++
		}
		out = append(out, string(runes[start:j+1]))
		start = j + 1
		i = j
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}
