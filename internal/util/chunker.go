package util

import "strings"

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 150

	DefaultChunkWords   = 500
	DefaultOverlapWords = 50
)

const (
	ChunkUnitChars = "chars"
	ChunkUnitWords = "words"
)

// ChunkOptions sizes are runes for ChunkUnitChars and words for
// ChunkUnitWords. An empty Unit means chars.
type ChunkOptions struct {
	ChunkSize int
	Overlap   int
	Unit      string
}

func Chunk(text string, opts ChunkOptions) []string {
	if opts.Unit == ChunkUnitWords {
		return ChunkWords(text, opts.ChunkSize, opts.Overlap)
	}
	return ChunkText(text, opts)
}

// ChunkText splits text into overlapping character windows. A window that
// would end mid-text is pulled back to the last newline or ". " when that
// break lies past the window's midpoint.
func ChunkText(text string, opts ChunkOptions) []string {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	overlap := opts.Overlap
	overlap = clampOverlap(overlap, chunkSize)

	normalized := strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if normalized == "" {
		return nil
	}
	runes := []rune(normalized)
	n := len(runes)

	out := make([]string, 0, n/(chunkSize-overlap)+1)
	start := 0
	for start < n {
		end := start + chunkSize
		if end > n {
			end = n
		}
		if end < n {
			if breakAt := lastBreak(runes[start:end]); breakAt > chunkSize/2 {
				end = start + breakAt + 1
			}
		}

		part := strings.TrimSpace(string(runes[start:end]))
		if part != "" {
			out = append(out, part)
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
		if end >= n {
			break
		}
	}
	return out
}

// clampOverlap keeps at least one unit of progress per window.
func clampOverlap(overlap, chunkSize int) int {
	if overlap < 0 {
		return 0
	}
	return min(overlap, chunkSize-1)
}

// lastBreak returns the index of the last newline or sentence end (". ")
// in slice, or -1.
func lastBreak(slice []rune) int {
	for i := len(slice) - 1; i >= 0; i-- {
		if slice[i] == '\n' {
			return i
		}
		if slice[i] == '.' && i+1 < len(slice) && slice[i+1] == ' ' {
			return i
		}
	}
	return -1
}

// ChunkWords is the word-count variant: windows of chunkSize words that
// advance by chunkSize-overlap words.
func ChunkWords(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkWords
	}
	overlap = clampOverlap(overlap, chunkSize)
	words := strings.Fields(text)
	out := make([]string, 0)
	for start := 0; start < len(words); start += chunkSize - overlap {
		end := start + chunkSize
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return out
}
