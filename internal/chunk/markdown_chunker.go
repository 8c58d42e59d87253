// Package chunk splits a markdown document into retrievable chunks for
// memory ingestion. It is the only chunker the service carries: the
// memory corpus is prose facts, not source files, so the tree-sitter
// based code chunking the teacher used has no home here.
package chunk

import (
	"fmt"
	"regexp"
	"strings"
)

var headerPattern = regexp.MustCompile(`^#{1,4}\s+.+$`)

var blankLineSplit = regexp.MustCompile(`\n\s*\n+`)

type token struct {
	isHeader bool
	text     string
}

// Split breaks content into chunks. source names the document the content
// came from; each chunk's Source is source suffixed with ":chunk_<index>".
// maxChunkSize and overlap fall back to DefaultMaxChunkSize/DefaultOverlap
// when non-positive.
func Split(content, source string, maxChunkSize, overlap int) []Chunk {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if overlap <= 0 {
		overlap = DefaultOverlap
	}

	tokens := tokenize(content)

	var (
		chunks []Chunk
		buf    strings.Builder
		header string
		index  int
	)

	flush := func() {
		text := strings.TrimSpace(buf.String())
		buf.Reset()
		if len(text) < minChunkLen {
			return
		}
		full := text
		if header != "" {
			full = header + "\n\n" + text
		}
		chunks = append(chunks, Chunk{
			Source:     fmt.Sprintf("%s:chunk_%d", source, index),
			Text:       full,
			HeaderPath: header,
			Index:      index,
		})
		index++
		buf.WriteString(lastNChars(text, overlap))
	}

	for _, tok := range tokens {
		if tok.isHeader {
			if strings.TrimSpace(buf.String()) != "" {
				flush()
			}
			buf.Reset()
			header = tok.text
			continue
		}
		if len(tok.text) < minParagraphLen {
			continue
		}

		prospective := buf.Len()
		if prospective > 0 {
			prospective += 2
		}
		prospective += len(tok.text)

		if buf.Len() > 0 && prospective > maxChunkSize {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(tok.text)
	}
	if strings.TrimSpace(buf.String()) != "" {
		flush()
	}

	return chunks
}

// tokenize walks content line by line, turning ATX header lines into
// header tokens and everything else into blank-line-delimited paragraph
// tokens, in document order.
func tokenize(content string) []token {
	var (
		tokens    []token
		bodyLines []string
	)

	flushBody := func() {
		if len(bodyLines) == 0 {
			return
		}
		body := strings.Join(bodyLines, "\n")
		bodyLines = nil
		for _, para := range splitParagraphs(body) {
			tokens = append(tokens, token{text: para})
		}
	}

	for _, line := range strings.Split(content, "\n") {
		if headerPattern.MatchString(line) {
			flushBody()
			tokens = append(tokens, token{isHeader: true, text: strings.TrimSpace(line)})
			continue
		}
		bodyLines = append(bodyLines, line)
	}
	flushBody()

	return tokens
}

func splitParagraphs(body string) []string {
	var out []string
	for _, p := range blankLineSplit.Split(body, -1) {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func lastNChars(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
