// Package edit implements the conservative edit engine: it parses the
// line-range replacement blocks emitted by the refinement model and applies
// them surgically to a document. Full rewrites are rejected by policy and the
// number of blocks applied in one pass is hard-capped to bound blast radius.
package edit

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// MaxBlocksPerPass caps how many replacement blocks a single pass may apply.
// Excess blocks are dropped whole, never applied partially.
const MaxBlocksPerPass = 5

// Block is one line-range replacement against the original line numbering.
type Block struct {
	StartLine   int // 1-based, inclusive
	EndLine     int // 1-based, inclusive
	Replacement string
}

// ParseResult is the outcome of parsing one model response.
type ParseResult struct {
	Blocks               []Block
	FullRewriteRequested bool
}

var (
	fenceRe  = regexp.MustCompile("(?s)```edit\\s*\\n(.*?)```")
	headerRe = regexp.MustCompile(`^\[(\d+)-(\d+)\]\s*$`)

	noChangePhrases = []string{"no changes", "no_changes", "no edits needed", "nothing to change"}
)

// Parse extracts edit blocks from a model response. Responses without a
// fenced edit block, or containing a recognizable "no changes" phrase, yield
// zero blocks. A FULL_REWRITE marker sets FullRewriteRequested; Apply never
// honors it.
func Parse(response string) ParseResult {
	var result ParseResult

	if strings.Contains(response, "FULL_REWRITE") {
		result.FullRewriteRequested = true
	}

	lower := strings.ToLower(response)
	for _, phrase := range noChangePhrases {
		if strings.Contains(lower, phrase) {
			return result
		}
	}

	fence := fenceRe.FindStringSubmatch(response)
	if fence == nil {
		return result
	}

	lines := strings.Split(fence[1], "\n")
	var current *Block
	var body []string
	flush := func() {
		if current == nil {
			return
		}
		current.Replacement = strings.Join(body, "\n")
		result.Blocks = append(result.Blocks, *current)
		current = nil
		body = nil
	}
	for _, line := range lines {
		if m := headerRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			flush()
			start, _ := strconv.Atoi(m[1])
			end, _ := strconv.Atoi(m[2])
			current = &Block{StartLine: start, EndLine: end}
			continue
		}
		if current != nil {
			body = append(body, line)
		}
	}
	flush()

	// Trim a single trailing blank line left by the fence newline.
	for i := range result.Blocks {
		result.Blocks[i].Replacement = strings.TrimSuffix(result.Blocks[i].Replacement, "\n")
	}
	return result
}

// Apply performs the replacements against document and returns the edited
// document plus the number of blocks applied.
//
// All block boundaries are resolved against the pristine document first, then
// replacements run back-to-front (highest start line first) so earlier edits
// never shift the line numbers consumed by pending ones. Blocks beyond
// MaxBlocksPerPass, out-of-range blocks and overlapping blocks are dropped.
func Apply(document string, blocks []Block) (string, int) {
	if len(blocks) == 0 {
		return document, 0
	}

	lines := strings.Split(document, "\n")

	ordered := make([]Block, len(blocks))
	copy(ordered, blocks)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].StartLine < ordered[j].StartLine })

	valid := make([]Block, 0, len(ordered))
	prevEnd := 0
	for _, b := range ordered {
		if len(valid) == MaxBlocksPerPass {
			break
		}
		if b.StartLine < 1 || b.EndLine < b.StartLine || b.StartLine > len(lines) {
			continue
		}
		if b.StartLine <= prevEnd {
			continue
		}
		if b.EndLine > len(lines) {
			b.EndLine = len(lines)
		}
		valid = append(valid, b)
		prevEnd = b.EndLine
	}

	applied := len(valid)
	for i := applied - 1; i >= 0; i-- {
		b := valid[i]
		var replacement []string
		if b.Replacement != "" {
			replacement = strings.Split(b.Replacement, "\n")
		}
		rest := append(replacement, lines[b.EndLine:]...)
		lines = append(lines[:b.StartLine-1], rest...)
	}

	return strings.Join(lines, "\n"), applied
}

// NumberLines renders document with 1-based line numbers, the form shown to
// the refinement model so returned blocks reference the same numbering.
func NumberLines(document string) string {
	lines := strings.Split(document, "\n")
	var sb strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&sb, "%d: %s\n", i+1, line)
	}
	return sb.String()
}
