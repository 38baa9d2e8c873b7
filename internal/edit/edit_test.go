package edit

import (
	"strings"
	"testing"
)

func TestParseSingleBlock(t *testing.T) {
	response := "Here is the fix:\n```edit\n[3-5]\n<div>\n  <p>new</p>\n</div>\n```\nDone."
	result := Parse(response)
	if result.FullRewriteRequested {
		t.Fatal("unexpected full rewrite flag")
	}
	if len(result.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(result.Blocks))
	}
	b := result.Blocks[0]
	if b.StartLine != 3 || b.EndLine != 5 {
		t.Fatalf("expected range [3-5], got [%d-%d]", b.StartLine, b.EndLine)
	}
	if b.Replacement != "<div>\n  <p>new</p>\n</div>" {
		t.Fatalf("unexpected replacement: %q", b.Replacement)
	}
}

func TestParseMultipleBlocks(t *testing.T) {
	response := "```edit\n[1-1]\nfirst\n[10-12]\nsecond\n[4-4]\nthird\n```"
	result := Parse(response)
	if len(result.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(result.Blocks))
	}
	if result.Blocks[1].StartLine != 10 || result.Blocks[1].EndLine != 12 {
		t.Fatalf("unexpected second block range [%d-%d]", result.Blocks[1].StartLine, result.Blocks[1].EndLine)
	}
	if result.Blocks[2].Replacement != "third" {
		t.Fatalf("unexpected third replacement: %q", result.Blocks[2].Replacement)
	}
}

func TestParseNoChanges(t *testing.T) {
	for _, response := range []string{
		"No changes needed, the page already matches the request.",
		"NO_CHANGES",
		"There is nothing to change here.",
	} {
		result := Parse(response)
		if len(result.Blocks) != 0 {
			t.Fatalf("expected no blocks for %q, got %d", response, len(result.Blocks))
		}
	}
}

func TestParseFullRewriteFlag(t *testing.T) {
	result := Parse("FULL_REWRITE\n```edit\n[1-2]\nreplaced\n```")
	if !result.FullRewriteRequested {
		t.Fatal("expected full rewrite flag")
	}
}

func TestParseWithoutFence(t *testing.T) {
	result := Parse("I would change lines [3-5] to something else.")
	if len(result.Blocks) != 0 {
		t.Fatalf("expected no blocks without a fence, got %d", len(result.Blocks))
	}
}

func doc(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = "line" + string(rune('a'+i))
	}
	return strings.Join(lines, "\n")
}

func TestApplySingleBlock(t *testing.T) {
	document := "one\ntwo\nthree\nfour"
	out, applied := Apply(document, []Block{{StartLine: 2, EndLine: 3, Replacement: "TWO\nTHREE"}})
	if applied != 1 {
		t.Fatalf("expected 1 applied, got %d", applied)
	}
	if out != "one\nTWO\nTHREE\nfour" {
		t.Fatalf("unexpected result: %q", out)
	}
}

func TestApplyDeletion(t *testing.T) {
	document := "one\ntwo\nthree"
	out, applied := Apply(document, []Block{{StartLine: 2, EndLine: 2, Replacement: ""}})
	if applied != 1 {
		t.Fatalf("expected 1 applied, got %d", applied)
	}
	if out != "one\nthree" {
		t.Fatalf("unexpected result: %q", out)
	}
}

func TestApplyPreservesLaterLineNumbers(t *testing.T) {
	// The first block grows the document by two lines. The second block's
	// range must still resolve against the original numbering.
	document := "a\nb\nc\nd\ne"
	blocks := []Block{
		{StartLine: 1, EndLine: 1, Replacement: "a1\na2\na3"},
		{StartLine: 4, EndLine: 4, Replacement: "D"},
	}
	out, applied := Apply(document, blocks)
	if applied != 2 {
		t.Fatalf("expected 2 applied, got %d", applied)
	}
	if out != "a1\na2\na3\nb\nc\nD\ne" {
		t.Fatalf("unexpected result: %q", out)
	}
}

func TestApplyCapsBlockCount(t *testing.T) {
	document := doc(10)
	blocks := make([]Block, 0, 7)
	for i := 1; i <= 7; i++ {
		blocks = append(blocks, Block{StartLine: i, EndLine: i, Replacement: "x"})
	}
	_, applied := Apply(document, blocks)
	if applied != MaxBlocksPerPass {
		t.Fatalf("expected %d applied, got %d", MaxBlocksPerPass, applied)
	}
}

func TestApplyDropsInvalidBlocks(t *testing.T) {
	document := "a\nb\nc"
	blocks := []Block{
		{StartLine: 0, EndLine: 1, Replacement: "bad"},  // start below 1
		{StartLine: 9, EndLine: 10, Replacement: "bad"}, // start past the end
		{StartLine: 3, EndLine: 2, Replacement: "bad"},  // inverted range
		{StartLine: 2, EndLine: 2, Replacement: "B"},
	}
	out, applied := Apply(document, blocks)
	if applied != 1 {
		t.Fatalf("expected 1 applied, got %d", applied)
	}
	if out != "a\nB\nc" {
		t.Fatalf("unexpected result: %q", out)
	}
}

func TestApplyDropsOverlappingBlocks(t *testing.T) {
	document := "a\nb\nc\nd"
	blocks := []Block{
		{StartLine: 1, EndLine: 3, Replacement: "X"},
		{StartLine: 2, EndLine: 4, Replacement: "Y"},
	}
	out, applied := Apply(document, blocks)
	if applied != 1 {
		t.Fatalf("expected 1 applied, got %d", applied)
	}
	if out != "X\nd" {
		t.Fatalf("unexpected result: %q", out)
	}
}

func TestApplyClampsEndLine(t *testing.T) {
	document := "a\nb\nc"
	out, applied := Apply(document, []Block{{StartLine: 2, EndLine: 99, Replacement: "tail"}})
	if applied != 1 {
		t.Fatalf("expected 1 applied, got %d", applied)
	}
	if out != "a\ntail" {
		t.Fatalf("unexpected result: %q", out)
	}
}

func TestApplyNoBlocks(t *testing.T) {
	document := "unchanged"
	out, applied := Apply(document, nil)
	if applied != 0 || out != document {
		t.Fatalf("expected document untouched, got %q (%d applied)", out, applied)
	}
}

func TestNumberLines(t *testing.T) {
	got := NumberLines("alpha\nbeta")
	want := "1: alpha\n2: beta\n"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestParseApplyRoundTrip(t *testing.T) {
	document := "<html>\n<body>\n<h1>Old title</h1>\n</body>\n</html>"
	response := "```edit\n[3-3]\n<h1>New title</h1>\n```"
	result := Parse(response)
	out, applied := Apply(document, result.Blocks)
	if applied != 1 {
		t.Fatalf("expected 1 applied, got %d", applied)
	}
	if !strings.Contains(out, "<h1>New title</h1>") || strings.Contains(out, "Old title") {
		t.Fatalf("unexpected result: %q", out)
	}
}
