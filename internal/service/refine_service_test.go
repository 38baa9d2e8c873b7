package service

import (
	"context"
	"strings"
	"testing"

	"app/internal/model"

	"github.com/rs/zerolog"
)

func newRefineFixture(html, response string) (*fakeProjects, *fakeLLM, RefineService) {
	projects := &fakeProjects{project: &model.Project{ID: "proj-1", UserID: "user-1", HTML: html}}
	llm := &fakeLLM{refineResponse: response}
	svc := NewRefineService(projects, nil, llm, "refine_queue", zerolog.Nop())
	return projects, llm, svc
}

func refineJob() model.RefineJob {
	return model.RefineJob{ProjectID: "proj-1", UserID: "user-1", Instruction: "change the title"}
}

func TestProcessJobAppliesBlocks(t *testing.T) {
	html := "<html>\n<h1>Old</h1>\n</html>"
	response := "```edit\n[2-2]\n<h1>New</h1>\n```"
	projects, llm, svc := newRefineFixture(html, response)

	if err := svc.ProcessJob(context.Background(), refineJob()); err != nil {
		t.Fatal(err)
	}
	if projects.savedHTML != "<html>\n<h1>New</h1>\n</html>" {
		t.Fatalf("unexpected refined html: %q", projects.savedHTML)
	}
	if !strings.Contains(llm.refineInput, "2: <h1>Old</h1>") {
		t.Fatalf("model should see numbered lines, got %q", llm.refineInput)
	}
}

func TestProcessJobNoChanges(t *testing.T) {
	projects, _, svc := newRefineFixture("<html/>", "No changes needed.")

	if err := svc.ProcessJob(context.Background(), refineJob()); err != nil {
		t.Fatal(err)
	}
	if projects.saveCalls != 0 {
		t.Fatal("a no-change response must not rewrite the document")
	}
}

func TestProcessJobRejectsFullRewrite(t *testing.T) {
	projects, _, svc := newRefineFixture("<html>\n<body>old</body>\n</html>", "FULL_REWRITE\n<html>completely new</html>")

	if err := svc.ProcessJob(context.Background(), refineJob()); err != nil {
		t.Fatal(err)
	}
	if projects.saveCalls != 0 {
		t.Fatal("a full rewrite without edit blocks must leave the document untouched")
	}
}

func TestProcessJobInapplicableBlocks(t *testing.T) {
	projects, _, svc := newRefineFixture("<html/>", "```edit\n[50-60]\nnope\n```")

	if err := svc.ProcessJob(context.Background(), refineJob()); err != nil {
		t.Fatal(err)
	}
	if projects.saveCalls != 0 {
		t.Fatal("out-of-range blocks must not rewrite the document")
	}
}

func TestProcessJobOwnershipMismatch(t *testing.T) {
	projects, _, svc := newRefineFixture("<html/>", "")
	projects.project.UserID = "someone-else"

	if err := svc.ProcessJob(context.Background(), refineJob()); err == nil {
		t.Fatal("expected an ownership error")
	}
	if projects.saveCalls != 0 {
		t.Fatal("a mismatched job must not touch the document")
	}
}

func TestProcessJobIsIdempotent(t *testing.T) {
	html := "a\nb\nc"
	response := "```edit\n[2-2]\nB\n```"
	projects, _, svc := newRefineFixture(html, response)

	if err := svc.ProcessJob(context.Background(), refineJob()); err != nil {
		t.Fatal(err)
	}
	first := projects.savedHTML

	// Replaying against the same snapshot produces the same result.
	projects.project.HTML = html
	if err := svc.ProcessJob(context.Background(), refineJob()); err != nil {
		t.Fatal(err)
	}
	if projects.savedHTML != first {
		t.Fatalf("replay diverged: %q vs %q", projects.savedHTML, first)
	}
}
