package store_test

import (
	"errors"
	"testing"

	"github.com/oakheim/inkwell/internal/apperr"
	"github.com/oakheim/inkwell/internal/models"
	"github.com/oakheim/inkwell/internal/store"
	"github.com/oakheim/inkwell/internal/testutil"
)

func TestPageCreateAndGet(t *testing.T) {
	env := testutil.TestEnv(t)
	nb, _ := env.Notebooks.Create("a", nil)

	p, err := env.Pages.Create(store.PageCreate{
		NotebookID: nb.ID,
		Position:   models.Position{X: 10, Y: 20},
		Tags:       []string{"math"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Number != 1 {
		t.Errorf("number = %d, want 1", p.Number)
	}

	got, err := env.Pages.Get(p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.NotebookID != nb.ID || got.Position.X != 10 || len(got.Tags) != 1 {
		t.Errorf("got = %+v", got)
	}

	// Create wrote an empty stroke list too.
	strokes, err := env.Strokes.List(p.ID)
	if err != nil {
		t.Fatalf("List strokes: %v", err)
	}
	if len(strokes) != 0 {
		t.Errorf("strokes = %d, want 0", len(strokes))
	}
}

func TestPageCreate_UnknownNotebook(t *testing.T) {
	env := testutil.TestEnv(t)
	if _, err := env.Pages.Create(store.PageCreate{NotebookID: "nope"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPageList_SortedByNumber(t *testing.T) {
	env := testutil.TestEnv(t)
	nb, _ := env.Notebooks.Create("a", nil)
	for _i := 0; _i < 3; _i++ {
		if _, err := env.Pages.Create(store.PageCreate{NotebookID: nb.ID}); err != nil {
			t.Fatal(err)
		}
	}

	pages, err := env.Pages.List(nb.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("len = %d, want 3", len(pages))
	}
	for i, p := range pages {
		if p.Number != i+1 {
			t.Errorf("pages[%d].Number = %d, want %d", i, p.Number, i+1)
		}
	}
}

func TestPageUpdate(t *testing.T) {
	env := testutil.TestEnv(t)
	nb, _ := env.Notebooks.Create("a", nil)
	p, _ := env.Pages.Create(store.PageCreate{NotebookID: nb.ID})

	pos := models.Position{X: 5, Y: 7}
	got, err := env.Pages.Update(p.ID, store.PageUpdate{
		Position: &pos,
		Tags:     []string{"draft"},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Position != pos {
		t.Errorf("position = %+v", got.Position)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "draft" {
		t.Errorf("tags = %v", got.Tags)
	}
	if !got.UpdatedAt.After(p.UpdatedAt) {
		t.Error("UpdatedAt not bumped")
	}
}

func TestPageDelete_PrunesIndex(t *testing.T) {
	env := testutil.TestEnv(t)
	nb, _ := env.Notebooks.Create("a", nil)
	p, _ := env.Pages.Create(store.PageCreate{NotebookID: nb.ID})

	if err := env.Pages.Delete(p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := env.Pages.Get(p.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := env.Pages.Delete(p.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestPageDuplicate(t *testing.T) {
	env := testutil.TestEnv(t)
	nb, _ := env.Notebooks.Create("a", nil)
	p, _ := env.Pages.Create(store.PageCreate{NotebookID: nb.ID})
	_, _ = env.Strokes.Append(p.ID, models.Stroke{Points: []models.Point{{X: 1}}})
	_ = env.Pages.SetTranscription(p.ID, &models.Transcription{Status: models.TranscriptionComplete})

	dup, err := env.Pages.Duplicate(p.ID)
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	if dup.ID == p.ID {
		t.Error("duplicate kept original id")
	}
	if dup.Number != 2 {
		t.Errorf("number = %d, want 2", dup.Number)
	}
	if dup.Transcription != nil {
		t.Error("duplicate kept transcription status")
	}
	strokes, err := env.Strokes.List(dup.ID)
	if err != nil {
		t.Fatalf("List strokes: %v", err)
	}
	if len(strokes) != 1 {
		t.Errorf("strokes = %d, want 1", len(strokes))
	}
}

func TestPageMove_RenumbersContiguously(t *testing.T) {
	env := testutil.TestEnv(t)
	src, _ := env.Notebooks.Create("src", nil)
	dst, _ := env.Notebooks.Create("dst", nil)

	// Target already has 2 pages.
	for _i := 0; _i < 2; _i++ {
		if _, err := env.Pages.Create(store.PageCreate{NotebookID: dst.ID}); err != nil {
			t.Fatal(err)
		}
	}
	var ids []string
	for _i := 0; _i < 3; _i++ {
		p, err := env.Pages.Create(store.PageCreate{NotebookID: src.ID})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, p.ID)
	}

	moved, err := env.Pages.Move(ids, dst.ID)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	// Page numbers 3..5, contiguously, in call order.
	for i, p := range moved {
		if p.Number != 3+i {
			t.Errorf("moved[%d].Number = %d, want %d", i, p.Number, 3+i)
		}
		if p.NotebookID != dst.ID {
			t.Errorf("moved[%d] owned by %s", i, p.NotebookID)
		}
		got, err := env.Pages.Get(p.ID)
		if err != nil {
			t.Fatalf("Get after move: %v", err)
		}
		if got.NotebookID != dst.ID {
			t.Errorf("index stale for %s", p.ID)
		}
	}
	srcPages, _ := env.Pages.List(src.ID)
	if len(srcPages) != 0 {
		t.Errorf("source still has %d pages", len(srcPages))
	}
}

func TestPageMove_RejectsAlreadyResident(t *testing.T) {
	env := testutil.TestEnv(t)
	nb, _ := env.Notebooks.Create("a", nil)
	other, _ := env.Notebooks.Create("b", nil)
	p1, _ := env.Pages.Create(store.PageCreate{NotebookID: other.ID})
	p2, _ := env.Pages.Create(store.PageCreate{NotebookID: nb.ID})

	_, err := env.Pages.Move([]string{p1.ID, p2.ID}, nb.ID)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	// No partial commit: p1 must still live in its original notebook.
	got, err := env.Pages.Get(p1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.NotebookID != other.ID {
		t.Errorf("batch partially committed: p1 in %s", got.NotebookID)
	}
}

func TestPageMove_RejectsUnknownPage(t *testing.T) {
	env := testutil.TestEnv(t)
	nb, _ := env.Notebooks.Create("a", nil)
	if _, err := env.Pages.Move([]string{"nope"}, nb.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPageGet_StaleIndexEntryIsAbsent(t *testing.T) {
	env := testutil.TestEnv(t)
	nb, _ := env.Notebooks.Create("a", nil)
	p, _ := env.Pages.Create(store.PageCreate{NotebookID: nb.ID})

	// Simulate an interrupted delete: page directory gone, index entry left.
	if err := env.FS.RemoveAll("notebooks/" + nb.ID + "/pages/" + p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Pages.Get(p.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for dangling index entry", err)
	}
}
