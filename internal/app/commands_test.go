package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"reviews_api/internal/app"
	"reviews_api/internal/domain"
	"reviews_api/internal/storage/memory"
)

type fakeSource struct {
	pages map[string][][]map[string]any // collection -> pages (1-based)
	err   error
}

func (f *fakeSource) ListCollection(ctx context.Context, collection string, page int) ([]map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	ps := f.pages[collection]
	if page < 1 || page > len(ps) {
		return nil, nil
	}
	return ps[page-1], nil
}

const (
	aspectID = "0f4b3c1e-8a55-4d0a-9a0e-3a7c1d2e9b01"
	reviewID = "e2984465-190a-4562-829e-a8cca81aa35d"
)

func TestImportPage_AspectsReviewsLikes(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{pages: map[string][][]map[string]any{
		app.CollectionAspects: {{
			{"id": aspectID, "organization": "org-1", "name": "colour", "bestRating": 5.0, "worstRating": 1.0},
		}},
		app.CollectionReviews: {{
			{
				"@id":          "/reviews/" + reviewID,
				"review":       "Best drink ever!",
				"organisation": "org-1",
				"resource":     "R1",
				"author":       "A",
				"ratings": []any{
					map[string]any{"ratingValue": 4.0, "reviewAspect": "/aspects/" + aspectID},
					map[string]any{"ratingValue": "5", "ratingExplanation": "nice"},
				},
			},
			// out of bounds for the aspect -> skipped
			{
				"review":       "too good",
				"organization": "org-1",
				"ratings":      []any{map[string]any{"ratingValue": 9.0, "reviewAspect": map[string]any{"id": aspectID}}},
			},
			// no organization -> skipped
			{"review": "orphan"},
		}},
		app.CollectionLikes: {{
			{"organization": "org-1", "resource": "R1", "author": "A"},
		}},
	}}
	store := memory.New()
	ing := app.NewImportService(src, store)

	for _, c := range app.ImportOrder {
		if _, err := ing.ImportPage(ctx, c, 1); err != nil {
			t.Fatalf("ImportPage(%s): %v", c, err)
		}
	}

	res, err := ing.ImportPage(ctx, app.CollectionReviews, 1)
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if res.Fetched != 3 || res.Imported != 1 || res.Skipped != 2 {
		t.Fatalf("unexpected page result: %+v", res)
	}

	n, _ := store.CountReviews(ctx, domain.Scope{Organization: "org-1"})
	if n != 1 {
		t.Fatalf("reviews = %d; want 1 (re-import must upsert)", n)
	}
	totals := app.NewTotalsService(store)
	total, err := totals.Calculate(ctx, domain.Scope{Organization: "org-1", Resource: "R1", Author: "A"})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if total.Rating != 4.5 || total.Likes != 1 || !total.Liked {
		t.Fatalf("unexpected total: %+v", total)
	}
}

func TestImportPage_EndOfCollection(t *testing.T) {
	ing := app.NewImportService(&fakeSource{}, memory.New())
	res, err := ing.ImportPage(context.Background(), app.CollectionLikes, 7)
	if err != nil || res.Fetched != 0 {
		t.Fatalf("ImportPage past end = %+v, %v", res, err)
	}
}

func TestImportPage_MissesAndErrors(t *testing.T) {
	ctx := context.Background()

	store := memory.New()
	ing := app.NewImportService(&fakeSource{err: fmt.Errorf("get: %w", domain.ErrNotFound)}, store)
	if _, err := ing.ImportPage(ctx, app.CollectionReviews, 3); err != nil {
		t.Fatalf("404 must not fail: %v", err)
	}
	ing = app.NewImportService(&fakeSource{err: domain.ErrForbidden}, store)
	if _, err := ing.ImportPage(ctx, app.CollectionLikes, 1); err != nil {
		t.Fatalf("403 must not fail: %v", err)
	}
	misses := store.Misses()
	if len(misses) != 2 || misses[0].Status != 404 || misses[1].Status != 403 {
		t.Fatalf("unexpected misses: %+v", misses)
	}

	boom := errors.New("remote 502")
	ing = app.NewImportService(&fakeSource{err: boom}, store)
	if _, err := ing.ImportPage(ctx, app.CollectionAspects, 1); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}
