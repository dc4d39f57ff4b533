package httpserver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	server "reviews_api/internal/adapters/http_server"
	"reviews_api/internal/app"
	"reviews_api/internal/domain"
	"reviews_api/internal/storage/memory"
)

func pstr(s string) *string { return &s }

type fixture struct {
	h        http.Handler
	reviewID uuid.UUID
	boundRt  uuid.UUID
	freeRt   uuid.UUID
	aspectID uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()

	aspect := domain.Aspect{ID: uuid.New(), Organization: "org-1", Name: "cleanliness", BestRating: 5, WorstRating: 1}
	if err := s.UpsertAspect(ctx, aspect); err != nil {
		t.Fatalf("seed aspect: %v", err)
	}
	rv := domain.Review{ID: uuid.New(), Review: "fine", Organization: "org-1", Resource: pstr("res-1"), Author: pstr("alice")}
	bound := domain.Rating{ID: uuid.New(), Value: 4, AspectID: &aspect.ID}
	free := domain.Rating{ID: uuid.New(), Value: 5}
	rv.AddRating(bound)
	rv.AddRating(free)
	if err := s.UpsertReview(ctx, rv); err != nil {
		t.Fatalf("seed review: %v", err)
	}
	if err := s.UpsertLike(ctx, domain.Like{ID: uuid.New(), Organization: "org-1", Resource: "res-1", Author: "alice"}); err != nil {
		t.Fatalf("seed like: %v", err)
	}

	srv := server.New(server.Options{})
	srv.MountHandlers(&server.Handlers{Totals: app.NewTotalsService(s), Q: app.NewQueryService(s), W: app.NewWriteService(s)})
	return fixture{h: srv.Mux(), reviewID: rv.ID, boundRt: bound.ID, freeRt: free.ID, aspectID: aspect.ID}
}

func (f fixture) get(t *testing.T, path, accept string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, path, nil)
	if accept != "" {
		r.Header.Set("Accept", accept)
	}
	w := httptest.NewRecorder()
	f.h.ServeHTTP(w, r)
	return w
}

func (f fixture) send(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.h.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestTotals_CompactJSON(t *testing.T) {
	f := newFixture(t)
	w := f.get(t, "/v1/totals?organization=org-1&resource=res-1&author=alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q", ct)
	}
	var body struct {
		Organization string  `json:"organization"`
		Resource     *string `json:"resource"`
		Author       *string `json:"author"`
		Reviews      int64   `json:"reviews"`
		Likes        int64   `json:"likes"`
		Liked        bool    `json:"liked"`
		Rating       float64 `json:"rating"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Organization != "org-1" || body.Resource == nil || *body.Resource != "res-1" {
		t.Fatalf("scope echo wrong: %+v", body)
	}
	if body.Reviews != 1 || body.Likes != 1 || !body.Liked || body.Rating != 4.5 {
		t.Fatalf("unexpected totals: %+v", body)
	}
}

func TestTotals_AbsentFiltersRenderNull(t *testing.T) {
	f := newFixture(t)
	w := f.get(t, "/v1/totals?organization=org-1", "")
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v, ok := m["resource"]; !ok || v != nil {
		t.Fatalf("resource = %v (present=%v); want null", v, ok)
	}
	if m["liked"] != false {
		t.Fatalf("liked without author = %v", m["liked"])
	}
}

// Scenario E: linked-data representation.
func TestTotals_JSONLD(t *testing.T) {
	f := newFixture(t)
	w := f.get(t, "/v1/totals?organization=org-1", "application/ld+json")
	if ct := w.Header().Get("Content-Type"); ct != "application/ld+json" {
		t.Fatalf("content-type = %q", ct)
	}
	var m map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if m["@type"] != "Total" || m["@id"] != "/v1/totals?organization=org-1" {
		t.Fatalf("ld body = %v", m)
	}
	if m["reviews"] != float64(1) {
		t.Fatalf("ld reviews = %v", m["reviews"])
	}
}

func TestTotals_HAL(t *testing.T) {
	f := newFixture(t)
	w := f.get(t, "/v1/totals?organization=org-1&resource=res-1", "application/hal+json")
	if ct := w.Header().Get("Content-Type"); ct != "application/hal+json" {
		t.Fatalf("content-type = %q", ct)
	}
	var m struct {
		Links map[string]map[string]string `json:"_links"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if m.Links["self"]["href"] != "/v1/totals?organization=org-1&resource=res-1" {
		t.Fatalf("links = %v", m.Links)
	}
}

func TestTotals_UnknownAcceptFallsBack(t *testing.T) {
	f := newFixture(t)
	w := f.get(t, "/v1/totals?organization=org-1", "text/csv")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("got %d %q", w.Code, w.Header().Get("Content-Type"))
	}
}

func TestTotals_MissingOrganization(t *testing.T) {
	f := newFixture(t)
	w := f.get(t, "/v1/totals?resource=res-1", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content-type = %q", ct)
	}
}

func TestTotals_NotModified(t *testing.T) {
	f := newFixture(t)
	first := f.get(t, "/v1/totals?organization=org-1", "")
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}
	r := httptest.NewRequest(http.MethodGet, "/v1/totals?organization=org-1", nil)
	r.Header.Set("If-None-Match", etag)
	w := httptest.NewRecorder()
	f.h.ServeHTTP(w, r)
	if w.Code != http.StatusNotModified {
		t.Fatalf("status = %d; want 304", w.Code)
	}
}

func TestGetReview(t *testing.T) {
	f := newFixture(t)
	w := f.get(t, "/v1/reviews/"+f.reviewID.String(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var body struct {
		AggregateRating float64 `json:"aggregateRating"`
		Ratings         []struct {
			Author *string `json:"author"`
		} `json:"ratings"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.AggregateRating != 4.5 || len(body.Ratings) != 2 {
		t.Fatalf("review body = %s", w.Body.String())
	}
	for _, rt := range body.Ratings {
		if rt.Author == nil || *rt.Author != "alice" {
			t.Fatalf("rating author not delegated: %s", w.Body.String())
		}
	}
}

func TestGetReview_Errors(t *testing.T) {
	f := newFixture(t)
	if w := f.get(t, "/v1/reviews/not-a-uuid", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", w.Code)
	}
	if w := f.get(t, "/v1/reviews/"+uuid.NewString(), ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown id status = %d", w.Code)
	}
}

func TestGetRating_DelegatedBounds(t *testing.T) {
	f := newFixture(t)

	var bound struct {
		Author       *string `json:"author"`
		BestRating   *int    `json:"bestRating"`
		WorstRating  *int    `json:"worstRating"`
		ReviewAspect *string `json:"reviewAspect"`
	}
	w := f.get(t, "/v1/ratings/"+f.boundRt.String(), "")
	_ = json.Unmarshal(w.Body.Bytes(), &bound)
	if bound.BestRating == nil || *bound.BestRating != 5 || bound.WorstRating == nil || *bound.WorstRating != 1 {
		t.Fatalf("bounds not delegated: %s", w.Body.String())
	}
	if bound.ReviewAspect == nil || *bound.ReviewAspect != "/v1/aspects/"+f.aspectID.String() {
		t.Fatalf("aspect IRI = %v", bound.ReviewAspect)
	}

	var m map[string]any
	w = f.get(t, "/v1/ratings/"+f.freeRt.String(), "")
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if m["bestRating"] != nil || m["worstRating"] != nil || m["author"] != "alice" {
		t.Fatalf("free rating = %v", m)
	}
}

func TestGetAspect(t *testing.T) {
	f := newFixture(t)
	w := f.get(t, "/v1/aspects/"+f.aspectID.String(), "application/ld+json")
	var m map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if m["@type"] != "Aspect" || m["name"] != "cleanliness" {
		t.Fatalf("aspect = %v", m)
	}
}

func TestListReviews(t *testing.T) {
	f := newFixture(t)
	w := f.get(t, "/v1/reviews?organization=org-1&author=alice", "")
	var body struct {
		TotalItems int `json:"totalItems"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if w.Code != http.StatusOK || body.TotalItems != 1 {
		t.Fatalf("list = %d %s", w.Code, w.Body.String())
	}

	// author filter is exact
	w = f.get(t, "/v1/reviews?author=ali", "")
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.TotalItems != 0 {
		t.Fatalf("partial author matched: %s", w.Body.String())
	}

	for _, bad := range []string{"0", "201", "x"} {
		if w := f.get(t, "/v1/reviews?limit="+bad, ""); w.Code != http.StatusBadRequest {
			t.Fatalf("limit=%s status = %d", bad, w.Code)
		}
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	if w := f.get(t, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("healthz = %d", w.Code)
	}
}

func TestReviewLifecycle(t *testing.T) {
	f := newFixture(t)
	w := f.send(t, http.MethodPost, "/v1/reviews", `{
		"review": "lovely", "organization": "org-1", "resource": "res-2", "author": "bob",
		"ratings": [{"ratingValue": 3, "reviewAspect": "/v1/aspects/`+f.aspectID.String()+`"}, {"ratingValue": 4}]
	}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	var created struct {
		ID              string  `json:"id"`
		AggregateRating float64 `json:"aggregateRating"`
		Ratings         []struct {
			BestRating *int `json:"bestRating"`
		} `json:"ratings"`
	}
	decode(t, w, &created)
	loc := w.Header().Get("Location")
	if loc != "/v1/reviews/"+created.ID || created.AggregateRating != 3.5 || len(created.Ratings) != 2 {
		t.Fatalf("created = %s (Location %q)", w.Body.String(), loc)
	}
	if g := f.get(t, loc, ""); g.Code != http.StatusOK {
		t.Fatalf("read back = %d", g.Code)
	}

	w = f.send(t, http.MethodPut, loc, `{"review": "meh", "organization": "org-1", "resource": "res-2", "ratings": [{"ratingValue": 2}]}`)
	var replaced struct {
		Review          string  `json:"review"`
		Author          *string `json:"author"`
		AggregateRating float64 `json:"aggregateRating"`
	}
	decode(t, w, &replaced)
	if w.Code != http.StatusOK || replaced.Review != "meh" || replaced.Author != nil || replaced.AggregateRating != 2 {
		t.Fatalf("replace = %d %s", w.Code, w.Body.String())
	}

	if w := f.send(t, http.MethodDelete, loc, ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := f.get(t, loc, ""); w.Code != http.StatusNotFound {
		t.Fatalf("after delete = %d", w.Code)
	}
	if w := f.send(t, http.MethodDelete, loc, ""); w.Code != http.StatusNotFound {
		t.Fatalf("second delete = %d", w.Code)
	}
}

func TestReviewWrites_Rejected(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name, method, path, body string
		want                     int
	}{
		{"out of bounds", http.MethodPost, "/v1/reviews", `{"organization":"org-1","ratings":[{"ratingValue":9,"reviewAspect":"` + f.aspectID.String() + `"}]}`, http.StatusBadRequest},
		{"non positive", http.MethodPost, "/v1/reviews", `{"organization":"org-1","ratings":[{"ratingValue":0}]}`, http.StatusBadRequest},
		{"unknown aspect", http.MethodPost, "/v1/reviews", `{"organization":"org-1","ratings":[{"ratingValue":2,"reviewAspect":"` + uuid.NewString() + `"}]}`, http.StatusBadRequest},
		{"no organization", http.MethodPost, "/v1/reviews", `{"review":"x"}`, http.StatusBadRequest},
		{"malformed", http.MethodPost, "/v1/reviews", `{"organization":`, http.StatusBadRequest},
		{"wrong type", http.MethodPost, "/v1/reviews", `{"organization":"org-1","ratings":[{"ratingValue":"high"}]}`, http.StatusBadRequest},
		{"unknown id", http.MethodPut, "/v1/reviews/" + uuid.NewString(), `{"organization":"org-1"}`, http.StatusNotFound},
		{"bad id", http.MethodPut, "/v1/reviews/nope", `{"organization":"org-1"}`, http.StatusBadRequest},
		{"too large", http.MethodPost, "/v1/reviews", `{"review":"` + strings.Repeat("x", 1<<20) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, c := range cases {
		w := f.send(t, c.method, c.path, c.body)
		if w.Code != c.want {
			t.Errorf("%s: status = %d; want %d (%s)", c.name, w.Code, c.want, w.Body.String())
			continue
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
			t.Errorf("%s: content-type = %q", c.name, ct)
		}
	}

	// nothing leaked into the totals
	var body struct {
		Reviews int64 `json:"reviews"`
	}
	decode(t, f.get(t, "/v1/totals?organization=org-1", ""), &body)
	if body.Reviews != 1 {
		t.Fatalf("reviews after rejected writes = %d", body.Reviews)
	}
}

func TestRatingLifecycle(t *testing.T) {
	f := newFixture(t)
	w := f.send(t, http.MethodPost, "/v1/ratings", `{"review": "/v1/reviews/`+f.reviewID.String()+`", "ratingValue": 3}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	var rt struct {
		ID     string  `json:"id"`
		Author *string `json:"author"`
	}
	decode(t, w, &rt)
	if rt.Author == nil || *rt.Author != "alice" {
		t.Fatalf("author not delegated: %s", w.Body.String())
	}

	var list struct {
		TotalItems int `json:"totalItems"`
	}
	decode(t, f.get(t, "/v1/ratings?review="+f.reviewID.String(), ""), &list)
	if list.TotalItems != 3 {
		t.Fatalf("ratings of review = %d", list.TotalItems)
	}
	decode(t, f.get(t, "/v1/ratings?reviewAspect=/v1/aspects/"+f.aspectID.String(), ""), &list)
	if list.TotalItems != 1 {
		t.Fatalf("ratings of aspect = %d", list.TotalItems)
	}
	if w := f.get(t, "/v1/ratings?review=bogus", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad filter = %d", w.Code)
	}

	path := "/v1/ratings/" + rt.ID
	w = f.send(t, http.MethodPut, path, `{"ratingValue": 5, "reviewAspect": "`+f.aspectID.String()+`"}`)
	var upd struct {
		RatingValue int  `json:"ratingValue"`
		BestRating  *int `json:"bestRating"`
	}
	decode(t, w, &upd)
	if w.Code != http.StatusOK || upd.RatingValue != 5 || upd.BestRating == nil || *upd.BestRating != 5 {
		t.Fatalf("replace = %d %s", w.Code, w.Body.String())
	}
	if w := f.send(t, http.MethodPut, path, `{"ratingValue": 6, "reviewAspect": "`+f.aspectID.String()+`"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("out of bounds replace = %d", w.Code)
	}

	if w := f.send(t, http.MethodDelete, path, ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	decode(t, f.get(t, "/v1/ratings?review="+f.reviewID.String(), ""), &list)
	if list.TotalItems != 2 {
		t.Fatalf("ratings after delete = %d", list.TotalItems)
	}
}

func TestAspectLifecycle(t *testing.T) {
	f := newFixture(t)
	w := f.send(t, http.MethodPost, "/v1/aspects", `{"organization": "org-1", "name": "comfort", "item": "room-1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	var a struct {
		ID          string `json:"id"`
		BestRating  int    `json:"bestRating"`
		WorstRating int    `json:"worstRating"`
	}
	decode(t, w, &a)
	if a.BestRating != 10 || a.WorstRating != 1 {
		t.Fatalf("defaults = %s", w.Body.String())
	}

	var list struct {
		TotalItems int `json:"totalItems"`
	}
	decode(t, f.get(t, "/v1/aspects?organization=org-1", ""), &list)
	if list.TotalItems != 2 {
		t.Fatalf("aspects = %d", list.TotalItems)
	}
	decode(t, f.get(t, "/v1/aspects?item=room-1", ""), &list)
	if list.TotalItems != 1 {
		t.Fatalf("aspects by item = %d", list.TotalItems)
	}

	if w := f.send(t, http.MethodPut, "/v1/aspects/"+a.ID, `{"organization": "org-1", "name": "comfort", "bestRating": 1, "worstRating": 3}`); w.Code != http.StatusBadRequest {
		t.Fatalf("inverted bounds = %d", w.Code)
	}

	// deleting an aspect removes the ratings tied to it
	if w := f.send(t, http.MethodDelete, "/v1/aspects/"+f.aspectID.String(), ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := f.get(t, "/v1/ratings/"+f.boundRt.String(), ""); w.Code != http.StatusNotFound {
		t.Fatalf("bound rating after aspect delete = %d", w.Code)
	}
}

func TestLikeLifecycle(t *testing.T) {
	f := newFixture(t)
	var list struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
		TotalItems int `json:"totalItems"`
	}
	decode(t, f.get(t, "/v1/likes?author=alice", ""), &list)
	if list.TotalItems != 1 {
		t.Fatalf("likes of alice = %d", list.TotalItems)
	}
	if w := f.get(t, "/v1/likes/"+list.Items[0].ID, ""); w.Code != http.StatusOK {
		t.Fatalf("get like = %d", w.Code)
	}

	w := f.send(t, http.MethodPost, "/v1/likes", `{"organization": "org-1", "resource": "res-1", "author": "bob"}`)
	if w.Code != http.StatusCreated || !strings.HasPrefix(w.Header().Get("Location"), "/v1/likes/") {
		t.Fatalf("create = %d %v", w.Code, w.Header())
	}
	loc := w.Header().Get("Location")

	var tot struct {
		Likes int64 `json:"likes"`
		Liked bool  `json:"liked"`
	}
	decode(t, f.get(t, "/v1/totals?organization=org-1&resource=res-1&author=bob", ""), &tot)
	if tot.Likes != 2 || !tot.Liked {
		t.Fatalf("totals after like = %+v", tot)
	}

	if w := f.send(t, http.MethodPost, "/v1/likes", `{"organization": "org-1", "resource": "res-1"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("like without author = %d", w.Code)
	}
	if w := f.send(t, http.MethodPut, loc, `{"organization": "org-1", "resource": "res-9", "author": "bob"}`); w.Code != http.StatusOK {
		t.Fatalf("replace = %d", w.Code)
	}
	if w := f.send(t, http.MethodDelete, loc, ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := f.send(t, http.MethodPut, loc, `{"organization": "o", "resource": "r", "author": "a"}`); w.Code != http.StatusNotFound {
		t.Fatalf("replace deleted = %d", w.Code)
	}
}
