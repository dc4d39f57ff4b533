package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"reviews_api/internal/adapters/observability"
	"reviews_api/internal/app"
	"reviews_api/internal/domain"
)

type Handlers struct {
	Totals *app.TotalsService
	Q      *app.QueryService
	W      *app.WriteService
}

// maxBodyBytes caps request bodies on write routes.
const maxBodyBytes = 1 << 20

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/totals", h.getTotals)

	s.mux.Get("/v1/reviews", h.listReviews)
	s.mux.Post("/v1/reviews", h.createReview)
	s.mux.Get("/v1/reviews/{id}", h.getReview)
	s.mux.Put("/v1/reviews/{id}", h.replaceReview)
	s.mux.Delete("/v1/reviews/{id}", h.deleteReview)

	s.mux.Get("/v1/ratings", h.listRatings)
	s.mux.Post("/v1/ratings", h.createRating)
	s.mux.Get("/v1/ratings/{id}", h.getRating)
	s.mux.Put("/v1/ratings/{id}", h.replaceRating)
	s.mux.Delete("/v1/ratings/{id}", h.deleteRating)

	s.mux.Get("/v1/aspects", h.listAspects)
	s.mux.Post("/v1/aspects", h.createAspect)
	s.mux.Get("/v1/aspects/{id}", h.getAspect)
	s.mux.Put("/v1/aspects/{id}", h.replaceAspect)
	s.mux.Delete("/v1/aspects/{id}", h.deleteAspect)

	s.mux.Get("/v1/likes", h.listLikes)
	s.mux.Post("/v1/likes", h.createLike)
	s.mux.Get("/v1/likes/{id}", h.getLike)
	s.mux.Put("/v1/likes/{id}", h.replaceLike)
	s.mux.Delete("/v1/likes/{id}", h.deleteLike)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidScope):
		writeProblem(w, http.StatusBadRequest, "Invalid scope", err.Error())
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidRating),
		errors.Is(err, domain.ErrRatingOutOfBounds):
		writeProblem(w, http.StatusBadRequest, "Invalid input", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "resource not found")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func idParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// limitParam reads ?limit, answering 400 when it is outside [1, MaxListLimit].
func limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	ls := r.URL.Query().Get("limit")
	if ls == "" {
		return app.DefaultListLimit, true
	}
	l, err := strconv.Atoi(ls)
	if err != nil || l <= 0 || l > app.MaxListLimit {
		writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
		return 0, false
	}
	return l, true
}

// refParam reads an optional reference filter given as a UUID or an IRI.
func refParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return uuid.Nil, true
	}
	id, ok := app.ParseID(v)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid filter", name+" must reference an existing resource by UUID or IRI")
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeProblem(w, http.StatusRequestEntityTooLarge, "Body too large", err.Error())
			return false
		}
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return false
	}
	return true
}

func created(w http.ResponseWriter, r *http.Request, res resource, body any) {
	w.Header().Set("Location", res.Self)
	render(w, r, http.StatusCreated, res, body)
}

func deleted(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- bodies ----

type totalBody struct {
	Organization string  `json:"organization"`
	Resource     *string `json:"resource"`
	Author       *string `json:"author"`
	Reviews      int64   `json:"reviews"`
	Likes        int64   `json:"likes"`
	Liked        bool    `json:"liked"`
	Rating       float64 `json:"rating"`
}

type reviewBody struct {
	ID              uuid.UUID    `json:"id"`
	Review          string       `json:"review"`
	Organization    string       `json:"organization"`
	Resource        *string      `json:"resource"`
	Author          *string      `json:"author"`
	Ratings         []ratingBody `json:"ratings"`
	AggregateRating float64      `json:"aggregateRating"`
	DateCreated     *time.Time   `json:"dateCreated,omitempty"`
	DateModified    *time.Time   `json:"dateModified,omitempty"`
}

type ratingBody struct {
	ID                uuid.UUID  `json:"id"`
	Review            string     `json:"review"`
	ReviewAspect      *string    `json:"reviewAspect"`
	Author            *string    `json:"author"`
	RatingValue       int        `json:"ratingValue"`
	RatingExplanation *string    `json:"ratingExplanation"`
	BestRating        *int       `json:"bestRating"`
	WorstRating       *int       `json:"worstRating"`
	DateCreated       *time.Time `json:"dateCreated,omitempty"`
	DateModified      *time.Time `json:"dateModified,omitempty"`
}

type aspectBody struct {
	ID           uuid.UUID  `json:"id"`
	Organization string     `json:"organization"`
	ItemType     *string    `json:"itemType"`
	Item         *string    `json:"item"`
	Name         string     `json:"name"`
	Description  *string    `json:"description"`
	BestRating   int        `json:"bestRating"`
	WorstRating  int        `json:"worstRating"`
	DateCreated  *time.Time `json:"dateCreated,omitempty"`
	DateModified *time.Time `json:"dateModified,omitempty"`
}

type likeBody struct {
	ID           uuid.UUID  `json:"id"`
	Organization string     `json:"organization"`
	Resource     string     `json:"resource"`
	Author       string     `json:"author"`
	DateCreated  *time.Time `json:"dateCreated,omitempty"`
	DateModified *time.Time `json:"dateModified,omitempty"`
}

type collectionBody[T any] struct {
	Items      []T `json:"items"`
	TotalItems int `json:"totalItems"`
}

func collection[T any](items []T) collectionBody[T] {
	return collectionBody[T]{Items: items, TotalItems: len(items)}
}

func toTotalBody(t domain.Total) totalBody {
	return totalBody{
		Organization: t.Organization,
		Resource:     t.Resource,
		Author:       t.Author,
		Reviews:      t.Reviews,
		Likes:        t.Likes,
		Liked:        t.Liked,
		Rating:       t.Rating,
	}
}

// toRatingBody resolves the delegated author and bounds. A rating that
// references an aspect it cannot resolve is an error, not a null.
func toRatingBody(rt domain.Rating) (ratingBody, error) {
	author, err := rt.Author()
	if err != nil {
		return ratingBody{}, err
	}
	b := ratingBody{
		ID:                rt.ID,
		Review:            "/v1/reviews/" + rt.ReviewID.String(),
		Author:            author,
		RatingValue:       rt.Value,
		RatingExplanation: rt.Explanation,
		DateCreated:       rt.DateCreated,
		DateModified:      rt.DateModified,
	}
	if rt.AspectID != nil {
		best, err := rt.BestRating()
		if err != nil {
			return ratingBody{}, err
		}
		worst, err := rt.WorstRating()
		if err != nil {
			return ratingBody{}, err
		}
		iri := "/v1/aspects/" + rt.AspectID.String()
		b.ReviewAspect, b.BestRating, b.WorstRating = &iri, &best, &worst
	}
	return b, nil
}

func toReviewBody(rv domain.Review) (reviewBody, error) {
	b := reviewBody{
		ID:              rv.ID,
		Review:          rv.Review,
		Organization:    rv.Organization,
		Resource:        rv.Resource,
		Author:          rv.Author,
		Ratings:         make([]ratingBody, 0, len(rv.Ratings)),
		AggregateRating: rv.AggregateRating(),
		DateCreated:     rv.DateCreated,
		DateModified:    rv.DateModified,
	}
	for _, rt := range rv.Ratings {
		rb, err := toRatingBody(rt)
		if err != nil {
			return reviewBody{}, err
		}
		b.Ratings = append(b.Ratings, rb)
	}
	return b, nil
}

func toAspectBody(a domain.Aspect) aspectBody {
	return aspectBody{
		ID:           a.ID,
		Organization: a.Organization,
		ItemType:     a.ItemType,
		Item:         a.Item,
		Name:         a.Name,
		Description:  a.Description,
		BestRating:   a.BestRating,
		WorstRating:  a.WorstRating,
		DateCreated:  a.DateCreated,
		DateModified: a.DateModified,
	}
}

func toLikeBody(l domain.Like) likeBody {
	return likeBody{
		ID:           l.ID,
		Organization: l.Organization,
		Resource:     l.Resource,
		Author:       l.Author,
		DateCreated:  l.DateCreated,
		DateModified: l.DateModified,
	}
}

func reviewRes(id uuid.UUID) resource { return resource{Type: "Review", Self: "/v1/reviews/" + id.String()} }
func ratingRes(id uuid.UUID) resource { return resource{Type: "Rating", Self: "/v1/ratings/" + id.String()} }
func aspectRes(id uuid.UUID) resource { return resource{Type: "Aspect", Self: "/v1/aspects/" + id.String()} }
func likeRes(id uuid.UUID) resource   { return resource{Type: "Like", Self: "/v1/likes/" + id.String()} }

func collectionRes(r *http.Request) resource {
	return resource{Type: "Collection", Self: r.URL.RequestURI()}
}

// ---- handlers ----

func (h *Handlers) getTotals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sc := domain.Scope{
		Organization: q.Get("organization"),
		Resource:     q.Get("resource"),
		Author:       q.Get("author"),
	}
	total, err := h.Totals.Calculate(r.Context(), sc)
	if err != nil {
		writeError(w, r, err)
		return
	}

	self := url.Values{}
	for k, v := range map[string]string{"organization": sc.Organization, "resource": sc.Resource, "author": sc.Author} {
		if v != "" {
			self.Set(k, v)
		}
	}
	f := render(w, r, http.StatusOK, resource{Type: "Total", Self: "/v1/totals?" + self.Encode()}, toTotalBody(total))
	observability.ObserveTotals(f.String())
}


// ---- reviews ----

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	rs, err := h.Q.ListReviews(r.Context(), domain.ReviewsQuery{
		Organization: q.Get("organization"),
		Resource:     q.Get("resource"),
		Author:       q.Get("author"),
		Limit:        limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]reviewBody, 0, len(rs))
	for _, rv := range rs {
		b, err := toReviewBody(rv)
		if err != nil {
			writeError(w, r, err)
			return
		}
		items = append(items, b)
	}
	render(w, r, http.StatusOK, collectionRes(r), collection(items))
}

func (h *Handlers) getReview(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	rv, err := h.Q.GetReview(r.Context(), id)
	writeReview(w, r, http.StatusOK, rv, err)
}

func (h *Handlers) createReview(w http.ResponseWriter, r *http.Request) {
	var in app.ReviewInput
	if !decodeBody(w, r, &in) {
		return
	}
	rv, err := h.W.CreateReview(r.Context(), in)
	writeReview(w, r, http.StatusCreated, rv, err)
}

func (h *Handlers) replaceReview(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var in app.ReviewInput
	if !decodeBody(w, r, &in) {
		return
	}
	rv, err := h.W.ReplaceReview(r.Context(), id, in)
	writeReview(w, r, http.StatusOK, rv, err)
}

func (h *Handlers) deleteReview(w http.ResponseWriter, r *http.Request) {
	if id, ok := idParam(w, r); ok {
		deleted(w, r, h.W.DeleteReview(r.Context(), id))
	}
}

func writeReview(w http.ResponseWriter, r *http.Request, status int, rv domain.Review, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := toReviewBody(rv)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if status == http.StatusCreated {
		created(w, r, reviewRes(rv.ID), body)
		return
	}
	render(w, r, status, reviewRes(rv.ID), body)
}

// ---- ratings ----

func (h *Handlers) listRatings(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	review, ok := refParam(w, r, "review")
	if !ok {
		return
	}
	aspect, ok := refParam(w, r, "reviewAspect")
	if !ok {
		return
	}
	rts, err := h.Q.ListRatings(r.Context(), domain.RatingsQuery{Review: review, Aspect: aspect, Limit: limit})
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]ratingBody, 0, len(rts))
	for _, rt := range rts {
		b, err := toRatingBody(rt)
		if err != nil {
			writeError(w, r, err)
			return
		}
		items = append(items, b)
	}
	render(w, r, http.StatusOK, collectionRes(r), collection(items))
}

func (h *Handlers) getRating(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	rt, err := h.Q.GetRating(r.Context(), id)
	writeRating(w, r, http.StatusOK, rt, err)
}

func (h *Handlers) createRating(w http.ResponseWriter, r *http.Request) {
	var in app.RatingInput
	if !decodeBody(w, r, &in) {
		return
	}
	rt, err := h.W.CreateRating(r.Context(), in)
	writeRating(w, r, http.StatusCreated, rt, err)
}

func (h *Handlers) replaceRating(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var in app.RatingInput
	if !decodeBody(w, r, &in) {
		return
	}
	rt, err := h.W.ReplaceRating(r.Context(), id, in)
	writeRating(w, r, http.StatusOK, rt, err)
}

func (h *Handlers) deleteRating(w http.ResponseWriter, r *http.Request) {
	if id, ok := idParam(w, r); ok {
		deleted(w, r, h.W.DeleteRating(r.Context(), id))
	}
}

func writeRating(w http.ResponseWriter, r *http.Request, status int, rt domain.Rating, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := toRatingBody(rt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if status == http.StatusCreated {
		created(w, r, ratingRes(rt.ID), body)
		return
	}
	render(w, r, status, ratingRes(rt.ID), body)
}

// ---- aspects ----

func (h *Handlers) listAspects(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	as, err := h.Q.ListAspects(r.Context(), domain.AspectsQuery{
		Organization: q.Get("organization"),
		Item:         q.Get("item"),
		Limit:        limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]aspectBody, 0, len(as))
	for _, a := range as {
		items = append(items, toAspectBody(a))
	}
	render(w, r, http.StatusOK, collectionRes(r), collection(items))
}

func (h *Handlers) getAspect(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	a, err := h.Q.GetAspect(r.Context(), id)
	writeAspect(w, r, http.StatusOK, a, err)
}

func (h *Handlers) createAspect(w http.ResponseWriter, r *http.Request) {
	var in app.AspectInput
	if !decodeBody(w, r, &in) {
		return
	}
	a, err := h.W.CreateAspect(r.Context(), in)
	writeAspect(w, r, http.StatusCreated, a, err)
}

func (h *Handlers) replaceAspect(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var in app.AspectInput
	if !decodeBody(w, r, &in) {
		return
	}
	a, err := h.W.ReplaceAspect(r.Context(), id, in)
	writeAspect(w, r, http.StatusOK, a, err)
}

func (h *Handlers) deleteAspect(w http.ResponseWriter, r *http.Request) {
	if id, ok := idParam(w, r); ok {
		deleted(w, r, h.W.DeleteAspect(r.Context(), id))
	}
}

func writeAspect(w http.ResponseWriter, r *http.Request, status int, a domain.Aspect, err error) {
	switch {
	case err != nil:
		writeError(w, r, err)
	case status == http.StatusCreated:
		created(w, r, aspectRes(a.ID), toAspectBody(a))
	default:
		render(w, r, status, aspectRes(a.ID), toAspectBody(a))
	}
}

// ---- likes ----

func (h *Handlers) listLikes(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	ls, err := h.Q.ListLikes(r.Context(), domain.LikesQuery{
		Organization: q.Get("organization"),
		Resource:     q.Get("resource"),
		Author:       q.Get("author"),
		Limit:        limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]likeBody, 0, len(ls))
	for _, l := range ls {
		items = append(items, toLikeBody(l))
	}
	render(w, r, http.StatusOK, collectionRes(r), collection(items))
}

func (h *Handlers) getLike(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	l, err := h.Q.GetLike(r.Context(), id)
	writeLike(w, r, http.StatusOK, l, err)
}

func (h *Handlers) createLike(w http.ResponseWriter, r *http.Request) {
	var in app.LikeInput
	if !decodeBody(w, r, &in) {
		return
	}
	l, err := h.W.CreateLike(r.Context(), in)
	writeLike(w, r, http.StatusCreated, l, err)
}

func (h *Handlers) replaceLike(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var in app.LikeInput
	if !decodeBody(w, r, &in) {
		return
	}
	l, err := h.W.ReplaceLike(r.Context(), id, in)
	writeLike(w, r, http.StatusOK, l, err)
}

func (h *Handlers) deleteLike(w http.ResponseWriter, r *http.Request) {
	if id, ok := idParam(w, r); ok {
		deleted(w, r, h.W.DeleteLike(r.Context(), id))
	}
}

func writeLike(w http.ResponseWriter, r *http.Request, status int, l domain.Like, err error) {
	switch {
	case err != nil:
		writeError(w, r, err)
	case status == http.StatusCreated:
		created(w, r, likeRes(l.ID), toLikeBody(l))
	default:
		render(w, r, status, likeRes(l.ID), toLikeBody(l))
	}
}
