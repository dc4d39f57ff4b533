package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"reviews_api/internal/domain"
)

/********** alias registries (single source of truth) **********/

var reviewAliases = map[string][]string{
	"id":           {"id", "@id", "uuid"},
	"review":       {"review", "reviewBody", "text", "body"},
	"organization": {"organization", "organisation", "organization.@id", "organization.id"},
	"resource":     {"resource", "itemReviewed", "resource.@id"},
	"author":       {"author", "author.@id", "author.id"},
}

var ratingAliases = map[string][]string{
	"id":          {"id", "@id", "uuid"},
	"value":       {"ratingValue", "rating_value", "value"},
	"explanation": {"ratingExplanation", "rating_explanation", "explanation"},
	"aspect":      {"reviewAspect", "reviewAspect.@id", "reviewAspect.id", "aspect", "aspect.id"},
}

var aspectAliases = map[string][]string{
	"id":           {"id", "@id", "uuid"},
	"organization": {"organization", "organisation"},
	"item_type":    {"itemType", "item_type"},
	"item":         {"item"},
	"name":         {"name"},
	"description":  {"description"},
	"best":         {"bestRating", "best_rating"},
	"worst":        {"worstRating", "worst_rating"},
}

var likeAliases = map[string][]string{
	"id":           {"id", "@id", "uuid"},
	"organization": {"organization", "organisation"},
	"resource":     {"resource", "itemReviewed"},
	"author":       {"author"},
}

// importNamespace seeds deterministic IDs for payloads that carry none.
var importNamespace = uuid.MustParse("5b8f0b5e-3c1e-4f55-9a43-6f0f7d1c2a10")

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) *string {
	for _, p := range aliases[key] {
		if s := lookupStr(m, p); s != "" {
			return &s
		}
	}
	return nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// firstIntFlexible: int from several paths (float64/int/string).
func firstIntFlexible(m map[string]any, paths ...string) *int {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			x := int(v)
			return &x
		case int:
			x := v
			return &x
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			if n, err := strconv.Atoi(s); err == nil {
				return &n
			}
		}
	}
	return nil
}

// ParseID accepts a bare UUID or an IRI ending in one ("/reviews/<uuid>").
func ParseID(s string) (uuid.UUID, bool) {
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	id, err := uuid.Parse(s)
	return id, err == nil
}

// idOrSynth parses the payload ID, or derives a stable one from sig.
func idOrSynth(m map[string]any, aliases map[string][]string, sig ...string) uuid.UUID {
	if s := firstNonEmptyAlias(m, aliases, "id"); s != nil {
		if id, ok := ParseID(*s); ok {
			return id
		}
	}
	return uuid.NewSHA1(importNamespace, []byte(strings.Join(sig, "|")))
}

/********** aspect mapper **********/

func mapAspect(p map[string]any) (domain.Aspect, error) {
	org := firstNonEmptyAlias(p, aspectAliases, "organization")
	name := firstNonEmptyAlias(p, aspectAliases, "name")
	if org == nil || name == nil {
		return domain.Aspect{}, fmt.Errorf("aspect: organization and name are required")
	}
	a := domain.Aspect{
		ID:           idOrSynth(p, aspectAliases, "aspect", *org, *name),
		Organization: *org,
		ItemType:     firstNonEmptyAlias(p, aspectAliases, "item_type"),
		Item:         firstNonEmptyAlias(p, aspectAliases, "item"),
		Name:         *name,
		Description:  firstNonEmptyAlias(p, aspectAliases, "description"),
	}
	if v := firstIntFlexible(p, aspectAliases["best"]...); v != nil {
		a.BestRating = *v
	}
	if v := firstIntFlexible(p, aspectAliases["worst"]...); v != nil {
		a.WorstRating = *v
	}
	return a.WithDefaults(), nil
}

/********** review mapper **********/

func mapReview(p map[string]any) (domain.Review, error) {
	org := firstNonEmptyAlias(p, reviewAliases, "organization")
	if org == nil {
		return domain.Review{}, fmt.Errorf("review: organization is required")
	}
	rv := domain.Review{
		Review:       deref(firstNonEmptyAlias(p, reviewAliases, "review")),
		Organization: *org,
		Resource:     firstNonEmptyAlias(p, reviewAliases, "resource"),
		Author:       firstNonEmptyAlias(p, reviewAliases, "author"),
	}
	rv.ID = idOrSynth(p, reviewAliases, "review", rv.Organization, deref(rv.Resource), deref(rv.Author), rv.Review)

	raw, _ := lookupAny(p, "ratings").([]any)
	for i, it := range raw {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		rt, err := mapRating(rv.ID, i, m)
		if err != nil {
			return domain.Review{}, fmt.Errorf("review %s: %w", rv.ID, err)
		}
		rv.AddRating(rt)
	}
	return rv, nil
}

func mapRating(reviewID uuid.UUID, pos int, p map[string]any) (domain.Rating, error) {
	v := firstIntFlexible(p, ratingAliases["value"]...)
	if v == nil {
		return domain.Rating{}, fmt.Errorf("rating %d: ratingValue is required", pos)
	}
	rt := domain.Rating{
		ID:          idOrSynth(p, ratingAliases, "rating", reviewID.String(), strconv.Itoa(pos)),
		Value:       *v,
		Explanation: firstNonEmptyAlias(p, ratingAliases, "explanation"),
	}
	if s := firstNonEmptyAlias(p, ratingAliases, "aspect"); s != nil {
		id, ok := ParseID(*s)
		if !ok {
			return domain.Rating{}, fmt.Errorf("rating %d: bad aspect reference %q", pos, *s)
		}
		rt.AspectID = &id
	}
	return rt, nil
}

/********** like mapper **********/

func mapLike(p map[string]any) (domain.Like, error) {
	org := firstNonEmptyAlias(p, likeAliases, "organization")
	res := firstNonEmptyAlias(p, likeAliases, "resource")
	author := firstNonEmptyAlias(p, likeAliases, "author")
	if org == nil || res == nil || author == nil {
		return domain.Like{}, fmt.Errorf("like: organization, resource and author are required")
	}
	return domain.Like{
		ID:           idOrSynth(p, likeAliases, "like", *org, *res, *author),
		Organization: *org,
		Resource:     *res,
		Author:       *author,
	}, nil
}
