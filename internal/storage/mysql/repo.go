package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"reviews_api/internal/adapters/observability"
	"reviews_api/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func valUUID(p *uuid.UUID) any {
	if p == nil {
		return nil
	}
	return p.String()
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// escapeLike makes s safe to embed in a LIKE pattern using the default
// backslash escape character.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func contains(s string) string { return "%" + escapeLike(s) + "%" }

// scopeWhere appends substring predicates for the scope's organization and
// resource. Absent filters add nothing.
func scopeWhere(alias string, s domain.Scope) (string, []any) {
	var b strings.Builder
	var args []any
	if s.Organization != "" {
		b.WriteString("\n  AND " + alias + ".organization LIKE ?")
		args = append(args, contains(s.Organization))
	}
	if s.Resource != "" {
		b.WriteString("\n  AND " + alias + ".resource LIKE ?")
		args = append(args, contains(s.Resource))
	}
	return b.String(), args
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// observe records a store query outcome; use with defer.
func observe(op string, start time.Time, err *error) {
	observability.ObserveStore("mysql", op, *err, time.Since(start))
}

// ---- writes ----

func (r *Repo) UpsertAspect(ctx context.Context, a domain.Aspect) (err error) {
	defer observe("upsert_aspect", time.Now(), &err)
	a = a.WithDefaults()
	_, err = r.db.ExecContext(ctx, upsertAspectSQL,
		a.ID.String(),
		a.Organization,
		valStr(a.ItemType),
		valStr(a.Item),
		a.Name,
		valStr(a.Description),
		a.BestRating,
		a.WorstRating,
	)
	return err
}

// UpsertReview writes the review and replaces its rating set in one
// transaction; ratings missing from rv.Ratings are deleted.
func (r *Repo) UpsertReview(ctx context.Context, rv domain.Review) (err error) {
	defer observe("upsert_review", time.Now(), &err)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, upsertReviewSQL,
		rv.ID.String(),
		rv.Review,
		rv.Organization,
		valStr(rv.Resource),
		valStr(rv.Author),
	); err != nil {
		return fmt.Errorf("upsert review %s: %w", rv.ID, err)
	}

	del := deleteOrphanRatingsPrefix
	delArgs := []any{rv.ID.String()}
	if len(rv.Ratings) > 0 {
		del += " AND id NOT IN (" + placeholders(len(rv.Ratings)) + ")"
		for _, rt := range rv.Ratings {
			delArgs = append(delArgs, rt.ID.String())
		}
	}
	if _, err = tx.ExecContext(ctx, del, delArgs...); err != nil {
		return fmt.Errorf("remove orphan ratings of %s: %w", rv.ID, err)
	}

	if len(rv.Ratings) > 0 {
		values := make([]string, 0, len(rv.Ratings))
		args := make([]any, 0, len(rv.Ratings)*5)
		for _, rt := range rv.Ratings {
			values = append(values, "(?,?,?,?,?)")
			args = append(args,
				rt.ID.String(),
				rv.ID.String(),
				valUUID(rt.AspectID),
				rt.Value,
				valStr(rt.Explanation),
			)
		}
		q := insertRatingsPrefix + strings.Join(values, ",") + insertRatingsOnDup
		if _, err = tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("upsert ratings of %s: %w", rv.ID, err)
		}
	}

	return tx.Commit()
}

func (r *Repo) UpsertLike(ctx context.Context, l domain.Like) (err error) {
	defer observe("upsert_like", time.Now(), &err)
	_, err = r.db.ExecContext(ctx, upsertLikeSQL, l.ID.String(), l.Organization, l.Resource, l.Author)
	return err
}

func (r *Repo) DeleteReview(ctx context.Context, id uuid.UUID) (err error) {
	defer observe("delete_review", time.Now(), &err)
	return r.deleteByID(ctx, deleteReviewSQL, id)
}

func (r *Repo) DeleteAspect(ctx context.Context, id uuid.UUID) (err error) {
	defer observe("delete_aspect", time.Now(), &err)
	return r.deleteByID(ctx, deleteAspectSQL, id)
}

func (r *Repo) DeleteLike(ctx context.Context, id uuid.UUID) (err error) {
	defer observe("delete_like", time.Now(), &err)
	return r.deleteByID(ctx, deleteLikeSQL, id)
}

func (r *Repo) deleteByID(ctx context.Context, q string, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, q, id.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repo) LogMiss(ctx context.Context, collection string, page, status int, reason string) error {
	_, err := r.db.ExecContext(ctx, insertMissSQL, collection, page, status, reason)
	return err
}

// ---- totals ----

func (r *Repo) AverageRating(ctx context.Context, s domain.Scope) (st domain.RatingStats, err error) {
	defer observe("average_rating", time.Now(), &err)
	where, args := scopeWhere("r", s)
	err = r.db.QueryRowContext(ctx, ratingStatsSQL+where, args...).Scan(&st.Sum, &st.Count)
	return st, err
}

func (r *Repo) CountReviews(ctx context.Context, s domain.Scope) (n int64, err error) {
	defer observe("count_reviews", time.Now(), &err)
	where, args := scopeWhere("r", s)
	err = r.db.QueryRowContext(ctx, countReviewsSQL+where, args...).Scan(&n)
	return n, err
}

func (r *Repo) CountLikes(ctx context.Context, s domain.Scope) (n int64, err error) {
	defer observe("count_likes", time.Now(), &err)
	where, args := scopeWhere("r", s)
	err = r.db.QueryRowContext(ctx, countLikesSQL+where, args...).Scan(&n)
	return n, err
}

func (r *Repo) LikeExists(ctx context.Context, author, resource, organization string) (ok bool, err error) {
	defer observe("like_exists", time.Now(), &err)
	q := likeExistsSQL
	args := []any{author, resource}
	if organization != "" {
		q += " AND organization = ?"
		args = append(args, organization)
	}
	q += ")"
	err = r.db.QueryRowContext(ctx, q, args...).Scan(&ok)
	return ok, err
}

// ---- reads ----

func (r *Repo) GetReview(ctx context.Context, id uuid.UUID) (rv domain.Review, err error) {
	defer observe("get_review", time.Now(), &err)
	row := r.db.QueryRowContext(ctx, selectReviewColumns+"\nWHERE id = ?", id.String())
	rv, err = scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Review{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Review{}, err
	}
	out := []domain.Review{rv}
	if err = r.attachRatings(ctx, out); err != nil {
		return domain.Review{}, err
	}
	return out[0], nil
}

func (r *Repo) ListReviews(ctx context.Context, q domain.ReviewsQuery) (out []domain.Review, err error) {
	defer observe("list_reviews", time.Now(), &err)

	var where []string
	var args []any
	if q.Organization != "" {
		where = append(where, "organization = ?")
		args = append(args, q.Organization)
	}
	if q.Resource != "" {
		where = append(where, "resource = ?")
		args = append(args, q.Resource)
	}
	if q.Author != "" {
		where = append(where, "author = ?")
		args = append(args, q.Author)
	}
	query := selectReviewColumns
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY date_modified DESC, id DESC\nLIMIT ?"
	args = append(args, q.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = make([]domain.Review, 0, q.Limit)
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if err = r.attachRatings(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) GetRating(ctx context.Context, id uuid.UUID) (rt domain.Rating, err error) {
	defer observe("get_rating", time.Now(), &err)
	var author sql.NullString
	row := r.db.QueryRowContext(ctx, getRatingSQL, id.String())
	rt, err = scanRating(row, &author)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Rating{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Rating{}, err
	}
	rt.Owner = &domain.ReviewRef{ID: rt.ReviewID, Author: strPtr(author)}
	return rt, nil
}

func (r *Repo) ListRatings(ctx context.Context, q domain.RatingsQuery) (out []domain.Rating, err error) {
	defer observe("list_ratings", time.Now(), &err)

	var where []string
	var args []any
	if q.Review != uuid.Nil {
		where = append(where, "rt.review_id = ?")
		args = append(args, q.Review.String())
	}
	if q.Aspect != uuid.Nil {
		where = append(where, "rt.aspect_id = ?")
		args = append(args, q.Aspect.String())
	}
	query := selectRatingWithAuthorSQL
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY rt.date_created, rt.id\nLIMIT ?"
	args = append(args, q.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = make([]domain.Rating, 0, q.Limit)
	for rows.Next() {
		var author sql.NullString
		rt, err := scanRating(rows, &author)
		if err != nil {
			return nil, err
		}
		rt.Owner = &domain.ReviewRef{ID: rt.ReviewID, Author: strPtr(author)}
		out = append(out, rt)
	}
	return out, rows.Err()
}

func (r *Repo) GetAspect(ctx context.Context, id uuid.UUID) (a domain.Aspect, err error) {
	defer observe("get_aspect", time.Now(), &err)
	a, err = scanAspect(r.db.QueryRowContext(ctx, getAspectSQL, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Aspect{}, domain.ErrNotFound
	}
	return a, err
}

func (r *Repo) ListAspects(ctx context.Context, q domain.AspectsQuery) (out []domain.Aspect, err error) {
	defer observe("list_aspects", time.Now(), &err)

	var where []string
	var args []any
	if q.Organization != "" {
		where = append(where, "organization = ?")
		args = append(args, q.Organization)
	}
	if q.Item != "" {
		where = append(where, "item = ?")
		args = append(args, q.Item)
	}
	query := selectAspectColumns
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY name, id\nLIMIT ?"
	args = append(args, q.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = make([]domain.Aspect, 0, q.Limit)
	for rows.Next() {
		a, err := scanAspect(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repo) GetLike(ctx context.Context, id uuid.UUID) (l domain.Like, err error) {
	defer observe("get_like", time.Now(), &err)
	l, err = scanLike(r.db.QueryRowContext(ctx, getLikeSQL, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Like{}, domain.ErrNotFound
	}
	return l, err
}

func (r *Repo) ListLikes(ctx context.Context, q domain.LikesQuery) (out []domain.Like, err error) {
	defer observe("list_likes", time.Now(), &err)

	var where []string
	var args []any
	for _, f := range []struct{ col, v string }{
		{"organization", q.Organization},
		{"resource", q.Resource},
		{"author", q.Author},
	} {
		if f.v != "" {
			where = append(where, f.col+" = ?")
			args = append(args, f.v)
		}
	}
	query := selectLikeColumns
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY date_modified DESC, id DESC\nLIMIT ?"
	args = append(args, q.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = make([]domain.Like, 0, q.Limit)
	for rows.Next() {
		l, err := scanLike(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// attachRatings loads the rating sets of rs in one query and wires each
// rating's owner and bounds.
func (r *Repo) attachRatings(ctx context.Context, rs []domain.Review) error {
	if len(rs) == 0 {
		return nil
	}
	idx := make(map[uuid.UUID]int, len(rs))
	args := make([]any, 0, len(rs))
	for i, rv := range rs {
		idx[rv.ID] = i
		args = append(args, rv.ID.String())
	}
	q := selectRatingsByReviewSQL + "(" + placeholders(len(rs)) + ")\nORDER BY rt.date_created, rt.id"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		rt, err := scanRating(rows, nil)
		if err != nil {
			return err
		}
		i, ok := idx[rt.ReviewID]
		if !ok {
			continue
		}
		rt.Owner = &domain.ReviewRef{ID: rs[i].ID, Author: rs[i].Author}
		rs[i].Ratings = append(rs[i].Ratings, rt)
	}
	return rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanReview(s scanner) (domain.Review, error) {
	var rv domain.Review
	var resource, author sql.NullString
	var created, modified sql.NullTime
	if err := s.Scan(
		&rv.ID,
		&rv.Review,
		&rv.Organization,
		&resource,
		&author,
		&created,
		&modified,
	); err != nil {
		return domain.Review{}, err
	}
	rv.Resource, rv.Author = strPtr(resource), strPtr(author)
	rv.DateCreated, rv.DateModified = timePtr(created), timePtr(modified)
	return rv, nil
}

// scanRating reads the shared rating column list; author is scanned only
// when the query selects it.
func scanRating(s scanner, author *sql.NullString) (domain.Rating, error) {
	var rt domain.Rating
	var aspectID uuid.NullUUID
	var expl sql.NullString
	var created, modified sql.NullTime
	var best, worst sql.NullInt64
	dest := []any{
		&rt.ID,
		&rt.ReviewID,
		&aspectID,
		&rt.Value,
		&expl,
		&created,
		&modified,
		&best,
		&worst,
	}
	if author != nil {
		dest = append(dest, author)
	}
	if err := s.Scan(dest...); err != nil {
		return domain.Rating{}, err
	}
	if aspectID.Valid {
		id := aspectID.UUID
		rt.AspectID = &id
	}
	if best.Valid && worst.Valid {
		rt.Bounds = &domain.Bounds{Best: int(best.Int64), Worst: int(worst.Int64)}
	}
	rt.Explanation = strPtr(expl)
	rt.DateCreated, rt.DateModified = timePtr(created), timePtr(modified)
	return rt, nil
}

func scanAspect(s scanner) (domain.Aspect, error) {
	var a domain.Aspect
	var itemType, item, desc sql.NullString
	var created, modified sql.NullTime
	if err := s.Scan(
		&a.ID,
		&a.Organization,
		&itemType,
		&item,
		&a.Name,
		&desc,
		&a.BestRating,
		&a.WorstRating,
		&created,
		&modified,
	); err != nil {
		return domain.Aspect{}, err
	}
	a.ItemType, a.Item, a.Description = strPtr(itemType), strPtr(item), strPtr(desc)
	a.DateCreated, a.DateModified = timePtr(created), timePtr(modified)
	return a, nil
}

func scanLike(s scanner) (domain.Like, error) {
	var l domain.Like
	var created, modified sql.NullTime
	if err := s.Scan(&l.ID, &l.Organization, &l.Resource, &l.Author, &created, &modified); err != nil {
		return domain.Like{}, err
	}
	l.DateCreated, l.DateModified = timePtr(created), timePtr(modified)
	return l, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
