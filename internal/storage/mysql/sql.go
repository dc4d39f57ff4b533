package mysql

const upsertAspectSQL = `
INSERT INTO aspects
  (id, organization, item_type, item, name, description, best_rating, worst_rating)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  organization  = VALUES(organization),
  item_type     = VALUES(item_type),
  item          = VALUES(item),
  name          = VALUES(name),
  description   = VALUES(description),
  best_rating   = VALUES(best_rating),
  worst_rating  = VALUES(worst_rating),
  date_modified = CURRENT_TIMESTAMP
`

const upsertReviewSQL = `
INSERT INTO reviews
  (id, review, organization, resource, author)
VALUES
  (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  review        = VALUES(review),
  organization  = VALUES(organization),
  resource      = VALUES(resource),
  author        = VALUES(author),
  date_modified = CURRENT_TIMESTAMP
`

// Orphan removal; the caller appends "AND id NOT IN (...)" when ratings remain.
const deleteOrphanRatingsPrefix = "DELETE FROM ratings WHERE review_id = ?"

const insertRatingsPrefix = "INSERT INTO ratings\n  (id, review_id, aspect_id, rating_value, rating_explanation)\nVALUES "

const insertRatingsOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  review_id          = VALUES(review_id),\n" +
	"  aspect_id          = VALUES(aspect_id),\n" +
	"  rating_value       = VALUES(rating_value),\n" +
	"  rating_explanation = VALUES(rating_explanation),\n" +
	"  date_modified      = CURRENT_TIMESTAMP\n"

const upsertLikeSQL = `
INSERT INTO likes
  (id, organization, resource, author)
VALUES
  (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  organization  = VALUES(organization),
  resource      = VALUES(resource),
  author        = VALUES(author),
  date_modified = CURRENT_TIMESTAMP
`

const insertMissSQL = `
INSERT INTO import_misses (collection, page, http_status, reason)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  http_status = VALUES(http_status),
  reason      = VALUES(reason),
  seen_at     = CURRENT_TIMESTAMP
`

// -----------------------------------------------------------------------------
// TOTALS
// -----------------------------------------------------------------------------

// Sum and count of rating rows, not of per-review aggregates. The mean is
// taken by the caller; AVG would already be rounded to four places.
const ratingStatsSQL = `
SELECT COALESCE(SUM(rt.rating_value), 0), COUNT(rt.rating_value)
FROM ratings rt
JOIN reviews r ON r.id = rt.review_id
WHERE 1=1`

const countReviewsSQL = `
SELECT COUNT(*)
FROM reviews r
WHERE 1=1`

const countLikesSQL = `
SELECT COUNT(*)
FROM likes r
WHERE 1=1`

const likeExistsSQL = `
SELECT EXISTS(
  SELECT 1 FROM likes
  WHERE author = ? AND resource = ?`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const selectReviewColumns = `
SELECT id, review, organization, resource, author, date_created, date_modified
FROM reviews`

// Ratings joined with their aspect bounds; bounds are NULL without an aspect.
const selectRatingsByReviewSQL = `
SELECT
  rt.id,
  rt.review_id,
  rt.aspect_id,
  rt.rating_value,
  rt.rating_explanation,
  rt.date_created,
  rt.date_modified,
  a.best_rating,
  a.worst_rating
FROM ratings rt
LEFT JOIN aspects a ON a.id = rt.aspect_id
WHERE rt.review_id IN `

const selectRatingWithAuthorSQL = `
SELECT
  rt.id,
  rt.review_id,
  rt.aspect_id,
  rt.rating_value,
  rt.rating_explanation,
  rt.date_created,
  rt.date_modified,
  a.best_rating,
  a.worst_rating,
  r.author
FROM ratings rt
JOIN reviews r ON r.id = rt.review_id
LEFT JOIN aspects a ON a.id = rt.aspect_id`

const getRatingSQL = selectRatingWithAuthorSQL + "\nWHERE rt.id = ?"

const selectAspectColumns = `
SELECT id, organization, item_type, item, name, description, best_rating, worst_rating, date_created, date_modified
FROM aspects`

const getAspectSQL = selectAspectColumns + "\nWHERE id = ?"

const selectLikeColumns = `
SELECT id, organization, resource, author, date_created, date_modified
FROM likes`

const getLikeSQL = selectLikeColumns + "\nWHERE id = ?"

// -----------------------------------------------------------------------------
// DELETES (ratings follow through ON DELETE CASCADE)
// -----------------------------------------------------------------------------

const deleteReviewSQL = "DELETE FROM reviews WHERE id = ?"

const deleteAspectSQL = "DELETE FROM aspects WHERE id = ?"

const deleteLikeSQL = "DELETE FROM likes WHERE id = ?"
