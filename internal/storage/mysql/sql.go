package mysql

// Shared column list; every reader scans rows in exactly this order.
const selectCols = `
  id, partner_id, name, description, city, address, lat, lon,
  categories, cuisines, price_range, working_hours, special_hours, attributes,
  status, moderation_notes, notes_history, suspend_reason, moderated_by, moderated_at,
  view_count, favorite_count, review_count, average_rating,
  created_at, updated_at, published_at`

const insertEstablishmentSQL = `
INSERT INTO establishments
  (id, partner_id, name, description, city, address, lat, lon,
   categories, cuisines, price_range, working_hours, special_hours, attributes,
   status, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// The write guards below double as the optimistic-concurrency check:
// RowsAffected == 0 means the guard no longer matched, and the caller
// reports the conflict. The DSN must carry clientFoundRows=true so
// MySQL counts matched rows, not changed ones.

const updateAggregatesSQL = `
UPDATE establishments
SET view_count = ?, favorite_count = ?, review_count = ?, average_rating = ?
WHERE id = ?
`

const updateFieldsGuard = ` WHERE id = ? AND partner_id = ? AND status IN ('draft', 'rejected')`

const transitionGuard = ` WHERE id = ? AND status = ?`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const getEstablishmentSQL = `SELECT` + selectCols + `
FROM establishments
WHERE id = ?
`

const listByPartnerSQL = `SELECT` + selectCols + `
FROM establishments
WHERE partner_id = ?
ORDER BY created_at DESC, id ASC
LIMIT ? OFFSET ?
`

const countByPartnerSQL = `SELECT COUNT(*) FROM establishments WHERE partner_id = ?`

// Moderation queue order: least recently touched first, so a
// resubmission rejoins the line at the back.
const listByStatusSQL = `SELECT` + selectCols + `
FROM establishments
WHERE status = ?
ORDER BY updated_at ASC, id ASC
LIMIT ? OFFSET ?
`

const countByStatusSQL = `SELECT COUNT(*) FROM establishments WHERE status = ?`

// BETWEEN is inclusive on both ends, matching the search contract. The
// box is a coarse candidate cut; exact distance and ordering happen in
// the discovery service.
const activeInBoundsSQL = `SELECT` + selectCols + `
FROM establishments
WHERE status = 'active'
  AND lat BETWEEN ? AND ?
  AND lon BETWEEN ? AND ?
`
