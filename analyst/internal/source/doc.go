// Package source loads business records from the places listed in the
// analyst configuration.
//
// Each source type has a Loader:
//   - file: a .json, .yaml or .yml document holding one record object
//   - http: GET endpoint returning a JSON record object
//   - prometheus: GET a text exposition; configured metric families are
//     summed into record fields
//   - sql: one-row query against mysql, pgx (PostgreSQL) or sqlite
//
// Loaders return raw field maps; coercion and defaults are left to
// analysis.Normalize. A field the source does not provide is left out of the
// map rather than set to zero.
//
// WatchFiles reports changes to file sources so the analyst can re-run
// without waiting for the next interval.
package source
