// Package postgres implements the flowsync store using pgx/v5 with raw SQL.
//
// Tenants keep their flow configurations in a JSONB column and are
// replaced with a conditional UPDATE on the etag column. Deliveries are
// claimed with UPDATE ... FOR UPDATE SKIP LOCKED so concurrent workers
// never lease the same row. Schema changes ship as embedded SQL files
// applied in filename order by Migrate.
package postgres
