package jobs

import (
	"database/sql"
	"fmt"
	"log"
)

// PurgeStaleStagingRows deletes staged statement uploads older than the
// retention window. Staged rows exist only so an import can be audited
// against the raw file contents; payments themselves are never touched.
func PurgeStaleStagingRows(db *sql.DB, retentionDays int) error {
	if db == nil {
		return fmt.Errorf("no database configured for staging purge")
	}
	if retentionDays <= 0 {
		return nil
	}
	res, err := db.Exec(
		`DELETE FROM statement_staging WHERE uploaded_at < NOW() - ($1 * INTERVAL '1 day')`,
		retentionDays,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.Printf("[CRON] purged %d stale staging rows", n)
	}
	return nil
}
