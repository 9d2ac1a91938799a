package snowflake

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arencloud/courtside/internal/warehouse"
)

const sessionContextSQL = "SELECT CURRENT_USER(), CURRENT_ROLE(), CURRENT_WAREHOUSE(), CURRENT_DATABASE(), CURRENT_SCHEMA()"

const zeroFilesStatus = "Copy executed with 0 files processed."

func createTableSQL(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s VARIANT)", table, warehouse.DataColumn)
}

func grantsSQL(table string) string {
	return "SHOW GRANTS ON TABLE " + table
}

// historySQL reads the 14-day copy history for the table, newest first.
func historySQL(table string, limit int) string {
	return fmt.Sprintf(`SELECT FILE_NAME, STATUS, ROW_PARSED, ROW_COUNT, ERROR_COUNT, FIRST_ERROR_MESSAGE, LAST_LOAD_TIME
FROM TABLE(INFORMATION_SCHEMA.COPY_HISTORY(TABLE_NAME => %s, START_TIME => DATEADD(days, -14, CURRENT_TIMESTAMP())))
ORDER BY LAST_LOAD_TIME DESC
LIMIT %d`, warehouse.QuoteLiteral(table), limit)
}

func stageSQL(spec warehouse.StageSpec, keyID, secret string) string {
	return fmt.Sprintf(`CREATE OR REPLACE STAGE %s
URL=%s
CREDENTIALS=(AWS_KEY_ID=%s AWS_SECRET_KEY=%s)
FILE_FORMAT=(TYPE=JSON)`, spec.Name, warehouse.QuoteLiteral(spec.URL), warehouse.QuoteLiteral(keyID), warehouse.QuoteLiteral(secret))
}

func copySQL(spec warehouse.CopySpec) string {
	return fmt.Sprintf(`COPY INTO %s
FROM @%s/%s
FILE_FORMAT=(TYPE=JSON)
ON_ERROR='CONTINUE'`, spec.Table, spec.Stage, spec.File)
}

// parseCopyResult reads the rows COPY INTO returns: one per file, or a single
// status row when no file was processed.
func parseCopyResult(rows []map[string]string, file string) (warehouse.CopyResult, error) {
	res := warehouse.CopyResult{File: file}
	for _, r := range rows {
		if _, ok := r["file"]; !ok {
			if strings.HasPrefix(r["status"], "Copy executed with 0 files") {
				res.Status = r["status"]
				continue
			}
			return res, fmt.Errorf("unexpected COPY INTO result %v", r)
		}
		res.Files++
		res.Status = r["status"]
		res.RowsParsed += atoi(r["rows_parsed"])
		res.RowsLoaded += atoi(r["rows_loaded"])
		res.ErrorsSeen += atoi(r["errors_seen"])
		if res.FirstError == "" {
			res.FirstError = r["first_error"]
		}
	}
	return res, nil
}

func parseHistoryRow(r map[string]string) warehouse.LoadRecord {
	rec := warehouse.LoadRecord{
		FileName:   r["file_name"],
		Status:     r["status"],
		RowsParsed: atoi(r["row_parsed"]),
		RowsLoaded: atoi(r["row_count"]),
		ErrorsSeen: atoi(r["error_count"]),
		FirstError: r["first_error_message"],
	}
	if t, err := time.Parse(time.RFC3339Nano, r["last_load_time"]); err == nil {
		rec.LoadedAt = t
	}
	return rec
}

func parseGrantRow(r map[string]string) warehouse.Grant {
	return warehouse.Grant{Privilege: r["privilege"], GrantedTo: r["granted_to"], Grantee: r["grantee_name"]}
}

func atoi(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}
