package sqlxrepos

import (
	"database/sql"
	"database/sql/driver"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/ensinoverso/backend/core"
)

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == uniqueViolationCode
	}
	return false
}

// dbError wraps a repository error. A lost connection becomes a shutdown
// error so the API stops taking requests instead of failing them one by one.
func dbError(err error, msg string) error {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return core.NewShutdownError(msg + ": " + err.Error())
	}
	return errors.Wrap(err, msg)
}

// orderingClause renders an ORDER BY clause from the requested ordering.
// Fields are interpolated into the statement, so only names present in
// `sortable` may pass; anything else is dropped. `fallback` is used when no
// requested field survives.
func orderingClause(ordering []core.DBOrdering, sortable map[string]bool, fallback string) string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if sortable[ord.Field] {
			clauses = append(clauses, ord.String())
		}
	}
	if len(clauses) == 0 {
		if fallback == "" {
			return ""
		}
		return " ORDER BY " + fallback
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}
