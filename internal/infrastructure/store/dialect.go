package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Dialect selects the SQL flavour and driver.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

func ParseDialect(s string) (Dialect, error) {
	switch Dialect(strings.ToLower(s)) {
	case Postgres, "postgresql", "pq":
		return Postgres, nil
	case MySQL:
		return MySQL, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", s)
}

func (d Dialect) DriverName() string {
	return string(d)
}

// Rebind rewrites ? placeholders into the dialect's form.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// LockTimeoutStmt bounds row-lock waits. Postgres scopes it to the
// transaction, MySQL to the session.
func (d Dialect) LockTimeoutStmt(timeout time.Duration) string {
	if timeout <= 0 {
		return ""
	}
	switch d {
	case Postgres:
		return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())
	case MySQL:
		secs := max(int(timeout.Round(time.Second)/time.Second), 1)
		return fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", secs)
	}
	return ""
}

// classify tags deadlocks, lock-wait timeouts and serialization failures
// with ErrTransient, leaving every other error untouched.
func classify(err error) error {
	if err == nil || errors.Is(err, ErrTransient) {
		return err
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40P01", "55P03", "40001":
			return fmt.Errorf("%w: %w", ErrTransient, err)
		}
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1205, 1213:
			return fmt.Errorf("%w: %w", ErrTransient, err)
		}
	}
	return err
}
