// Package dbio reads citation networks from and writes classifications to a
// relational database. SQLite (modernc.org/sqlite) and PostgreSQL (lib/pq)
// are supported.
//
// The publications table has columns pub_no and core_pub, with publication
// numbers running from zero without gaps. The citation links table has
// columns pub_no1, pub_no2 and cit_weight.
package dbio

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/gilchrisn/publication-classification/pkg/network"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	tableNameRegex   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
	columnNameRegex  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	placeholderRegex = regexp.MustCompile(`\?`)
)

// DB wraps a database connection with driver-aware query handling
type DB struct {
	conn   *sql.DB
	driver string
}

// Open opens a database connection. An empty driver is detected from the
// DSN: postgres:// and postgresql:// URLs use PostgreSQL, anything else is
// treated as a SQLite path.
func Open(driver, dsn string) (*DB, error) {
	if driver == "" {
		driver = detectDriver(dsn)
	}
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	return &DB{conn: conn, driver: driver}, nil
}

func detectDriver(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Driver returns the driver name
func (db *DB) Driver() string {
	return db.driver
}

// Conn returns the underlying connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// convertPlaceholders converts ? to $1, $2, etc. for PostgreSQL
func convertPlaceholders(query string) string {
	counter := 0
	return placeholderRegex.ReplaceAllStringFunc(query, func(_ string) string {
		counter++
		return fmt.Sprintf("$%d", counter)
	})
}

func (db *DB) rebind(query string) string {
	if db.driver == DriverPostgres {
		return convertPlaceholders(query)
	}
	return query
}

func checkTableName(name string) error {
	if !tableNameRegex.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// ReadNetwork reads the citation network stored in a publications table and
// a citation links table
func (db *DB) ReadNetwork(ctx context.Context, pubTable, citLinkTable string) (*network.Network, error) {
	if err := checkTableName(pubTable); err != nil {
		return nil, err
	}
	if err := checkTableName(citLinkTable); err != nil {
		return nil, err
	}

	pubWeights, err := db.readPublications(ctx, pubTable)
	if err != nil {
		return nil, fmt.Errorf("reading publications from %s: %w", pubTable, err)
	}
	links, err := db.readCitationLinks(ctx, citLinkTable)
	if err != nil {
		return nil, fmt.Errorf("reading citation links from %s: %w", citLinkTable, err)
	}

	net, err := network.New(pubWeights, links)
	if err != nil {
		return nil, fmt.Errorf("creating citation network: %w", err)
	}
	return net, nil
}

func (db *DB) readPublications(ctx context.Context, table string) ([]float64, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT pub_no, core_pub FROM "+table+" ORDER BY pub_no")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var weights []float64
	for rows.Next() {
		var pubNo int
		var core any
		if err := rows.Scan(&pubNo, &core); err != nil {
			return nil, err
		}
		if pubNo != len(weights) {
			return nil, fmt.Errorf("publication numbers must be integers starting at zero without gaps (found %d at position %d)", pubNo, len(weights))
		}
		weight, err := coreWeight(core)
		if err != nil {
			return nil, fmt.Errorf("publication %d: %w", pubNo, err)
		}
		weights = append(weights, weight)
	}
	return weights, rows.Err()
}

// coreWeight converts a core_pub value to a publication weight. Booleans,
// integers and their textual forms are accepted.
func coreWeight(v any) (float64, error) {
	switch core := v.(type) {
	case nil:
		return 0, nil
	case bool:
		if core {
			return 1, nil
		}
		return 0, nil
	case int64:
		if core != 0 {
			return 1, nil
		}
		return 0, nil
	case float64:
		if core != 0 {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return coreWeight(string(core))
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(core))
		if err != nil {
			return 0, fmt.Errorf("invalid core_pub value %q", core)
		}
		return coreWeight(b)
	default:
		return 0, fmt.Errorf("invalid core_pub value of type %T", v)
	}
}

func (db *DB) readCitationLinks(ctx context.Context, table string) ([]network.Link, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT pub_no1, pub_no2, cit_weight FROM "+table+" ORDER BY pub_no1, pub_no2")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []network.Link
	for rows.Next() {
		var link network.Link
		if err := rows.Scan(&link.From, &link.To, &link.Weight); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// WriteClassification replaces table with one row per publication holding
// the publication number and its cluster at each level. Level names become
// <name>_cluster_no columns. All rows are written in a single transaction.
func (db *DB) WriteClassification(ctx context.Context, table string, pubs []int, clusters [][]int, levelNames []string) error {
	if err := checkTableName(table); err != nil {
		return err
	}
	if len(levelNames) != len(clusters) {
		return fmt.Errorf("%d level names for %d levels", len(levelNames), len(clusters))
	}
	columns := make([]string, len(levelNames))
	for l, name := range levelNames {
		if !columnNameRegex.MatchString(name) {
			return fmt.Errorf("invalid level name %q", name)
		}
		if len(clusters[l]) != len(pubs) {
			return fmt.Errorf("level %s has %d cluster assignments for %d publications", name, len(clusters[l]), len(pubs))
		}
		columns[l] = name + "_cluster_no"
	}

	var create strings.Builder
	create.WriteString("CREATE TABLE " + table + " (pub_no INTEGER NOT NULL")
	for _, column := range columns {
		create.WriteString(", " + column + " INTEGER NOT NULL")
	}
	create.WriteString(")")
	insert := "INSERT INTO " + table + " VALUES (?" + strings.Repeat(", ?", len(columns)) + ")"

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return fmt.Errorf("dropping table %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, create.String()); err != nil {
		return fmt.Errorf("creating table %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, db.rebind(insert))
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(columns)+1)
	for i, pub := range pubs {
		args[0] = pub
		for l := range clusters {
			args[l+1] = clusters[l][i]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("inserting publication %d: %w", pub, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing classification: %w", err)
	}
	return nil
}
