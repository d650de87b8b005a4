// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package sqlitecat implements cat.Catalog on top of a SQLite database.
//
// Column types and nullability come from the declared schema. Keys are the
// primary key and the unique indexes that are neither partial nor built on
// expressions. Statistics are read from sqlite_stat1, which ANALYZE fills: the
// row count of each table and the number of distinct values of the leading
// column of each index. A table with an INTEGER PRIMARY KEY is stored, and
// therefore read, in the order of that key.
package sqlitecat

import (
	"context"
	"database/sql"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/sql/opt"
	"github.com/cockroachdb/optmd/pkg/sql/opt/cat"
	"github.com/cockroachdb/optmd/pkg/sql/opt/plan"
	"github.com/cockroachdb/optmd/pkg/sql/types"
	"github.com/cockroachdb/optmd/pkg/util/log"
	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

// Catalog reads table definitions from a SQLite database.
type Catalog struct {
	db *sql.DB
}

var _ cat.Catalog = (*Catalog)(nil)

// Open opens the SQLite database at path; ":memory:" opens a private
// in-memory database.
func Open(ctx context.Context, path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	// Every connection to ":memory:" is a different database.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	return &Catalog{db: db}, nil
}

// New returns a catalog reading from an open database.
func New(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

// DB returns the underlying database.
func (c *Catalog) DB() *sql.DB { return c.db }

// Close closes the database.
func (c *Catalog) Close() error { return c.db.Close() }

// TableNames is part of the cat.Catalog interface. Internal tables are
// omitted.
func (c *Catalog) TableNames(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
		 ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "listing tables")
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, errors.Wrap(rows.Err(), "listing tables")
}

// Table is part of the cat.Catalog interface. Names are matched case
// insensitively, the way SQLite does.
func (c *Catalog) Table(ctx context.Context, name string) (*plan.Table, error) {
	var canonical string
	err := c.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE`,
		name).Scan(&canonical)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Mark(errors.Newf("unknown table %q", name), cat.ErrUnknownTable)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "looking up table %q", name)
	}

	t := &plan.Table{Name: canonical, Distribution: opt.Singleton}
	pk, rowidAlias, err := c.readColumns(ctx, t)
	if err != nil {
		return nil, err
	}
	if !pk.Empty() {
		t.Keys = append(t.Keys, pk)
	}
	if rowidAlias {
		t.Collations = []opt.Ordering{{opt.MakeOrderingColumn(pk.Ordered()[0], false)}}
	}
	indexes, err := c.readIndexes(ctx, canonical)
	if err != nil {
		return nil, err
	}
	for _, idx := range indexes {
		if idx.unique && !idx.partial && !idx.hasExpr && !containsKey(t.Keys, idx.cols) {
			t.Keys = append(t.Keys, idx.cols)
		}
	}
	sortKeys(t.Keys)
	if t.Stats, err = c.readStats(ctx, canonical, indexes); err != nil {
		return nil, err
	}
	log.VEventf(ctx, 2, "loaded table %s: %d columns, %d keys, row count known: %t",
		canonical, len(t.Cols), len(t.Keys), t.Stats.HasRowCount)
	return t, nil
}

// readColumns fills in the columns of t and returns its primary key. The
// second result is true if the key is an alias of the rowid.
func (c *Catalog) readColumns(ctx context.Context, t *plan.Table) (opt.ColSet, bool, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT cid, name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`, t.Name)
	if err != nil {
		return opt.ColSet{}, false, errors.Wrapf(err, "reading columns of %s", t.Name)
	}
	defer rows.Close()

	var pk opt.ColSet
	var pkType string
	for rows.Next() {
		var cid, notNull, pkPos int
		var name, decl string
		if err := rows.Scan(&cid, &name, &decl, &notNull, &pkPos); err != nil {
			return opt.ColSet{}, false, err
		}
		t.Cols = append(t.Cols, plan.Column{
			Name: name,
			Type: ColumnType(decl),
			// Primary key columns are treated as NOT NULL even though SQLite
			// tolerates NULLs in some of them.
			Nullable: notNull == 0 && pkPos == 0,
		})
		if pkPos > 0 {
			pk.Add(cid)
			pkType = decl
		}
	}
	if err := rows.Err(); err != nil {
		return opt.ColSet{}, false, errors.Wrapf(err, "reading columns of %s", t.Name)
	}
	rowidAlias := pk.Len() == 1 && strings.EqualFold(strings.TrimSpace(pkType), "INTEGER")
	return pk, rowidAlias, nil
}

type index struct {
	name    string
	unique  bool
	partial bool
	// hasExpr is set for indexes on expressions.
	hasExpr bool
	cols    opt.ColSet
	// lead is the leading key column, or -1.
	lead int
}

func (c *Catalog) readIndexes(ctx context.Context, table string) ([]index, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT name, "unique", partial FROM pragma_index_list(?) ORDER BY seq`, table)
	if err != nil {
		return nil, errors.Wrapf(err, "reading indexes of %s", table)
	}
	var indexes []index
	for rows.Next() {
		idx := index{lead: -1}
		if err := rows.Scan(&idx.name, &idx.unique, &idx.partial); err != nil {
			rows.Close()
			return nil, err
		}
		indexes = append(indexes, idx)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading indexes of %s", table)
	}

	for i := range indexes {
		if err := c.readIndexColumns(ctx, &indexes[i]); err != nil {
			return nil, errors.Wrapf(err, "reading index %s of %s", indexes[i].name, table)
		}
	}
	return indexes, nil
}

func (c *Catalog) readIndexColumns(ctx context.Context, idx *index) error {
	rows, err := c.db.QueryContext(ctx,
		`SELECT cid FROM pragma_index_xinfo(?) WHERE key = 1 ORDER BY seqno`, idx.name)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		if err := rows.Scan(&cid); err != nil {
			return err
		}
		if cid < 0 {
			idx.hasExpr = true
			continue
		}
		if idx.cols.Empty() && !idx.hasExpr {
			idx.lead = cid
		}
		idx.cols.Add(cid)
	}
	return rows.Err()
}

// readStats reads sqlite_stat1. Each row holds the number of rows of the
// table followed, for an index, by the average number of rows per distinct
// value of each prefix of the index key.
func (c *Catalog) readStats(
	ctx context.Context, table string, indexes []index,
) (plan.TableStats, error) {
	var stats plan.TableStats
	var hasStats int
	if err := c.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'sqlite_stat1'`,
	).Scan(&hasStats); err != nil || hasStats == 0 {
		return stats, errors.Wrap(err, "looking up sqlite_stat1")
	}

	rows, err := c.db.QueryContext(ctx, `SELECT idx, stat FROM sqlite_stat1 WHERE tbl = ?`, table)
	if err != nil {
		return stats, errors.Wrapf(err, "reading statistics of %s", table)
	}
	defer rows.Close()
	byName := make(map[string]*index, len(indexes))
	for i := range indexes {
		byName[indexes[i].name] = &indexes[i]
	}
	for rows.Next() {
		var idx sql.NullString
		var stat string
		if err := rows.Scan(&idx, &stat); err != nil {
			return stats, err
		}
		nums := parseStat(stat)
		info := byName[idx.String]
		// A partial index only counts the rows it covers.
		if len(nums) == 0 || (info != nil && info.partial) {
			continue
		}
		stats.RowCount, stats.HasRowCount = nums[0], true
		if !idx.Valid || info == nil || info.lead < 0 || len(nums) < 2 || nums[1] < 1 {
			continue
		}
		col := info.lead
		if stats.DistinctCounts == nil {
			stats.DistinctCounts = make(map[int]float64)
		}
		distinct := math.Max(math.Round(nums[0]/nums[1]), 1)
		stats.DistinctCounts[col] = math.Max(stats.DistinctCounts[col], distinct)
	}
	return stats, errors.Wrapf(rows.Err(), "reading statistics of %s", table)
}

// parseStat returns the leading numbers of a sqlite_stat1 entry. Options
// such as "unordered" may follow them.
func parseStat(s string) []float64 {
	var res []float64
	for _, f := range strings.Fields(s) {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			break
		}
		res = append(res, n)
	}
	return res
}

// ColumnType maps a declared SQLite column type to a column type. Names that
// are not SQL type names are classified with SQLite's affinity rules. SQLite
// stores every floating point value in 8 bytes.
func ColumnType(decl string) types.T {
	if t, err := types.Parse(decl); err == nil {
		if t.Family == types.FloatFamily {
			return types.Float
		}
		return t
	}
	upper := strings.ToUpper(decl)
	switch {
	case strings.Contains(upper, "INT"):
		return types.Int
	case strings.Contains(upper, "CHAR"), strings.Contains(upper, "CLOB"),
		strings.Contains(upper, "TEXT"):
		return types.String
	case strings.Contains(upper, "BLOB"):
		return types.Bytes
	case strings.Contains(upper, "REAL"), strings.Contains(upper, "FLOA"),
		strings.Contains(upper, "DOUB"):
		return types.Float
	}
	return types.Decimal
}

func containsKey(keys []opt.ColSet, cols opt.ColSet) bool {
	for _, k := range keys {
		if k.Equals(cols) {
			return true
		}
	}
	return false
}

// sortKeys orders keys by their columns.
func sortKeys(keys []opt.ColSet) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i].Ordered(), keys[j].Ordered()
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return len(a) < len(b)
	})
}
