/*
Package sqlpanel reads panels from a table on an SQL database. SQLite3
database files and PostgreSQL databases are supported.
*/
package sqlpanel

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pbanos/ptree/panel"

	// Import of PostgreSQL driver
	_ "github.com/lib/pq"
	// Import of sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
)

// DefaultTable is the table read when none is given.
const DefaultTable = "panel"

/*
Driver takes a data source string and returns the name of the database/sql
driver that can open it: "postgres" for postgres:// and postgresql:// URLs,
"sqlite3" otherwise.
*/
func Driver(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	return "sqlite3"
}

/*
Open takes a context, a data source string and returns an sqlx.DB connected
to it with the driver chosen by Driver, or an error.
*/
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, Driver(dsn), dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s database: %v", Driver(dsn), err)
	}
	return db, nil
}

/*
ReadPanel takes a context, a database, a table name and a schema and returns
the panel stored on the table or an error. All columns of the table are read;
the schema picks the ones making up the observations.
*/
func ReadPanel(ctx context.Context, db *sqlx.DB, table string, schema panel.Schema) (*panel.Panel, error) {
	if table == "" {
		table = DefaultTable
	}
	if strings.ContainsAny(table, `"; `) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	rows, err := db.QueryxContext(ctx, fmt.Sprintf(`SELECT * FROM "%s"`, table))
	if err != nil {
		return nil, fmt.Errorf("querying panel table %s: %v", table, err)
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("listing columns of panel table %s: %v", table, err)
	}
	chars, err := schema.CharacteristicColumns(columns)
	if err != nil {
		return nil, err
	}
	b := panel.NewBuilder(chars)
	for l := 1; rows.Next(); l++ {
		row := make(map[string]interface{}, len(columns))
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scanning row %d of %s: %v", l, table, err)
		}
		month, err := toString(row[schema.MonthColumn])
		if err != nil {
			return nil, fmt.Errorf("row %d: month: %v", l, err)
		}
		asset, err := toString(row[schema.AssetColumn])
		if err != nil {
			return nil, fmt.Errorf("row %d: asset: %v", l, err)
		}
		o := panel.Observation{Asset: asset, LossWeight: 1, Characteristics: make([]float64, len(chars))}
		if o.Return, err = toFloat(row[schema.ReturnColumn]); err != nil {
			return nil, fmt.Errorf("row %d: return: %v", l, err)
		}
		if o.Weight, err = toFloat(row[schema.WeightColumn]); err != nil {
			return nil, fmt.Errorf("row %d: weight: %v", l, err)
		}
		if schema.LossWeightColumn != "" {
			if o.LossWeight, err = toFloat(row[schema.LossWeightColumn]); err != nil {
				return nil, fmt.Errorf("row %d: loss weight: %v", l, err)
			}
		}
		for j, c := range chars {
			if o.Characteristics[j], err = toFloat(row[c]); err != nil {
				return nil, fmt.Errorf("row %d: %s: %v", l, c, err)
			}
		}
		if err := b.Add(month, o); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading panel table %s: %v", table, err)
	}
	return b.Panel()
}

func toFloat(v interface{}) (float64, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	case string:
		return strconv.ParseFloat(v, 64)
	case nil:
		return 0, fmt.Errorf("missing value")
	}
	return 0, fmt.Errorf("unexpected %T value", v)
}

func toString(v interface{}) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case time.Time:
		return v.Format("2006-01-02"), nil
	case nil:
		return "", fmt.Errorf("missing value")
	}
	return "", fmt.Errorf("unexpected %T value", v)
}
