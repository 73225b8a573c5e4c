package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	"gitlab.com/dirk.krummacker/relations-service/internal/timestamp"
)

// dialect holds the SQL fragments that differ between the supported databases. Every
// collection is a table (id, body) where body holds the document as JSON.
type dialect struct {
	// extractText yields the unquoted text of the JSON path given as parameter.
	extractText string
	// jsonValue turns a JSON text parameter into a JSON value.
	jsonValue string
	// incremented yields the number at the JSON path plus a delta, floored at zero.
	// Parameters: path, delta.
	incremented string
}

var dialects = map[string]dialect{
	"mysql": {
		extractText: "JSON_UNQUOTE(JSON_EXTRACT(body, ?))",
		jsonValue:   "CAST(? AS JSON)",
		incremented: "GREATEST(0, COALESCE(CAST(JSON_UNQUOTE(JSON_EXTRACT(body, ?)) AS SIGNED), 0) + ?)",
	},
	"sqlite3": {
		extractText: "json_extract(body, ?)",
		jsonValue:   "json(?)",
		incremented: "MAX(0, COALESCE(CAST(json_extract(body, ?) AS INTEGER), 0) + ?)",
	},
}

// row is a stored document as read from or written to a table.
type row struct {
	ID   string `db:"id"`
	Body string `db:"body"`
}

// statements are the prepared statements of one collection.
type statements struct {
	insert        *sqlx.NamedStmt
	selectWhereId *sqlx.Stmt
	deleteWhereId *sqlx.Stmt
}

// SQLStore keeps documents as JSON in a MySQL or SQLite database.
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
	stmts   map[string]*statements
}

// NewSQLStore wraps the specified sql database and prepares all statements. The
// database argument can be a real database or a mock database within unit tests. The
// driver name selects the SQL dialect and must be "mysql" or "sqlite3".
func NewSQLStore(sqlDB *sql.DB, driverName string) (*SQLStore, error) {
	d, ok := dialects[driverName]
	if !ok {
		return nil, fmt.Errorf("unsupported sql driver %q", driverName)
	}
	s := &SQLStore{
		db:      sqlx.NewDb(sqlDB, driverName),
		dialect: d,
		stmts:   make(map[string]*statements, len(Collections)),
	}
	for _, c := range Collections {
		st, err := s.prepare(c)
		if err != nil {
			s.closeStatements()
			return nil, err
		}
		s.stmts[c] = st
	}
	return s, nil
}

// prepare prepares the fixed statements of a collection. Prepared statements offer a
// significant speed increase if executed many times. Queries and updates vary in shape
// and are built per call.
func (s *SQLStore) prepare(collection string) (*statements, error) {
	var st statements
	var err error
	st.insert, err = s.db.PrepareNamed(fmt.Sprintf(`
		INSERT INTO %s (id, body)
		VALUES (:id, :body)
	`, collection))
	if err != nil {
		return nil, classify("prepare insert", err)
	}
	st.selectWhereId, err = s.db.Preparex(fmt.Sprintf(`
		SELECT id, body FROM %s WHERE id = ?
	`, collection))
	if err != nil {
		return nil, classify("prepare select", err)
	}
	st.deleteWhereId, err = s.db.Preparex(fmt.Sprintf(`
		DELETE FROM %s WHERE id = ?
	`, collection))
	if err != nil {
		return nil, classify("prepare delete", err)
	}
	return &st, nil
}

// DB returns the wrapped database handle.
func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

func (s *SQLStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	st, err := s.statementsFor(collection)
	if err != nil {
		return "", err
	}
	if err := checkFields(fields); err != nil {
		return "", err
	}
	body, err := encodeBody(fields)
	if err != nil {
		return "", err
	}
	r := row{ID: newID(), Body: body}
	if _, err := st.insert.ExecContext(ctx, &r); err != nil {
		return "", classify("add", err)
	}
	return r.ID, nil
}

func (s *SQLStore) Get(ctx context.Context, collection string, id string) (Document, bool, error) {
	st, err := s.statementsFor(collection)
	if err != nil {
		return Document{}, false, err
	}
	var rows []row
	if err := st.selectWhereId.SelectContext(ctx, &rows, id); err != nil {
		return Document{}, false, classify("get", err)
	}
	if len(rows) == 0 {
		return Document{}, false, nil
	}
	doc, err := decodeRow(rows[0])
	if err != nil {
		return Document{}, false, err
	}
	return doc, true, nil
}

func (s *SQLStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if _, err := s.statementsFor(collection); err != nil {
		return nil, err
	}
	if err := checkQuery(q); err != nil {
		return nil, err
	}
	var args []interface{}
	query := "SELECT id, body FROM " + collection
	for i, f := range q.Where {
		if i == 0 {
			query += " WHERE "
		} else {
			query += " AND "
		}
		query += s.dialect.extractText + " = ?"
		args = append(args, "$."+f.Field, f.Value)
	}
	if q.OrderBy != "" {
		query += " ORDER BY " + s.dialect.extractText
		args = append(args, "$."+q.OrderBy)
		if q.Descending {
			query += " DESC"
		} else {
			query += " ASC"
		}
		query += ", id ASC"
	} else {
		query += " ORDER BY id ASC"
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classify("query", err)
	}
	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		doc, err := decodeRow(r)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *SQLStore) Update(ctx context.Context, collection string, id string, fields Fields) error {
	if _, err := s.statementsFor(collection); err != nil {
		return err
	}
	if err := checkFields(fields); err != nil {
		return err
	}
	// It only makes sense to continue if we have at least one value to update.
	if len(fields) == 0 {
		return fmt.Errorf("no values to be updated")
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var args []interface{}
	assignments := make([]string, 0, len(keys))
	for _, k := range keys {
		value, err := json.Marshal(encodeValue(fields[k]))
		if err != nil {
			return fmt.Errorf("encoding field %s: %w", k, err)
		}
		assignments = append(assignments, "?, "+s.dialect.jsonValue)
		args = append(args, "$."+k, string(value))
	}
	query := fmt.Sprintf("UPDATE %s SET body = JSON_SET(body, %s) WHERE id = ?",
		collection, strings.Join(assignments, ", "))
	args = append(args, id)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return classify("update", err)
	}
	return requireRow("update", collection, id, result)
}

func (s *SQLStore) Increment(ctx context.Context, collection string, id string, field string, delta int64) error {
	if _, err := s.statementsFor(collection); err != nil {
		return err
	}
	if err := checkField(field); err != nil {
		return err
	}
	path := "$." + field
	query := fmt.Sprintf("UPDATE %s SET body = JSON_SET(body, ?, %s) WHERE id = ?",
		collection, s.dialect.incremented)
	result, err := s.db.ExecContext(ctx, query, path, path, delta, id)
	if err != nil {
		return classify("increment", err)
	}
	return requireRow("increment", collection, id, result)
}

func (s *SQLStore) Delete(ctx context.Context, collection string, id string) error {
	st, err := s.statementsFor(collection)
	if err != nil {
		return err
	}
	if _, err := st.deleteWhereId.ExecContext(ctx, id); err != nil {
		return classify("delete", err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return classify("ping", s.db.PingContext(ctx))
}

// Close closes the prepared statements and the database.
func (s *SQLStore) Close() error {
	s.closeStatements()
	return s.db.Close()
}

func (s *SQLStore) closeStatements() {
	for _, st := range s.stmts {
		if st.insert != nil {
			st.insert.Close()
		}
		if st.selectWhereId != nil {
			st.selectWhereId.Close()
		}
		if st.deleteWhereId != nil {
			st.deleteWhereId.Close()
		}
	}
}

func (s *SQLStore) statementsFor(collection string) (*statements, error) {
	st, ok := s.stmts[collection]
	if !ok {
		return nil, checkCollection(collection)
	}
	return st, nil
}

// requireRow fails with CodeNotFound if the statement matched no row. MySQL connections
// must be opened with clientFoundRows, otherwise unchanged rows count as not affected.
func requireRow(op, collection, id string, result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if n == 0 {
		return NewNotFound(op, collection, id)
	}
	return nil
}

// encodeBody returns the JSON text of a document. MySQL refuses JSON values sent with
// the binary character set, so bodies travel as strings.
func encodeBody(fields Fields) (string, error) {
	body, err := json.Marshal(encodeValue(map[string]any(fields)))
	if err != nil {
		return "", fmt.Errorf("encoding document: %w", err)
	}
	return string(body), nil
}

// encodeValue replaces native times with their persisted form.
func encodeValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return timestamp.Encode(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return timestamp.Encode(*x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = encodeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = encodeValue(e)
		}
		return out
	default:
		return v
	}
}

// decodeValue turns persisted native times back into time.Time.
func decodeValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		if t, ok := timestamp.Decode(x); ok {
			return t
		}
		for k, e := range x {
			x[k] = decodeValue(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = decodeValue(e)
		}
		return x
	default:
		return v
	}
}

func decodeRow(r row) (Document, error) {
	fields := Fields{}
	if err := json.Unmarshal([]byte(r.Body), &fields); err != nil {
		return Document{}, &BackendError{Op: "decode", Code: CodeUnknown, Err: fmt.Errorf("document %s: %w", r.ID, err)}
	}
	for k, v := range fields {
		fields[k] = decodeValue(v)
	}
	return Document{ID: r.ID, Fields: fields}, nil
}
