package host

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/chazu/libeval/vm"
)

// ---------------------------------------------------------------------------
// Store: SQLite-backed host
// ---------------------------------------------------------------------------

// objectRow is the property name of the row holding an object's own value.
const objectRow = ""

// Store is a vm.Host backed by a SQLite table of object properties. Each
// row holds one (object, property) pair with either a numeric or a text
// value. References query the database on every read.
type Store struct {
	*Funcs

	db *sql.DB
}

// OpenStore opens or creates the database at path. ":memory:" gives a
// private in-memory database.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open database, creating the properties table if
// needed.
func NewStore(db *sql.DB) (*Store, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS properties (
		object   TEXT NOT NULL,
		property TEXT NOT NULL,
		num      REAL,
		str      TEXT,
		PRIMARY KEY (object, property)
	)`)
	if err != nil {
		return nil, fmt.Errorf("creating table: %w", err)
	}
	return &Store{Funcs: NewFuncs(), db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores a property value. An empty property stores the value of the
// object itself.
func (s *Store) Put(object, property string, v vm.Value) error {
	var num sql.NullFloat64
	var str sql.NullString
	switch v.Type() {
	case vm.TypeNumeric:
		num = sql.NullFloat64{Float64: v.AsDouble(), Valid: true}
	case vm.TypeString:
		str = sql.NullString{String: v.AsString(), Valid: true}
	case vm.TypeUndefined, vm.TypeParseError:
	}

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO properties (object, property, num, str) VALUES (?, ?, ?, ?)",
		object, property, num, str,
	)
	if err != nil {
		return fmt.Errorf("storing %s.%s: %w", object, property, err)
	}
	return nil
}

// Delete removes an object and all of its properties.
func (s *Store) Delete(object string) error {
	if _, err := s.db.Exec("DELETE FROM properties WHERE object = ?", object); err != nil {
		return fmt.Errorf("deleting %s: %w", object, err)
	}
	return nil
}

// Get reads a property value. ok is false when the row does not exist.
func (s *Store) Get(object, property string) (v vm.Value, ok bool, err error) {
	var num sql.NullFloat64
	var str sql.NullString
	err = s.db.QueryRow(
		"SELECT num, str FROM properties WHERE object = ? AND property = ?",
		object, property,
	).Scan(&num, &str)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return vm.Value{}, false, nil
		}
		return vm.Value{}, false, fmt.Errorf("querying %s.%s: %w", object, property, err)
	}

	switch {
	case num.Valid:
		return vm.NewNumber(num.Float64), true, nil
	case str.Valid:
		return vm.NewString(str.String), true, nil
	}
	return vm.Value{}, true, nil
}

// Objects returns the distinct object names, sorted.
func (s *Store) Objects() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT object FROM properties ORDER BY object")
	if err != nil {
		return nil, fmt.Errorf("listing objects: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning object: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) hasObject(object string) (bool, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM properties WHERE object = ?", object).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying %s: %w", object, err)
	}
	return n > 0, nil
}

// ResolveVariable implements vm.Host. An object exists when it has at
// least one row. Database errors resolve to nil.
func (s *Store) ResolveVariable(object, property string) vm.VarRef {
	exists, err := s.hasObject(object)
	if err != nil || !exists {
		return nil
	}
	if property == "" {
		typ := vm.TypeString
		if v, ok, err := s.Get(object, objectRow); err == nil && ok {
			typ = v.Type()
		}
		return &storeRef{s: s, object: object, property: objectRow, typ: typ}
	}

	v, ok, err := s.Get(object, property)
	if err != nil {
		return nil
	}
	if !ok {
		return badProperty{}
	}
	return &storeRef{s: s, object: object, property: property, typ: v.Type()}
}

// storeRef references a row, or an object when property is empty.
type storeRef struct {
	s        *Store
	object   string
	property string
	typ      vm.Type
}

func (r *storeRef) Type() vm.Type {
	return r.typ
}

func (r *storeRef) Value(ctx *vm.Context) vm.Value {
	v, ok, err := r.s.Get(r.object, r.property)
	if err != nil {
		ctx.ReportError(err.Error())
		return vm.Value{}
	}
	if !ok && r.property == objectRow {
		return vm.NewString(r.object)
	}
	return v
}

func (r *storeRef) Name() string {
	return r.object
}

func (r *storeRef) Lookup(property string) (vm.Value, bool) {
	v, ok, err := r.s.Get(r.object, property)
	if err != nil {
		return vm.Value{}, false
	}
	return v, ok
}
