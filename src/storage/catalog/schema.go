package catalog

import (
	"bufio"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/spf13/afero"

	"github.com/Blackdeer1524/HeapDB/src/storage"
	"github.com/Blackdeer1524/HeapDB/src/storage/tuple"
)

var ErrBadSchema = errors.New("malformed schema")

// FileOpener opens (or creates) the backing file of a table.
type FileOpener func(path string, desc *tuple.Desc) (storage.DbFile, error)

// TableSchema is one parsed line of a schema file.
type TableSchema struct {
	Name       string
	Desc       *tuple.Desc
	PrimaryKey string
}

// ParseSchemaLine parses
//
//	name (field type [pk], field type [pk], ...)
//
// where type is "int" or "string".
func ParseSchemaLine(line string) (TableSchema, error) {
	open := strings.IndexByte(line, '(')
	closing := strings.LastIndexByte(line, ')')
	if open <= 0 || closing < open {
		return TableSchema{}, errors.Wrapf(ErrBadSchema, "line %q", line)
	}

	name := strings.TrimSpace(line[:open])
	if name == "" {
		return TableSchema{}, errors.Wrapf(ErrBadSchema, "no table name in %q", line)
	}

	var (
		types      []tuple.Type
		names      []string
		primaryKey string
	)
	for _, col := range strings.Split(line[open+1:closing], ",") {
		parts := strings.Fields(col)
		if len(parts) < 2 || len(parts) > 3 {
			return TableSchema{}, errors.Wrapf(ErrBadSchema, "column %q of %s", col, name)
		}

		typ, err := tuple.ParseType(parts[1])
		if err != nil {
			return TableSchema{}, errors.Wrapf(err, "column %q of %s", col, name)
		}

		if len(parts) == 3 {
			if !strings.EqualFold(parts[2], "pk") {
				return TableSchema{}, errors.Wrapf(
					ErrBadSchema,
					"unknown annotation %q in %s",
					parts[2],
					name,
				)
			}
			primaryKey = parts[0]
		}

		types = append(types, typ)
		names = append(names, parts[0])
	}

	desc, err := tuple.NewDesc(types, names)
	if err != nil {
		return TableSchema{}, errors.Wrapf(err, "table %s", name)
	}

	return TableSchema{Name: name, Desc: desc, PrimaryKey: primaryKey}, nil
}

// LoadSchema reads a schema file and registers every table in it. The file
// of table "t" is "t.dat" in the schema's directory. Empty lines and lines
// starting with '#' are skipped.
func (c *Catalog) LoadSchema(fs afero.Fs, path string, open FileOpener) ([]TableSchema, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open schema %s", path)
	}
	defer f.Close()

	dir := filepath.Dir(path)

	var tables []TableSchema
	sc := bufio.NewScanner(f)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		schema, err := ParseSchemaLine(line)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", path, lineNo)
		}

		file, err := open(filepath.Join(dir, schema.Name+".dat"), schema.Desc)
		if err != nil {
			return nil, errors.Wrapf(err, "open table %s", schema.Name)
		}

		c.AddTable(file, schema.Name, schema.PrimaryKey)
		tables = append(tables, schema)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "read schema %s", path)
	}
	return tables, nil
}
