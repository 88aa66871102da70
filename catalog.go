package main

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var charTypePattern = regexp.MustCompile(`^(varchar|char)\((\d+)\)$`)

// blobTypes maps the text types to the binary type used as the intermediate
// step of a conversion.
var blobTypes = map[string]string{
	"tinytext":   "tinyblob",
	"text":       "blob",
	"mediumtext": "mediumblob",
	"longtext":   "longblob",
}

// loadDatabase reads the database-level character set, collation and server version.
func loadDatabase(ctx context.Context, sess Session, name, prefix string) (*Database, error) {
	db := &Database{Name: name, Prefix: prefix}
	var err error
	if db.Charset, err = sess.Variable(ctx, "character_set_database"); err != nil {
		return nil, fmt.Errorf("determine database character set: %w", err)
	}
	if db.Collation, err = sess.Variable(ctx, "collation_database"); err != nil {
		return nil, fmt.Errorf("determine database collation: %w", err)
	}
	if db.ServerVersion, err = sess.ServerVersion(ctx); err != nil {
		return nil, fmt.Errorf("determine server version: %w", err)
	}
	return db, nil
}

// loadCatalog enumerates the tables of database whose names start with prefix
// and classifies their columns.
func loadCatalog(ctx context.Context, sess Session, database, prefix string) (*Catalog, error) {
	status, err := sess.TableStatus(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("introspect tables: %w", err)
	}

	var tables []*Table
	for _, st := range status {
		if !strings.HasPrefix(st.Name, prefix) {
			continue
		}
		// Views show up in SHOW TABLE STATUS with no engine.
		if !st.Engine.Valid && strings.EqualFold(st.Comment.String, "VIEW") {
			continue
		}
		t := &Table{
			Name:      st.Name,
			Engine:    st.Engine.String,
			Collation: st.Collation.String,
			Rows:      st.Rows.Int64,
			Comment:   st.Comment.String,
		}

		cols, err := sess.Columns(ctx, database, t.Name)
		if err != nil {
			return nil, fmt.Errorf("introspect columns for %s: %w", t.Name, err)
		}
		for _, row := range cols {
			col := classifyColumn(row)
			switch {
			case col.IsDateType():
				t.HasDateFields = true
			case col.Alter != nil:
				t.HasTextFields = true
			}
			t.Columns = append(t.Columns, col)
		}
		tables = append(tables, t)
	}
	return newCatalog(tables), nil
}

// classifyColumn maps an information_schema row onto a Column and, for
// convertible text columns, derives the clauses used to MODIFY it.
func classifyColumn(row columnRow) Column {
	col := Column{
		Name:           row.Field,
		Type:           row.Type,
		Charset:        row.Charset.String,
		Collation:      row.Collation.String,
		Nullable:       strings.EqualFold(row.Null, "YES"),
		Key:            row.Key,
		Extra:          row.Extra,
		KnownFieldType: true,
	}
	if row.Default.Valid {
		d := row.Default.String
		col.Default = &d
	}

	fieldType := normalizedType(row.Type)
	if fieldType == "date" || fieldType == "datetime" || !row.Charset.Valid {
		return col
	}

	if isGeneratedColumn(col) {
		col.KnownFieldType = false
		return col
	}

	params := &AlterParameters{}
	if !col.Nullable {
		params.AllowNull = "NOT NULL"
	} else {
		params.Default = "DEFAULT NULL"
	}
	if col.Default != nil && *col.Default != "NULL" {
		value := strings.Trim(*col.Default, "'")
		if strings.Contains(fieldType, "char") || strings.HasPrefix(fieldType, "enum") {
			value = mysqlString(value)
		}
		params.Default = "DEFAULT " + value
	}

	if bin, ok := blobTypes[fieldType]; ok {
		params.BinType = bin
		params.TextType = fieldType
	} else if strings.HasPrefix(fieldType, "enum(") {
		// Enums keep their declared value list verbatim and skip the binary step.
		if _, err := parseEnumValues(row.Type); err != nil {
			col.KnownFieldType = false
			return col
		}
		params.TextType = row.Type
	} else if m := charTypePattern.FindStringSubmatch(fieldType); m != nil {
		params.BinType = strings.TrimSuffix(m[1], "char") + "binary(" + m[2] + ")"
		params.TextType = fieldType
	} else {
		col.KnownFieldType = false
		return col
	}
	col.Alter = params
	return col
}

func normalizedType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
