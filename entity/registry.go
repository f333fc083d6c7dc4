package entity

import (
	"reflect"
	"strings"
)

// Index describes a secondary index created alongside a table.
type Index struct {
	Name    string
	Columns []string
}

// Definition is the schema metadata of one entity: the model used by bun to
// build the table, raw foreign key clauses and secondary indexes.
type Definition struct {
	Model       any
	ForeignKeys []string
	Indexes     []Index
}

// Table returns the derived table name of the definition's model.
func (d Definition) Table() string {
	return TableOf(d.Model)
}

// Definitions lists every entity in creation order: referenced tables come
// before the tables that point at them.
//
// Deleting a user that still owns messages is rejected (ON DELETE RESTRICT);
// callers remove the messages first.
func Definitions() []Definition {
	return []Definition{
		{
			Model: (*User)(nil),
			Indexes: []Index{
				{Name: "ix_users_external_id", Columns: []string{"external_id"}},
			},
		},
		{
			Model: (*Message)(nil),
			ForeignKeys: []string{
				`("user_id") REFERENCES "users" ("id") ON DELETE RESTRICT`,
			},
			Indexes: []Index{
				{Name: "ix_messages_user_id", Columns: []string{"user_id"}},
				{Name: "ix_messages_session_id", Columns: []string{"session_id"}},
				{Name: "ix_messages_sent_at", Columns: []string{"sent_at"}},
			},
		},
	}
}

// Models returns the bare models of Definitions, in the same order.
func Models() []any {
	defs := Definitions()
	models := make([]any, len(defs))
	for i, def := range defs {
		models[i] = def.Model
	}
	return models
}

// ToMap returns the column values of a record keyed by column name.
// Embedded structs are flattened the same way bun flattens them.
func ToMap(record any) map[string]any {
	out := make(map[string]any)
	v := reflect.ValueOf(record)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return out
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return out
	}
	collectColumns(v, out)
	return out
}

func collectColumns(v reflect.Value, out map[string]any) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("bun")
		if tag == "-" {
			continue
		}

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			collectColumns(v.Field(i), out)
			continue
		}

		name, _, _ := strings.Cut(tag, ",")
		if strings.HasPrefix(name, "table:") {
			continue
		}
		if name == "" {
			name = toSnake(field.Name)
		}
		out[name] = v.Field(i).Interface()
	}
}
