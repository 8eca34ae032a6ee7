package sync

import (
	"encoding/json"
	"fmt"
	"os"
)

// Mapping translates relational column names to Airtable field names. It is
// loaded from a JSON export of the jobs table schema.
type Mapping map[string]string

type schemaField struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	SourceColumn string `json:"supabase_source_column"`
}

type schemaFile struct {
	Fields []schemaField `json:"fields"`
}

// LoadMapping reads the schema export and keeps every field annotated with a
// source column, skipping computed last-modified fields, which the external
// API rejects on write.
func LoadMapping(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	var schema schemaFile
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("parse schema file %s: %w", path, err)
	}
	m := make(Mapping)
	for _, f := range schema.Fields {
		if f.SourceColumn == "" || f.Type == "lastModifiedTime" {
			continue
		}
		m[f.SourceColumn] = f.Name
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("schema file %s maps no columns", path)
	}
	return m, nil
}

// Restrict returns the sub-mapping covering only the given columns.
func (m Mapping) Restrict(cols []string) Mapping {
	out := make(Mapping, len(cols))
	for _, col := range cols {
		if name, ok := m[col]; ok {
			out[col] = name
		}
	}
	return out
}
