package search

import (
	"encoding/json"
	"fmt"

	"github.com/iancoleman/strcase"
	"gopkg.in/yaml.v3"

	"github.com/hashicorp-forge/dwclient/internal/cmd/base"
	"github.com/hashicorp-forge/dwclient/pkg/results"
)

type format int

const (
	formatTable format = iota
	formatJSON
	formatYAML
)

func parseFormat(s string) (format, error) {
	switch s {
	case "", "table":
		return formatTable, nil
	case "json":
		return formatJSON, nil
	case "yaml":
		return formatYAML, nil
	}
	return 0, fmt.Errorf("unknown format %q, use table, json or yaml", s)
}

func render(f format, records []*results.Record) (string, error) {
	switch f {
	case formatJSON:
		b, err := json.MarshalIndent(items(records), "", "  ")
		return string(b), err
	case formatYAML:
		b, err := yaml.Marshal(items(records))
		return string(b), err
	default:
		return table(records), nil
	}
}

// items flattens records into maps keyed by snake_case field ids.
func items(records []*results.Record) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(records))
	for _, r := range records {
		item := map[string]interface{}{
			"title":        r.Title,
			"content_type": r.ContentType,
		}
		if r.Document != nil {
			item["id"] = r.Document.ID
		}
		for _, f := range r.Fields {
			item[strcase.ToSnake(f.ID)] = f.Value
		}
		out = append(out, item)
	}
	return out
}

func table(records []*results.Record) string {
	header := []string{"Title"}
	columns := map[string]int{}
	for _, r := range records {
		for _, f := range r.Fields {
			if _, ok := columns[f.ID]; !ok {
				name := f.Name
				if name == "" {
					name = f.ID
				}
				columns[f.ID] = len(header)
				header = append(header, name)
			}
		}
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := make([]string, len(header))
		row[0] = r.Title
		for _, f := range r.Fields {
			row[columns[f.ID]] = f.String()
		}
		rows = append(rows, row)
	}
	return base.Table(header, rows)
}
