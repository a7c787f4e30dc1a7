package platform

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"
)

var (
	refRe        = regexp.MustCompile(`\{\{\s*ref\s*\(\s*['"](\w+)['"]\s*\)\s*\}\}`)
	sqlCommentRe = regexp.MustCompile(`^--\s*(.+)`)
)

var modelLayers = []struct {
	dir, title, blurb string
}{
	{"staging", "## Staging Layer", "Views that clean raw data:"},
	{"marts", "## Marts Layer", "Analytics-ready tables:"},
}

// schemaFile is the subset of a dbt properties file that describes models.
type schemaFile struct {
	Models []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Columns     []struct {
			Name        string `yaml:"name"`
			Description string `yaml:"description"`
		} `yaml:"columns"`
	} `yaml:"models"`
}

type Model struct {
	Name        string
	Layer       string
	Description string
	Refs        []string
	Columns     [][2]string
	SQL         string
}

func Refs(sql string) []string {
	var refs []string
	for _, m := range refRe.FindAllStringSubmatch(sql, -1) {
		refs = append(refs, m[1])
	}
	return refs
}

func leadingComment(sql string) string {
	if m := sqlCommentRe.FindStringSubmatch(strings.TrimSpace(sql)); m != nil {
		return strings.TrimSpace(strings.SplitN(m[1], "\n", 2)[0])
	}
	return ""
}

// properties reads every *.yml file in a layer directory and indexes models by name.
func properties(dir string) map[string]Model {
	out := map[string]Model{}
	for _, pattern := range []string{"*.yml", "*.yaml"} {
		for _, path := range files(dir, pattern) {
			var sf schemaFile
			if err := yaml.Unmarshal([]byte(readFile(path)), &sf); err != nil {
				continue
			}
			for _, m := range sf.Models {
				model := Model{Name: m.Name, Description: strings.TrimSpace(m.Description)}
				for _, c := range m.Columns {
					model.Columns = append(model.Columns, [2]string{c.Name, strings.TrimSpace(c.Description)})
				}
				out[m.Name] = model
			}
		}
	}
	return out
}

func (i *Inspector) loadModel(layer, path string, props map[string]Model) Model {
	name := strings.TrimSuffix(filepath.Base(path), ".sql")
	sql := readFile(path)
	model := Model{
		Name:        name,
		Layer:       layer,
		Description: leadingComment(sql),
		Refs:        Refs(sql),
		SQL:         sql,
	}
	if p, ok := props[name]; ok {
		if model.Description == "" {
			model.Description = p.Description
		}
		model.Columns = p.Columns
	}
	return model
}

func (i *Inspector) Models(layer string) []Model {
	dir := filepath.Join(i.modelsDir, layer)
	props := properties(dir)
	var models []Model
	for _, path := range files(dir, "*.sql") {
		if strings.HasPrefix(filepath.Base(path), "_") {
			continue
		}
		models = append(models, i.loadModel(layer, path, props))
	}
	return models
}

func (i *Inspector) ListModels() string {
	if !isDir(i.modelsDir) {
		return "Error: dbt models directory not found"
	}

	lines := []string{"# dbt Models", ""}
	for _, layer := range modelLayers {
		if !isDir(filepath.Join(i.modelsDir, layer.dir)) {
			continue
		}
		lines = append(lines, layer.title, layer.blurb)
		for _, m := range i.Models(layer.dir) {
			entry := fmt.Sprintf("  - **%s**", m.Name)
			if m.Description != "" {
				entry += ": " + m.Description
			}
			lines = append(lines, entry)
			if layer.dir == "marts" && len(m.Refs) > 0 {
				lines = append(lines, "    Dependencies: "+strings.Join(m.Refs, ", "))
			}
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// ShowModel looks in staging then marts; staging names may omit the stg_ prefix.
func (i *Inspector) ShowModel(name string) string {
	var model *Model
	for _, layer := range modelLayers {
		dir := filepath.Join(i.modelsDir, layer.dir)
		candidates := []string{name}
		if layer.dir == "staging" && !strings.HasPrefix(name, "stg_") {
			candidates = append(candidates, "stg_"+name)
		}
		for _, c := range candidates {
			path := filepath.Join(dir, c+".sql")
			if readFile(path) != "" {
				m := i.loadModel(layer.dir, path, properties(dir))
				model = &m
				break
			}
		}
		if model != nil {
			break
		}
	}
	if model == nil {
		return fmt.Sprintf("Error: Model '%s' not found in staging or marts", name)
	}

	lines := []string{"# dbt Model: " + model.Name, "Layer: " + model.Layer}
	if len(model.Refs) > 0 {
		lines = append(lines, "Dependencies: "+strings.Join(model.Refs, ", "))
	}
	if len(model.Columns) > 0 {
		lines = append(lines, "", "## Columns")
		for _, c := range model.Columns {
			entry := "  - " + c[0]
			if c[1] != "" {
				entry += ": " + c[1]
			}
			lines = append(lines, entry)
		}
	}
	lines = append(lines, "", "## SQL Transformation", "```sql", model.SQL, "```")
	return strings.Join(lines, "\n")
}
