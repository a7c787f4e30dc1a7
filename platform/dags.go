package platform

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	dagDecoratorRe = regexp.MustCompile(`(?s)@dag\s*\(\s*\n?(.*?)\)`)
	dagIDRe        = regexp.MustCompile(`dag_id\s*=\s*["']([^"']+)["']`)
	dagScheduleRe  = regexp.MustCompile(`schedule\s*=\s*["']([^"']+)["']`)
	dagTagsRe      = regexp.MustCompile(`(?s)tags\s*=\s*\[(.*?)\]`)
	quotedRe       = regexp.MustCompile(`["']([^"']+)["']`)
	dagDocRe       = regexp.MustCompile(`def\s+\w+\s*\(\s*\)\s*:\s*\n\s*"""([^"]*?)"""`)
	taskRe         = regexp.MustCompile(`@task\s*\(\s*\)\s*\n\s*def\s+(\w+)`)
)

type Dag struct {
	ID          string
	Schedule    string
	Tags        []string
	Description string
	Filename    string
}

// ParseDag extracts metadata from a file defining a DAG with the @dag decorator.
func ParseDag(filename, content string) (Dag, bool) {
	m := dagDecoratorRe.FindStringSubmatch(content)
	if m == nil {
		return Dag{}, false
	}
	decorator := m[1]

	dag := Dag{
		ID:       strings.TrimSuffix(filename, ".py"),
		Filename: filename,
	}
	if id := dagIDRe.FindStringSubmatch(decorator); id != nil {
		dag.ID = id[1]
	}
	if s := dagScheduleRe.FindStringSubmatch(decorator); s != nil {
		dag.Schedule = s[1]
	}
	if tags := dagTagsRe.FindStringSubmatch(decorator); tags != nil {
		for _, q := range quotedRe.FindAllStringSubmatch(tags[1], -1) {
			dag.Tags = append(dag.Tags, q[1])
		}
	}
	if doc := dagDocRe.FindStringSubmatch(content); doc != nil {
		dag.Description = strings.TrimSpace(doc[1])
	}
	return dag, true
}

func (i *Inspector) Dags() []Dag {
	var dags []Dag
	for _, path := range files(i.dagsDir, "*.py") {
		name := filepath.Base(path)
		if strings.HasPrefix(name, "__") {
			continue
		}
		if dag, ok := ParseDag(name, readFile(path)); ok {
			dags = append(dags, dag)
		}
	}
	sort.Slice(dags, func(a, b int) bool { return dags[a].ID < dags[b].ID })
	return dags
}

func (i *Inspector) ListDags() string {
	if !isDir(i.dagsDir) {
		return "Error: Airflow dags directory not found"
	}
	dags := i.Dags()
	if len(dags) == 0 {
		return "No DAGs found"
	}

	lines := []string{"# Airflow DAGs", ""}
	for _, dag := range dags {
		schedule := dag.Schedule
		if schedule == "" {
			schedule = "None"
		}
		lines = append(lines, fmt.Sprintf("**%s**", dag.ID), "  Schedule: "+schedule)
		if len(dag.Tags) > 0 {
			lines = append(lines, "  Tags: "+strings.Join(dag.Tags, ", "))
		}
		if dag.Description != "" {
			lines = append(lines, "  Description: "+dag.Description)
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// ShowDag finds the first file whose name or contents mention name.
func (i *Inspector) ShowDag(name string) string {
	var path, content string
	for _, p := range files(i.dagsDir, "*.py") {
		c := readFile(p)
		if strings.Contains(filepath.Base(p), name) || strings.Contains(c, name) {
			path, content = p, c
			break
		}
	}
	if path == "" {
		return fmt.Sprintf("Error: DAG '%s' not found", name)
	}

	lines := []string{"# DAG: " + name, "File: " + filepath.Base(path), ""}
	if tasks := taskRe.FindAllStringSubmatch(content, -1); len(tasks) > 0 {
		lines = append(lines, "## Tasks")
		for _, task := range tasks {
			lines = append(lines, "  - "+task[1])
		}
		lines = append(lines, "")
	}
	lines = append(lines, "## Source Code", "```python", content, "```")
	return strings.Join(lines, "\n")
}
