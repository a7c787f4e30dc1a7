package platform

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"
)

var (
	frontMatterRe  = regexp.MustCompile(`(?s)^---\s*\n(.*?)\n---`)
	queryNameRe    = regexp.MustCompile("```sql\\s+(\\w+)")
	queryBlockRe   = regexp.MustCompile("(?s)```sql\\s+(\\w+)\\n(.*?)```")
	componentRe    = regexp.MustCompile(`<(\w+Chart|BigValue|DataTable)`)
	componentTagRe = regexp.MustCompile(`(?s)<((?:Line|Bar|Area|Pie)Chart|BigValue|DataTable)\s*(.*?)/>`)
	dataAttrRe     = regexp.MustCompile(`data=\{(\w+)\}`)
	titleAttrRe    = regexp.MustCompile(`title="([^"]+)"`)
)

type frontMatter struct {
	Title string `yaml:"title"`
}

// pageTitle reads the title from YAML front matter.
func pageTitle(content string) string {
	m := frontMatterRe.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	var fm frontMatter
	if err := yaml.Unmarshal([]byte(m[1]), &fm); err != nil {
		return ""
	}
	return strings.TrimSpace(fm.Title)
}

func titleCase(stem string) string {
	words := strings.Fields(strings.ReplaceAll(stem, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

func (i *Inspector) ListDashboards() string {
	if !isDir(i.dashboardsDir) {
		return "Error: Evidence pages directory not found"
	}

	lines := []string{"# Evidence Dashboards", ""}
	for _, path := range files(i.dashboardsDir, "*.md") {
		content := readFile(path)
		stem := strings.TrimSuffix(filepath.Base(path), ".md")

		title := pageTitle(content)
		if title == "" {
			title = titleCase(stem)
		}

		var queries []string
		for _, m := range queryNameRe.FindAllStringSubmatch(content, -1) {
			queries = append(queries, m[1])
		}
		components := componentRe.FindAllString(content, -1)

		lines = append(lines,
			fmt.Sprintf("**/%s** - %s", stem, title),
			fmt.Sprintf("  Queries: %d | Components: %d", len(queries), len(components)),
		)
		if len(queries) > 0 {
			names := "  Query names: " + strings.Join(queries[:min(5, len(queries))], ", ")
			if len(queries) > 5 {
				names += "..."
			}
			lines = append(lines, names)
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (i *Inspector) ShowDashboard(name string) string {
	stem := strings.TrimSuffix(strings.ReplaceAll(name, "/", ""), ".md")
	path := filepath.Join(i.dashboardsDir, stem+".md")
	content := readFile(path)
	if content == "" {
		return fmt.Sprintf("Error: Dashboard '%s' not found", name)
	}

	title := pageTitle(content)
	if title == "" {
		title = name
	}
	lines := []string{"# Dashboard: " + title, "Path: /" + stem, ""}

	if queries := queryBlockRe.FindAllStringSubmatch(content, -1); len(queries) > 0 {
		lines = append(lines, "## Queries Defined")
		for _, q := range queries {
			lines = append(lines, "### "+q[1], "```sql", strings.TrimSpace(q[2]), "```", "")
		}
	}

	if components := componentTagRe.FindAllStringSubmatch(content, -1); len(components) > 0 {
		lines = append(lines, "## Visualizations")
		for _, c := range components {
			desc := c[1]
			if t := titleAttrRe.FindStringSubmatch(c[2]); t != nil {
				desc += fmt.Sprintf(": %q", t[1])
			}
			if d := dataAttrRe.FindStringSubmatch(c[2]); d != nil {
				desc += fmt.Sprintf(" (data: %s)", d[1])
			}
			lines = append(lines, "  - "+desc)
		}
	}
	return strings.Join(lines, "\n")
}
