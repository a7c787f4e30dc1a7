// Package platform reads the pipeline, transformation and dashboard sources that
// surround the warehouse: Airflow DAG files, dbt models and Evidence pages.
package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/habiliai/dataagent/config"
)

const (
	ActionListDags       = "list_dags"
	ActionShowDag        = "show_dag"
	ActionListModels     = "list_models"
	ActionShowModel      = "show_model"
	ActionListDashboards = "list_dashboards"
	ActionShowDashboard  = "show_dashboard"
)

var Actions = []string{
	ActionListDags, ActionShowDag,
	ActionListModels, ActionShowModel,
	ActionListDashboards, ActionShowDashboard,
}

type Inspector struct {
	dagsDir       string
	modelsDir     string
	dashboardsDir string
}

func NewInspector(conf config.PlatformConfig) *Inspector {
	return &Inspector{
		dagsDir:       conf.DagsDir,
		modelsDir:     conf.ModelsDir,
		dashboardsDir: conf.DashboardsDir,
	}
}

// Inspect runs action and returns text for the model. Problems are reported in
// the text rather than as errors.
func (i *Inspector) Inspect(action, name string) string {
	requireName := func(show func(string) string) string {
		if name == "" {
			return fmt.Sprintf("Error: 'name' required for %s", action)
		}
		return show(name)
	}

	switch action {
	case ActionListDags:
		return i.ListDags()
	case ActionShowDag:
		return requireName(i.ShowDag)
	case ActionListModels:
		return i.ListModels()
	case ActionShowModel:
		return requireName(i.ShowModel)
	case ActionListDashboards:
		return i.ListDashboards()
	case ActionShowDashboard:
		return requireName(i.ShowDashboard)
	default:
		return fmt.Sprintf("Error: Unknown action '%s'", action)
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// files returns the sorted files in dir matching pattern.
func files(dir, pattern string) []string {
	matches, _ := filepath.Glob(filepath.Join(dir, pattern))
	sort.Strings(matches)
	return matches
}

func readFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
