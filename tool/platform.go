package tool

import (
	"context"
)

type InspectPlatformInput struct {
	Action string `json:"action" jsonschema:"required,enum=list_dags,enum=show_dag,enum=list_models,enum=show_model,enum=list_dashboards,enum=show_dashboard" jsonschema_description:"What to inspect"`
	Name   string `json:"name,omitempty" jsonschema_description:"Name of the DAG, model or dashboard (for show_* actions)"`
}

const inspectPlatformDescription = `Inspect the data platform structure: Airflow DAGs, dbt models, Evidence dashboards.

Use this to understand:
- How data pipelines work (DAGs)
- How tables are built (dbt models)
- What dashboards and metrics exist (Evidence)

Actions:
- list_dags: List all Airflow DAGs with schedules
- show_dag: Show a specific DAG's code and structure
- list_models: List all dbt models by layer
- show_model: Show a dbt model's SQL transformation
- list_dashboards: List Evidence dashboard pages
- show_dashboard: Show dashboard queries and visualizations`

func (b *Builtins) registerInspectPlatform(r *Registry) error {
	return Register(r, Definition{
		Name:        InspectPlatform,
		Description: inspectPlatformDescription,
		Kind:        KindInternal,
	}, func(_ context.Context, in InspectPlatformInput) (*Result, error) {
		return &Result{Text: b.Platform.Inspect(in.Action, in.Name)}, nil
	})
}
