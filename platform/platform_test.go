package platform_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/habiliai/dataagent/config"
	"github.com/habiliai/dataagent/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dagSource = `from airflow.decorators import dag, task

@dag(
    dag_id="load_orders",
    schedule="@daily",
    tags=["ingest", "orders"],
)
def load_orders():
    """Load raw orders into the warehouse."""

    @task()
    def extract():
        pass

    @task()
    def load():
        pass
`

const martSource = `-- Revenue per customer
select customer_id, sum(amount) as revenue
from {{ ref('stg_orders') }}
join {{ ref("stg_customers") }} using (customer_id)
group by 1
`

const schemaYAML = `version: 2
models:
  - name: stg_orders
    description: Cleaned orders
    columns:
      - name: id
        description: Order id
      - name: amount
`

const pageSource = "---\ntitle: Revenue Overview\n---\n\n```sql monthly\nselect month, sum(amount) from orders group by 1\n```\n\n<LineChart data={monthly} x=month y=revenue title=\"Monthly revenue\"/>\n<BigValue data={monthly} value=revenue/>\n"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newInspector(t *testing.T) *platform.Inspector {
	root := t.TempDir()
	conf := config.PlatformConfig{
		DagsDir:       filepath.Join(root, "dags"),
		ModelsDir:     filepath.Join(root, "models"),
		DashboardsDir: filepath.Join(root, "pages"),
	}
	writeFile(t, filepath.Join(conf.DagsDir, "load_orders.py"), dagSource)
	writeFile(t, filepath.Join(conf.DagsDir, "__init__.py"), "")
	writeFile(t, filepath.Join(conf.ModelsDir, "staging", "stg_orders.sql"), "select * from raw.orders\n")
	writeFile(t, filepath.Join(conf.ModelsDir, "staging", "schema.yml"), schemaYAML)
	writeFile(t, filepath.Join(conf.ModelsDir, "marts", "customer_revenue.sql"), martSource)
	writeFile(t, filepath.Join(conf.DashboardsDir, "revenue.md"), pageSource)
	writeFile(t, filepath.Join(conf.DashboardsDir, "customer_health.md"), "# Health\n")
	return platform.NewInspector(conf)
}

func TestInspector_Dags(t *testing.T) {
	i := newInspector(t)

	out := i.Inspect(platform.ActionListDags, "")
	assert.Equal(t, "# Airflow DAGs\n\n**load_orders**\n  Schedule: @daily\n  Tags: ingest, orders\n  Description: Load raw orders into the warehouse.\n", out)

	out = i.Inspect(platform.ActionShowDag, "load_orders")
	assert.Contains(t, out, "# DAG: load_orders\nFile: load_orders.py\n\n## Tasks\n  - extract\n  - load\n")
	assert.Contains(t, out, "## Source Code\n```python\n")

	assert.Equal(t, "Error: DAG 'missing' not found", i.Inspect(platform.ActionShowDag, "missing"))
	assert.Equal(t, "Error: 'name' required for show_dag", i.Inspect(platform.ActionShowDag, ""))
}

func TestInspector_Models(t *testing.T) {
	i := newInspector(t)

	out := i.Inspect(platform.ActionListModels, "")
	assert.Contains(t, out, "## Staging Layer\nViews that clean raw data:\n  - **stg_orders**: Cleaned orders\n")
	assert.Contains(t, out, "## Marts Layer\nAnalytics-ready tables:\n  - **customer_revenue**: Revenue per customer\n    Dependencies: stg_orders, stg_customers\n")

	t.Run("given a staging name without prefix, when showing, then the stg_ model is found", func(t *testing.T) {
		out := i.Inspect(platform.ActionShowModel, "orders")
		assert.Contains(t, out, "# dbt Model: stg_orders\nLayer: staging\n")
		assert.Contains(t, out, "## Columns\n  - id: Order id\n  - amount\n")
	})

	out = i.Inspect(platform.ActionShowModel, "customer_revenue")
	assert.Contains(t, out, "Layer: marts\nDependencies: stg_orders, stg_customers\n")

	assert.Equal(t, "Error: Model 'nope' not found in staging or marts", i.Inspect(platform.ActionShowModel, "nope"))
}

func TestInspector_Dashboards(t *testing.T) {
	i := newInspector(t)

	out := i.Inspect(platform.ActionListDashboards, "")
	assert.Contains(t, out, "**/customer_health** - Customer Health\n  Queries: 0 | Components: 0\n")
	assert.Contains(t, out, "**/revenue** - Revenue Overview\n  Queries: 1 | Components: 2\n  Query names: monthly\n")

	out = i.Inspect(platform.ActionShowDashboard, "/revenue")
	assert.Contains(t, out, "# Dashboard: Revenue Overview\nPath: /revenue\n")
	assert.Contains(t, out, "### monthly\n```sql\nselect month, sum(amount) from orders group by 1\n```")
	assert.Contains(t, out, "## Visualizations\n  - LineChart: \"Monthly revenue\" (data: monthly)\n  - BigValue (data: monthly)")

	assert.Equal(t, "Error: Unknown action 'drop'", i.Inspect("drop", ""))
}

func TestInspector_MissingDirectories(t *testing.T) {
	i := platform.NewInspector(config.PlatformConfig{DagsDir: "/nonexistent/dags", ModelsDir: "/nonexistent/models", DashboardsDir: "/nonexistent/pages"})

	assert.Equal(t, "Error: Airflow dags directory not found", i.ListDags())
	assert.Equal(t, "Error: dbt models directory not found", i.ListModels())
	assert.Equal(t, "Error: Evidence pages directory not found", i.ListDashboards())
}
