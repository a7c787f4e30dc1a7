package tool

import (
	"context"
	"log/slog"

	"github.com/habiliai/dataagent/artifact"
	"github.com/habiliai/dataagent/internal/mylog"
	"github.com/habiliai/dataagent/notes"
	"github.com/habiliai/dataagent/platform"
	"github.com/habiliai/dataagent/sandbox"
	"github.com/habiliai/dataagent/warehouse"
)

const (
	RunSQL            = "run_sql"
	RunCode           = "run_code"
	InspectSchema     = "inspect_schema"
	InspectPlatform   = "inspect_platform"
	ReadContext       = "read_context"
	UpdateContext     = "update_context"
	SubmitResult      = "submit_result"
	SubmitObservation = "submit_observation"
	RenderArtifact    = "render_artifact"
	SendMessage       = "send_message"

	defaultMaxRows = 500
)

// Warehouse is the read-only access the built-in tools need.
type Warehouse interface {
	Query(ctx context.Context, sql string) (*warehouse.Table, error)
	Validate(ctx context.Context, sql string) error
	Tables(ctx context.Context, schema string) ([]warehouse.TableInfo, error)
	Columns(ctx context.Context, schema, table string) ([]warehouse.Column, error)
	Sample(ctx context.Context, schema, table string, limit int) (*warehouse.Table, error)
	FullSchema(ctx context.Context) (string, error)
}

// Builtins holds the collaborators of the built-in tools. Nil optional
// collaborators leave their tools unregistered.
type Builtins struct {
	Warehouse Warehouse
	Sandbox   *sandbox.Executor
	Platform  *platform.Inspector
	Notes     *notes.File
	Artifacts *artifact.Server
	MaxRows   int
	Logger    *slog.Logger
}

func (b *Builtins) maxRows() int {
	if b.MaxRows > 0 {
		return b.MaxRows
	}
	return defaultMaxRows
}

func (b *Builtins) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return mylog.Discard()
}

// RegisterBuiltins registers the internal, output and message tools.
func RegisterBuiltins(r *Registry, b *Builtins) error {
	registrations := []func(*Registry) error{
		b.registerRunSQL,
		b.registerRunCode,
		b.registerInspectSchema,
	}
	if b.Platform != nil {
		registrations = append(registrations, b.registerInspectPlatform)
	}
	if b.Notes != nil {
		registrations = append(registrations, b.registerReadContext, b.registerUpdateContext)
	}
	registrations = append(registrations,
		b.registerSubmitResult,
		b.registerSubmitObservation,
	)
	if b.Artifacts != nil {
		registrations = append(registrations, b.registerRenderArtifact)
	}
	registrations = append(registrations, b.registerSendMessage)

	for _, register := range registrations {
		if err := register(r); err != nil {
			return err
		}
	}
	return nil
}

// executeInputs runs each named query in sorted name order.
func (b *Builtins) executeInputs(ctx context.Context, queries map[string]string) (map[string]*warehouse.Table, string, error) {
	tables := make(map[string]*warehouse.Table, len(queries))
	for _, name := range sortedKeys(queries) {
		table, err := b.Warehouse.Query(ctx, queries[name])
		if err != nil {
			return tables, name, err
		}
		tables[name] = table
	}
	return tables, "", nil
}
