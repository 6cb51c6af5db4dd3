package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ipocket/ipocket/internal/imports"
	"github.com/ipocket/ipocket/internal/inventory"
)

// RunResult is the outcome of one connector run: bundle entry counts,
// connector-side skip warnings, and the import pipeline result.
type RunResult struct {
	Connector string               `json:"connector"`
	Mode      string               `json:"mode"`
	Assets    int                  `json:"assets"`
	Hosts     int                  `json:"hosts"`
	Warnings  []string             `json:"warnings"`
	Import    *imports.ApplyResult `json:"import,omitempty"`
}

// Runner executes connectors and hands their bundles to the import
// pipeline.
type Runner struct {
	store  *inventory.Store
	logger *zap.Logger
}

func NewRunner(store *inventory.Store, logger *zap.Logger) *Runner {
	return &Runner{store: store, logger: logger}
}

// Run fetches from the connector and imports the resulting bundle. With
// dryRun set the pipeline reports what would change without writing.
func (r *Runner) Run(ctx context.Context, connector Connector, dryRun bool, username string) (*RunResult, error) {
	bundle, warnings, err := connector.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("connector %s: %w", connector.Name(), err)
	}
	return r.ImportBundle(ctx, connector.Name(), bundle, warnings, dryRun, username)
}

// ImportBundle feeds an already-fetched bundle to the import pipeline.
func (r *Runner) ImportBundle(ctx context.Context, name string, bundle *BundleDocument,
	warnings []string, dryRun bool, username string) (*RunResult, error) {

	if warnings == nil {
		warnings = []string{}
	}
	mode := "apply"
	if dryRun {
		mode = "dry-run"
	}
	r.logger.Info("running connector import",
		zap.String("connector", name),
		zap.String("mode", mode),
		zap.Int("assets", len(bundle.Data.IPAssets)),
		zap.Int("hosts", len(bundle.Data.Hosts)),
		zap.Int("warnings", len(warnings)))

	payload, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("encoding bundle: %w", err)
	}

	result, err := imports.Run(ctx, r.store, imports.BundleImporter{},
		map[string][]byte{"bundle": payload}, imports.Options{}, dryRun,
		&imports.AuditContext{
			Username:   username,
			Source:     "connector_" + name,
			Mode:       mode,
			InputLabel: "connector:" + name,
		})
	if err != nil {
		return nil, fmt.Errorf("importing %s bundle: %w", name, err)
	}

	return &RunResult{
		Connector: name,
		Mode:      mode,
		Assets:    len(bundle.Data.IPAssets),
		Hosts:     len(bundle.Data.Hosts),
		Warnings:  warnings,
		Import:    result,
	}, nil
}

// WriteBundleFile writes a bundle as indented JSON, for later manual
// import.
func WriteBundleFile(bundle *BundleDocument, path string) error {
	payload, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding bundle: %w", err)
	}
	payload = append(payload, '\n')
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("writing bundle file: %w", err)
	}
	return nil
}
