package imports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ipocket/ipocket/internal/inventory"
)

// AuditContext describes who triggered an import run and through what
// surface, for the audit trail written after a successful apply.
type AuditContext struct {
	Username   string
	Source     string
	Mode       string
	InputLabel string
}

// Run drives one import end to end: parse, validate, apply. Parse and
// validation failures short-circuit before any storage mutation and are
// returned as issues inside a normal ApplyResult, so callers branch on
// result.Errors instead of error values. Only unexpected storage faults
// surface as a non-nil error.
func Run(ctx context.Context, store *inventory.Store, importer Importer, inputs map[string][]byte,
	opts Options, dryRun bool, audit *AuditContext) (*ApplyResult, error) {

	bundle, err := importer.Parse(inputs, opts)
	if err != nil {
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			return nil, err
		}
		return &ApplyResult{
			Errors: []Issue{{Location: parseErr.Location, Message: parseErr.Message, Level: LevelError}},
		}, nil
	}

	validation, err := ValidateBundle(ctx, store, bundle)
	if err != nil {
		return nil, err
	}
	if !validation.Valid() {
		return &ApplyResult{Errors: validation.Errors, Warnings: validation.Warnings}, nil
	}

	actor := ""
	if audit != nil {
		actor = audit.Username
	}
	applied, err := ApplyBundle(ctx, store, bundle, dryRun, actor)
	if err != nil {
		return nil, err
	}
	applied.Warnings = append(append([]Issue{}, validation.Warnings...), applied.Warnings...)

	if !dryRun && audit != nil && strings.EqualFold(audit.Mode, "apply") && len(applied.Errors) == 0 {
		if err := recordApplyAudit(ctx, store, audit, applied); err != nil {
			return nil, err
		}
	}
	return applied, nil
}

func recordApplyAudit(ctx context.Context, store *inventory.Store, audit *AuditContext, result *ApplyResult) error {
	total := result.Summary.Total()
	changes := fmt.Sprintf(
		"Import apply run=%s source=%s; input=%s; create=%d; update=%d; skip=%d; warnings=%d; errors=%d.",
		uuid.NewString(), audit.Source, audit.InputLabel,
		total.WouldCreate, total.WouldUpdate, total.WouldSkip,
		len(result.Warnings), len(result.Errors))
	return store.CreateAuditLog(ctx, audit.Username, "APPLY", "IMPORT_RUN", 0, audit.Source, changes)
}
