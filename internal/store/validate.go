package store

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// schemaValidator holds the compiled #Snapshot definition.
// cue.Context is not safe for concurrent use; mu serializes validation.
type schemaValidator struct {
	mu       sync.Mutex
	ctx      *cue.Context
	snapshot cue.Value
}

var (
	validatorOnce sync.Once
	validator     *schemaValidator
	validatorErr  error
)

func loadValidator() (*schemaValidator, error) {
	validatorOnce.Do(func() {
		ctx := cuecontext.New()
		schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := schema.Err(); err != nil {
			validatorErr = fmt.Errorf("compile snapshot schema: %w", err)
			return
		}
		def := schema.LookupPath(cue.ParsePath("#Snapshot"))
		if !def.Exists() {
			validatorErr = fmt.Errorf("compile snapshot schema: #Snapshot not defined")
			return
		}
		validator = &schemaValidator{ctx: ctx, snapshot: def}
	})
	return validator, validatorErr
}

// ValidateSnapshotJSON checks encoded snapshot data against the CUE schema.
func ValidateSnapshotJSON(data []byte) error {
	v, err := loadValidator()
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	doc := v.ctx.CompileBytes(data, cue.Filename("snapshot.json"))
	if err := doc.Err(); err != nil {
		return fmt.Errorf("parse snapshot: %s", errors.Details(err, nil))
	}

	unified := v.snapshot.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("snapshot does not match schema: %s", errors.Details(err, nil))
	}
	return nil
}
