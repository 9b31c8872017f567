package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"github.com/go-playground/validator/v10"
)

// CUEParser parses and validates CUE desired-state manifests.
type CUEParser struct {
	ctx            *cue.Context
	schemaRegistry *SchemaRegistry
	validator      *validator.Validate
}

// NewCUEParser creates a new CUE parser.
func NewCUEParser() *CUEParser {
	return &CUEParser{
		ctx:            cuecontext.New(),
		schemaRegistry: NewSchemaRegistry(),
		validator:      validator.New(),
	}
}

// Parse parses CUE manifest sources (files and/or directories) and returns
// the parsed manifest. Parse errors are collected into ParsedManifest.Errors
// rather than returned directly, so a caller can report every problem found
// across the whole source set in one pass.
func (cp *CUEParser) Parse(ctx context.Context, sources []string) (*ParsedManifest, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources provided")
	}

	var cueValue cue.Value
	var sourceFiles []string
	var parseErrors []ValidationError

	for _, source := range sources {
		info, err := os.Stat(source)
		if err != nil {
			return nil, fmt.Errorf("failed to stat source %s: %w", source, err)
		}

		if info.IsDir() {
			val, files, errs := cp.loadDirectory(source)
			if len(errs) > 0 {
				parseErrors = append(parseErrors, errs...)
			}
			if val.Exists() {
				if cueValue.Exists() {
					cueValue = cueValue.Unify(val)
				} else {
					cueValue = val
				}
			}
			sourceFiles = append(sourceFiles, files...)
		} else {
			val, errs := cp.loadFile(source)
			if len(errs) > 0 {
				parseErrors = append(parseErrors, errs...)
			}
			if val.Exists() {
				if cueValue.Exists() {
					cueValue = cueValue.Unify(val)
				} else {
					cueValue = val
				}
			}
			sourceFiles = append(sourceFiles, source)
		}
	}

	if len(parseErrors) > 0 {
		return &ParsedManifest{SourceFiles: sourceFiles, ParsedAt: time.Now(), Errors: parseErrors}, nil
	}

	if err := cueValue.Err(); err != nil {
		parseErrors = append(parseErrors, cp.convertCUEErrors(err)...)
		return &ParsedManifest{SourceFiles: sourceFiles, ParsedAt: time.Now(), Errors: parseErrors}, nil
	}

	return cp.extractManifest(cueValue, sourceFiles)
}

// loadDirectory loads a directory as a CUE package.
func (cp *CUEParser) loadDirectory(dir string) (cue.Value, []string, []ValidationError) {
	buildInstances := load.Instances([]string{dir}, nil)
	if len(buildInstances) == 0 {
		return cue.Value{}, nil, []ValidationError{{File: dir, Message: "no CUE files found", Severity: "error"}}
	}

	inst := buildInstances[0]
	if inst.Err != nil {
		return cue.Value{}, nil, cp.convertCUEErrors(inst.Err)
	}

	val := cp.ctx.BuildInstance(inst)
	if err := val.Err(); err != nil {
		return cue.Value{}, nil, cp.convertCUEErrors(err)
	}

	var files []string
	for _, file := range inst.Files {
		if file.Filename != "" {
			files = append(files, file.Filename)
		}
	}

	return val, files, nil
}

// loadFile loads a single CUE file.
func (cp *CUEParser) loadFile(path string) (cue.Value, []ValidationError) {
	content, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, []ValidationError{{File: path, Message: fmt.Sprintf("failed to read file: %v", err), Severity: "error"}}
	}

	val := cp.ctx.CompileString(string(content), cue.Filename(path))
	if err := val.Err(); err != nil {
		return cue.Value{}, cp.convertCUEErrors(err)
	}

	return val, nil
}

// extractManifest pulls the deployment ID and resource set out of a unified
// CUE value.
func (cp *CUEParser) extractManifest(val cue.Value, sourceFiles []string) (*ParsedManifest, error) {
	manifest := &ParsedManifest{SourceFiles: sourceFiles, ParsedAt: time.Now()}

	deploymentVal := val.LookupPath(cue.ParsePath("deployment"))
	if deploymentVal.Exists() {
		dep, err := deploymentVal.String()
		if err != nil {
			manifest.Errors = append(manifest.Errors, ValidationError{
				Path: "deployment", Message: fmt.Sprintf("failed to decode deployment: %v", err), Severity: "error",
			})
		} else {
			manifest.Deployment = dep
		}
	} else {
		manifest.Errors = append(manifest.Errors, ValidationError{
			Path: "deployment", Message: "deployment field is required", Severity: "error",
		})
	}

	resourcesVal := val.LookupPath(cue.ParsePath("resources"))
	if resourcesVal.Exists() && resourcesVal.Kind() == cue.StructKind {
		iter, err := resourcesVal.Fields(cue.All())
		if err != nil {
			manifest.Errors = append(manifest.Errors, ValidationError{
				Path: "resources", Message: fmt.Sprintf("failed to iterate resources: %v", err), Severity: "error",
			})
		} else {
			for iter.Next() {
				key := iter.Selector().Unquoted()
				resource, err := cp.extractResource(key, iter.Value())
				if err != nil {
					manifest.Errors = append(manifest.Errors, ValidationError{
						Path: fmt.Sprintf("resources.%s", key), Message: err.Error(), Severity: "error",
					})
					continue
				}
				manifest.Resources = append(manifest.Resources, resource)
			}
		}
	}

	return manifest, nil
}

// extractResource decodes a single resource entry from the manifest,
// defaulting its name to the map key when omitted.
func (cp *CUEParser) extractResource(key string, val cue.Value) (ResourceManifest, error) {
	var resource ResourceManifest
	if err := val.Decode(&resource); err != nil {
		return resource, fmt.Errorf("failed to decode resource: %w", err)
	}

	if resource.Name == "" {
		resource.Name = key
	}

	if err := cp.validator.Struct(resource); err != nil {
		return resource, fmt.Errorf("validation failed: %w", err)
	}

	return resource, nil
}

// convertCUEErrors converts CUE errors to a ValidationError slice.
func (cp *CUEParser) convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	errs := errors.Errors(err)
	for _, e := range errs {
		pos := errors.Positions(e)
		var file string
		var line, column int

		if len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File: file, Line: line, Column: column,
			Message: errors.Details(e, nil), Severity: "error",
		})
	}

	return validationErrors
}

// ParseInline parses inline CUE content.
func (cp *CUEParser) ParseInline(ctx context.Context, content string) (*ParsedManifest, error) {
	val := cp.ctx.CompileString(content)
	if err := val.Err(); err != nil {
		return &ParsedManifest{SourceFiles: []string{"inline"}, ParsedAt: time.Now(), Errors: cp.convertCUEErrors(err)}, nil
	}

	return cp.extractManifest(val, []string{"inline"})
}

// ValidateWithSchema validates a CUE value against a named schema.
func (cp *CUEParser) ValidateWithSchema(ctx context.Context, data interface{}, schemaName string) error {
	return cp.schemaRegistry.ValidateAgainstSchema(ctx, schemaName, data)
}

// GetSchemaRegistry returns the schema registry.
func (cp *CUEParser) GetSchemaRegistry() *SchemaRegistry {
	return cp.schemaRegistry
}

// ExportJSON exports a CUE value to JSON.
func (cp *CUEParser) ExportJSON(val cue.Value) ([]byte, error) {
	var data interface{}
	if err := val.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}

	return json.MarshalIndent(data, "", "  ")
}

// LoadFromDirectory lists all CUE files under a directory.
func (cp *CUEParser) LoadFromDirectory(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".cue") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return files, nil
}
