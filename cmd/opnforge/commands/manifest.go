package commands

import (
	"context"
	"fmt"

	"github.com/opnforge/opnforge/pkg/config"
	"github.com/opnforge/opnforge/pkg/toolsurface"
)

// loadManifest parses a CUE manifest file or directory and returns its
// deployment ID plus the resource inputs the Tool Surface expects.
func loadManifest(ctx context.Context, path string) (string, []toolsurface.ResourceInput, error) {
	parser := config.NewCUEParser()
	parsed, err := parser.Parse(ctx, []string{path})
	if err != nil {
		return "", nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return "", nil, fmt.Errorf("manifest %s has %d error(s), first: %s", path, len(parsed.Errors), parsed.Errors[0].Message)
	}

	inputs := make([]toolsurface.ResourceInput, len(parsed.Resources))
	for i, r := range parsed.ToResourceInputs() {
		inputs[i] = toolsurface.ResourceInput{TypeID: r.TypeID, Name: r.Name, Properties: r.Properties}
	}
	return parsed.Deployment, inputs, nil
}
