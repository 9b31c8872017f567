// Package config parses CUE desired-state manifests into the resource
// inputs the Tool Surface's plan and apply operations consume.
//
// # Overview
//
// A manifest names a deployment and a set of resources, each a kind-
// qualified type ID, a name, and kind-specific properties:
//
//	deployment: "branch-office-1"
//	resources: {
//		uplink_vlan: {
//			type: "network:vlan"
//			name: "uplink"
//			properties: {
//				parent: "em0"
//				tag:    10
//			}
//		}
//	}
//
// CUEParser parses manifest sources from files, directories, or inline
// strings, and reports parse/validation errors with file and line
// information. SchemaRegistry validates the manifest-level document shape;
// per-kind property schemas are enforced separately by the resource
// registry when a resource is constructed.
//
// # Usage
//
//	parser := config.NewCUEParser()
//	manifest, err := parser.Parse(ctx, []string{"branch1.cue"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if len(manifest.Errors) > 0 {
//		log.Fatalf("invalid manifest: %v", manifest.Errors)
//	}
//	inputs := manifest.ToResourceInputs()
//
// # Thread Safety
//
// All types in this package are safe for concurrent use.
package config
