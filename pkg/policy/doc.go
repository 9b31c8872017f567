// Package policy evaluates OPA/Rego policies against planned resource
// changes. It produces Violations (warning or error severity); the Tool
// Surface's plan/validate operations surface these as diagnostics alongside
// a resource's own Validate warnings, never as a hard failure by themselves.
package policy
