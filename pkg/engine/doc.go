// Package engine holds the data model shared by every other core package:
// the Resource capability interface and BaseResource embedding, the
// ChangeKind/ExecutionWave/Plan/Deployment/Checkpoint entities, the
// lifecycle state machine, the stable error taxonomy, and the
// ${type:name.output} template-reference extractor.
//
// engine intentionally has no dependency on registry, planner, executor,
// driver, or state: those packages depend on engine, never the reverse.
package engine
