/*
Package artifact provides the intent artifact registry backing the
clarification gate.

Every intent must have a clarified artifact on record before the intent
pipeline accepts it. The coordinator never writes artifacts during a
pulse; external tooling (or the calyx artifact CLI standing in for it)
creates and clarifies them. The registry is therefore a collaborator
boundary: the coordinator consumes exactly one operation, Load, and
branches on three conditions:

  - Load returns ErrNotFound: intent rejected, no artifact
  - Load returns any other error: intent rejected, registry failure
  - artifact.Clarified is false: intent rejected, awaiting clarification

Storage is a BoltDB file at state/artifacts.db with a single artifacts
bucket keyed by intent ID. Records are JSON for debuggability (bbolt
files can be inspected with strings(1) in a pinch). Keeping this
registry in an embedded store rather than a JSON file means concurrent
artifact writers (operator tooling) and the pulse reader never race on
a rewrite.

# Usage

	registry, err := artifact.NewBoltRegistry(layout.ArtifactDB())
	if err != nil {
		return err
	}
	defer registry.Close()

	err = registry.Put(&artifact.Artifact{
		IntentID: "i-1",
		Summary:  "rotate stale logs",
	})
	err = registry.SetClarified("i-1")

	a, err := registry.Load("i-1")
	if errors.Is(err, artifact.ErrNotFound) {
		// reject: no artifact
	}
*/
package artifact
