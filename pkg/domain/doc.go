/*
Package domain provides the registry of capabilities the coordinator may
execute autonomously and the built-in domain implementations.

A domain is one self-contained maintenance capability. Every domain
answers four questions: may I run against this world state, what happened
when I ran, did it actually work, and how do I undo it. The coordinator
never hardcodes a capability name; it resolves intents against the
registry, so new capabilities are a Register call away.

# Architecture

	┌──────────────────────────────────────────────────────┐
	│                      Registry                        │
	│  capability name ──► Domain implementation           │
	└──────┬───────────────────────────────────────────────┘
	       │
	       ▼
	┌──────────────────────────────────────────────────────┐
	│                  Domain Interface                    │
	│  • Name() string                                     │
	│  • CanExecute(state) bool      (pure precheck)       │
	│  • Execute(intent) result      (the side effect)     │
	│  • VerifySuccess(result) bool  (post-check)          │
	│  • Rollback(result) result     (best-effort undo)    │
	└──────┬───────────────────────────────────────────────┘
	       │
	  ┌────┴─────┬───────────┬───────────┬────────────┐
	  ▼          ▼           ▼           ▼            ▼
	log_      metrics_    schema_     auto_       memory_
	rotation  summary     validation  restart     embeddings

# Built-in domains

log_rotation archives log files older than seven days into logs/archive/.
It only volunteers when more than twenty live logs have piled up, and it
records which files it moved so Rollback can move them back.

metrics_summary folds the trailing twenty TES samples from the agent
metrics CSV into mean/min/max and writes state/tes_summary.json. The
summary is a cache: the domain declines to run while a summary younger
than an hour exists.

schema_validation parses the ten newest .json files under outgoing/ and
the five newest .jsonl journals under state/. Parse errors are findings
carried in the result detail; the run itself still counts as done.

auto_restart scans heartbeat lock files under outgoing/ and reports any
whose mtime is older than 900 seconds. It reports only. Killing or
restarting an agent is a human decision.

memory_embeddings writes outgoing/rebuild_embeddings.marker to signal a
collaborator to rebuild the embeddings index. It requires both cpu_ok
and mem_ok headroom, and its Rollback removes the marker.

# Result statuses

Execute returns one of three statuses:

  - done: the side effect happened, detail carries counts and paths
  - skipped: nothing to do (reason in detail)
  - error: the attempt itself failed (error string set)

VerifySuccess is the domain's own post-check. The execution engine
consults it after a done result and demotes the result when the
post-check fails, which routes the execution into rollback.

# Usage

	reg := domain.DefaultRegistry(layout)

	d, ok := reg.Get("log_rotation")
	if ok && d.CanExecute(state) {
		result := d.Execute(intent)
		if result.Status == types.StatusDone && !d.VerifySuccess(result) {
			d.Rollback(result)
		}
	}

Custom capabilities register the same way the built-ins do:

	reg.Register(myDomain)

# See Also

  - pkg/engine: drives the CanExecute/Execute/VerifySuccess/Rollback cycle
  - pkg/verify: converts results into confidence updates
  - pkg/config: the station layout the built-ins operate on
*/
package domain
