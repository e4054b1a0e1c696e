/*
Package manifest implements content-addressed execution tokens that make
duplicate dispatch impossible across pulses and processes.

A manifest's identity is the first 12 hex characters of the SHA-256 over
its content's canonical JSON (sorted keys). Two coordinators proposing
byte-identical content therefore compute the same ID and collide on the
same file, which is the whole point: idempotence comes from identity,
not coordination.

# Lifecycle

	created ──claim──► claimed ──complete──► complete   (terminal)
	                      │
	                      └──fail──► failed             (re-claimable)

Claim answers false when:

  - the manifest file does not exist
  - this process claimed the ID within the claim window (in-memory map)
  - the on-disk status is claimed with a fresh claimed_at
  - the on-disk status is complete

Failed manifests and stale claims are re-claimable, so a crashed
executor does not poison an action forever; the claim window bounds how
long a dead claim blocks progress.

The in-memory claim map is intentionally not cleared on failure: a
process that just failed an action must wait out the window before
retrying it, while a sibling process may pick it up immediately.

# Cross-Process Semantics

Exclusivity across processes holds at claim-window granularity. The
store performs no advisory file locking; it relies on the content-hash
identity plus the status field, and accepts that two processes racing
within the same instant may both claim. Domains are required to be
idempotent at the action level for exactly this reason.

# Usage

	store := manifest.NewStore(layout.ManifestDir(), 5*time.Minute)

	id, err := store.Create(intent.ID, map[string]interface{}{
		"intent_id":  intent.ID,
		"capability": "log_rotation",
		"description": intent.Description,
	})
	if !store.Claim(id) {
		// someone else owns this action right now
	}
*/
package manifest
