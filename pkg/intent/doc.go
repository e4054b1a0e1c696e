/*
Package intent maintains the ordered set of pending intents.

The Pipeline owns state/coordinator_intents.jsonl. Every mutation
rewrites the file through a temp-then-rename, so a crash mid-write never
truncates the queue. Loading is permissive: unparseable lines are
skipped, not fatal, because a half-migrated station must still pulse.

# The Gate

Add refuses intents before they touch the queue:

 1. Artifact gate. The intent artifact registry must hold a clarified
    artifact for the intent ID. The three failure shapes each append a
    distinct typed evidence event:

    - no artifact on record: INTENT_REJECTED_NO_ARTIFACT
    - registry read failure: INTENT_REJECTED_ARTIFACT_ERROR
    - artifact present but not clarified: INTENT_REJECTED_UNCLARIFIED

 2. Dedup. An existing intent with the same description and the same
    required-capabilities list swallows the add. Dedup is benign and
    appends no evidence.

Both outcomes return false with a nil error; the error return is
reserved for persistence failures.

# Prioritization

	priority = priority_hint + 10*impact + 5*likelihood + freshness_boost
	freshness_boost = min(20, hours_until_expiry * 2)   for future expiries

An intent expiring exactly now gets no boost; one expiring far in the
future caps at 20. Sorting is stable descending, so equal-priority
intents keep insertion order across pulses.

# Ownership

The Pipeline hands out copies. Nothing outside this package holds a
reference into the queue, and removal after execution is the only way an
accepted intent leaves besides expiry.
*/
package intent
