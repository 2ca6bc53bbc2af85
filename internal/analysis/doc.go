// Package analysis runs rubric grading for queued submissions.
//
// The stage walks primary items in queue order, one service call in flight at
// a time. A primary item with linked continuation pages is graded as a single
// logical submission: every page image is sent in one call. Continuation
// items never reach this stage on their own. Re-running analysis on a
// completed or failed item overwrites the prior result.
package analysis
