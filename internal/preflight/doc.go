// Package preflight checks that the machine can hold an edm index before a
// crawl writes to it.
//
// The checks cover:
//   - a writable data directory
//   - free disk space under the data directory
//   - the open file limit, which bleve segments and crawl workers share
//   - whether the index and catalog exist yet
//
// A passed run leaves a marker in the data directory so crawls skip the
// checks until the marker expires:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, preflight.Target{DataDir: dir, Workers: 8})
//	if checker.HasCriticalFailures(results) {
//	    // refuse to crawl
//	}
package preflight
