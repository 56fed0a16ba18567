// Package build runs one documentation build end to end.
//
// A build is a single doxygen invocation wrapped with the bookkeeping around
// it: a build ID, the git revision it ran against, a summary of the HTML it
// produced, metrics, a history row, and a published event. Only the doxygen
// result decides whether the build failed; the bookkeeping is best effort.
package build
