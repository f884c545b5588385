// Package provider implements the C# analysis provider: it builds a
// reference graph for a project during init and answers "referenced"
// pattern-matching queries against it, deduplicating overlapping matches
// into one canonical incident per source location.
package provider
