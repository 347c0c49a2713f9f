// Package core defines the shared vocabulary of the sitesmith orchestration
// core: conversation messages and raw provider turn records, tool calls and
// results, the closed Progress event set streamed by a running turn, and the
// capability interfaces (Workspace, Searcher, Notifier) the tool layer
// collaborates with. Higher layers (turn, tool, delegate, panel, persist)
// depend on this package only; it has no dependencies on them.
package core
