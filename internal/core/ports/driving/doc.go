// Package driving defines the interface the outer layers consume: the
// import orchestrator's method surface. The CLI and TUI adapters (and
// any future API layer) drive the core exclusively through it.
package driving
