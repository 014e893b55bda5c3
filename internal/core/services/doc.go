// Package services implements the core business logic for batchscan.
//
// The central service is the Importer: the state machine that owns at
// most one batch/scanner-session pair at a time and drives the
// scan-interpret-validate-store-decide loop. It talks to the scanner,
// the interpreter and the store exclusively through the driven ports
// and is consumed through the driving ImportOrchestrator port.
package services
