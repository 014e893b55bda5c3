// Package driven defines the interfaces the scanning core consumes:
// the batch scanner, the sheet interpreter and the store. Adapters
// under internal/adapters/driven implement them.
//
// # Architectural Position
//
// Driven ports sit on the right side of the hexagon. The core services
// call out through these interfaces; they never know which adapter is
// behind them.
package driven
