// Package gkltypes holds the small, JSON-friendly value types shared
// across the GasKitLink link, protocol, adapter, pump, and transaction
// layers: wire frames, decoded events, and the unit newtypes that keep
// centiliters, deciliters, and money from being mixed up at a call site.
package gkltypes

// Deciliters is dispensed volume, normalized from the wire's centiliters
// (dL = cL / 10) the moment a frame is parsed. Nothing above the parser
// ever sees centiliters.
type Deciliters int32

// Money is a pump-native minor currency unit (no conversion applied).
type Money int32

// Price is integer minor units per liter, always <= 9999 on the wire.
type Price uint16

// MaxPrice is the largest Price the wire format can carry (the 4-digit
// price field in V/M/T payloads).
const MaxPrice Price = 9999

// Nozzle is a dispensing outlet index, 1..9.
type Nozzle uint8

// Status is the raw GKL status code, 0..9. Its semantic family mapping
// (idle/armed/dispensing/...) lives in the txn package; any code outside
// the known set is treated as unknown and never advances or regresses a
// transaction.
type Status uint8

// TotalizerIndex selects one of the pump's totalizer counters, 0..7.
type TotalizerIndex uint8
