// Package dsl defines the architecture graph that trustlane renders.
//
// A [Graph] describes a security reference architecture: horizontal zones
// (swimlanes) ordered top to bottom, trust boundaries separating pairs of
// zones, components ([Node]) owned by exactly one zone, directed [Flow]
// connectors between components, and descriptive [Group] and [Control]
// metadata.
//
// # Validation
//
// Payloads arrive as untyped JSON (from a file, an HTTP body or a language
// model). [Validate] coerces a decoded payload into a typed [Graph] in strict
// mode: unknown fields are rejected, enum tags must belong to their closed
// set and zone orders must be non-negative. Every problem is reported as a
// "<dotted.path>: <message>" string in the error's details:
//
//	g, err := dsl.Validate(raw)
//	if err != nil {
//	    for _, msg := range errors.Details(err) {
//	        fmt.Println(msg) // zones.0.order: must be greater than or equal to 0
//	    }
//	}
//
// [Decode] applies the same coercion but ignores unknown fields, for
// best-effort handling of externally generated data.
//
// # Schema
//
// [Schema] derives a JSON Schema from the Go types. It is used to prompt
// external generators and for documentation; it is never maintained by hand.
package dsl
