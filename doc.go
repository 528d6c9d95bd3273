// Package ssccs is a toolkit for structural schemes: immutable descriptions of
// a coordinate space, the relations between its points and the constraints
// that hold over them, compiled into memory layouts for a hardware target.
//
// # Architecture Overview
//
// Data flows from a scheme through a field into observations:
//
//   - Segments: stateless points whose identity is a hash of their coordinate
//   - Schemes: axes, segments, relations, constraints, a layout and an
//     observation policy, sealed behind a content-derived identity
//   - Fields: mutable constraints and transitions layered over a scheme
//   - Exploration: bounded breadth-first walks of the configurations a field
//     admits
//   - Compiler: analysis, layout resolution and hardware mapping of a scheme
//
// Schemes compose (union, intersection, product and more) and transform
// (translation, scaling, projection, topology maps) without losing their
// identity guarantees: equal structure always hashes to the same identity.
//
// # Basic Usage
//
//	// Compile a blueprint into a container and a summary
//	ssc build --profile cpu:8 --save grid.yaml
//
//	// Explore from two seeds in parallel
//	ssrun --seed "[6]" --seed "[3]" --depth 4 --project parity line.yaml
//
// The same steps are available as a library:
//
//	s, err := scheme.Grid2D(8, 8, scheme.FourConnected)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	compiled, err := compiler.Compile(ctx, s, compiler.CPU(8), compiler.DefaultOptions())
//
// # Package Structure
//
//   - core: coordinates, segments, identities and constraints
//   - layout: memory layouts that map coordinates to addresses
//   - scheme: basic, composite and transformed schemes, relations and templates
//   - field: constraint fields, transitions, projectors and observers
//   - explore: bounded state-space exploration
//   - compiler: scheme analysis and hardware mapping
//   - ssfile: the binary .ss container format
//   - blueprint: YAML and DSL scheme descriptions
//   - store: the local scheme store
//   - session: concurrent exploration jobs over isolated fields
//   - config: tool configuration
//   - cmd: command-line tools (ssc, ssrun, ssperf)
package ssccs
