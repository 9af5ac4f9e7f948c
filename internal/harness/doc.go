// Package harness runs round-trip sequences against a document store.
//
// A sequence connects with an explicit pool configuration, writes documents,
// reads them back by point lookup or through a cursor carrying a read
// preference, checks what came back and closes the connection on every path.
// Each failure is reported with one of six kinds: connection_error,
// write_error, read_error, not_found, assertion_failure and timeout.
//
// # Scenario Format
//
// Sequences are described in YAML files with the following structure:
//
//	name: direct_fetch
//	description: "Insert a document and read it back with a point lookup"
//	collection: test1
//	steps:
//	  - op: insert
//	    document: { a: 1 }
//	  - op: find
//	    filter: { a: 1 }
//	    read_preference: secondary
//	    expect:
//	      fields: { a: 1 }
//	      expr: "doc.a == 1"
//	  - op: find_one
//	    filter: { a: 999 }
//	    expect:
//	      error: not_found
//
// Files are decoded strictly (unknown fields are errors), checked against an
// embedded CUE schema and then against the rules in validateScenario.
//
// # Determinism
//
// Traces carry no ids or timings and drop the store-assigned _id from read
// documents, so the same scenario against any conforming store produces the
// same trace. RunWithGolden compares traces with testdata/golden.
//
// # Usage
//
//	cfg, err := store.ParseConfig("mongodb://localhost:50000/test?maxPoolSize=1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := harness.Run(ctx, mongostore.Dialer{}, cfg, scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !res.Pass {
//	    log.Println(res.Kind, res.Errors)
//	}
package harness
