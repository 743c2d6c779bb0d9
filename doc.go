// Package orca implements the Orca processor SDK, providing a framework for
// defining windowed algorithms in Go and serving them to the Orca Core engine
// over gRPC. A host program registers algorithms (named, versioned computation
// functions, optionally depending on one another), announces them to Orca Core,
// and then serves DAG-part execution requests, streaming results back as each
// algorithm completes.
package orca
