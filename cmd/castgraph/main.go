// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command castgraph serves and queries the actor/movie graph.
//
// Usage:
//
//	castgraph serve                       # HTTP API on :8080
//	castgraph serve --data ./data.json    # explicit dataset
//	castgraph query distance "Bruce Willis" "Kim Basinger" --data ./data.json
//	castgraph query oldest -k 5 --data ./data.json
//	castgraph validate ./data.json
//	castgraph reload --nats nats://127.0.0.1:4222
//
// Example requests against a running server:
//
//	curl http://localhost:8080/api/health
//	curl 'http://localhost:8080/api/actors/?name="Bruce"|age=61'
//	curl 'http://localhost:8080/api/graph/distance?from=Bruce%20Willis&to=Kim%20Basinger'
//	curl -X POST http://localhost:8080/api/graph/rebuild
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
