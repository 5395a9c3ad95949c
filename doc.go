/*
Package hivelab is the composition and runtime engine behind campus tools:
small interactive widgets (polls, RSVPs, counters, leaderboards, timers)
that students assemble on a canvas and deploy into spaces or profiles.

# Concept

A tool is a composition: a set of placed elements and the connections
between their output and input ports. The engine covers both halves of a
tool's life.

At design time it extracts compositions from free-form generator output,
validates them against the element catalog (unknown kinds, missing config,
dangling or cyclic connections) and repairs what can be repaired.

At run time a per-instance state manager loads a tool through an execution
boundary, keeps the caller's state with debounced autosave, dispatches
element actions, follows cascades and merges realtime deltas of the shared
state pushed by other participants.

# Usage

	d, err := hivelab.New()
	if err != nil {
		log.Fatal(err)
	}
	comp, res, ok := d.Parse(modelOutput)
	if !ok || !res.Valid {
		fixed, res := d.Sanitize(comp)
		...
	}

The runtime talks to an execution boundary through ports.ToolGateway. The
pkg/adapters/http client implements it against the hivelab server:

	gw := hivehttp.NewClient("https://tools.example.edu", hivehttp.WithUser("u1"))
	m := hivelab.NewRuntime(gw, runtime.WithUserID("u1"))
	defer m.Close()
	if err := m.Load(ctx, "lunch-poll", "space:chess_p1"); err != nil {
		log.Fatal(err)
	}
	out, err := m.ExecuteAction(ctx, "p1", "vote", map[string]any{"option": "Pizza"})

# Layout

  - pkg/domain: compositions, deployment ids, user and shared state, deltas.
  - pkg/registry: element catalog and built-in action handlers.
  - pkg/ports: driven interfaces and their contract suites.
  - pkg/adapters: memory, redis, loam (file catalog), http and mcp.
  - internal/runtime: the client-side state manager.
  - internal/execution: the server side of the boundary.
  - cmd/hivelab: CLI for validation, serving and the MCP server.
*/
package hivelab
