/*
Package execution is the authoritative side of tool actions.

A Service resolves tool definitions, serializes writers per deployment,
runs element action handlers against shared state, propagates cascades and
publishes realtime deltas. It implements ports.ToolGateway, so clients can
drive it in-process or through the HTTP adapter.
*/
package execution
