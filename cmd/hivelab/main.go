// Command hivelab validates and repairs tool compositions, serves the
// execution boundary over HTTP and exposes the design tools over MCP.
package main

func main() {
	Execute()
}
