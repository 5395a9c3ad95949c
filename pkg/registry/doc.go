/*
Package registry holds the two catalogs the engine is built around.

ElementRegistry is the static catalog of element kinds: the ports each kind
exposes and the config it requires. It is constructed once at startup and is
read-only afterwards, so it can be shared freely between goroutines.

ActionRegistry maps (kind, action) pairs to the handlers the execution boundary
runs when a user acts on an element.
*/
package registry
