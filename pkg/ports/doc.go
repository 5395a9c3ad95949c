/*
Package ports defines the driven ports (interfaces) of the HiveLab engine.

These interfaces decouple the runtime and the execution service from concrete
storage, transport and realtime backends.

# Key Interfaces

  - ToolGateway: the runtime's view of the execution boundary (load, save, execute).
  - ToolCatalog: source of persisted tool definitions.
  - StateStore: persistence of per-user and shared deployment state.
  - RealtimeFeed / RealtimePublisher: fan-out of shared-state deltas.
  - DistributedLocker: single-writer coordination across replicas.

Reusable contract suites for adapters live in the tests subpackage.
*/
package ports
