/*
Package domain contains the core models of the HiveLab tool engine.

It defines the building blocks of a tool composition (element kinds, placed
elements, port-to-port connections), the deployment identity a composition is
placed under, and the runtime state split between private per-user state and
shared aggregate state. This package is kept pure and free of I/O so that the
validator, runtime and adapters can all depend on it.

# Key Entities

  - ElementKind: A registry entry declaring the ports and required config of a kind.
  - CanvasElement: One placed instance of a kind inside a composition.
  - Connection: A directed edge from an output port to an input port.
  - ToolComposition: The aggregate root (elements, connections, layout).
  - DeploymentID: Identity of one placement of a composition.
  - ToolState: UserState (private) plus SharedState (visible to all participants).
  - SharedStateDelta: The realtime push unit merged into SharedState by clients.
*/
package domain
