package featureflags

// Flags read by the visitor engine.
const (
	// PermissiveLifecycle restores the lenient transition policy: re-marking
	// exit overwrites exit_time and residents may answer after entry.
	PermissiveLifecycle = "permissive_lifecycle"

	// GateBarrier sends open/close commands to the society's barrier
	// controller on check-in and check-out.
	GateBarrier = "gate_barrier"
)
