package hooking

// OperationID identifies one asynchronous operation for its lifetime. Zero
// means no operation.
type OperationID uint64

// OperationInfo is the item carried by the operation lifecycle hooks.
type OperationInfo struct {
	ID        OperationID
	Type      string
	TriggerID OperationID
}

// Operation lifecycle hook positions. Every operation is observed as
// Init -> (Before -> After)* -> Destroy.
var (
	HookPosOperationInit    = &HookPos{Name: "OperationInit"}
	HookPosOperationBefore  = &HookPos{Name: "OperationBefore"}
	HookPosOperationAfter   = &HookPos{Name: "OperationAfter"}
	HookPosOperationDestroy = &HookPos{Name: "OperationDestroy"}
)
