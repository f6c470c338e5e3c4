/*
Package api exposes the confsync daemon over gRPC and HTTP.

The gRPC service confsync.v1.SyncService is described by SyncServiceDesc and
uses protobuf well-known types only, so clients need no generated code:

	TriggerSync(Empty) BoolValue            queue a manual sync
	GetStatus(Empty) Struct                 scheduler and state container status
	ListConfigurations(Empty) Struct        {"configurations": [...]}
	SaveConfiguration(Struct) Struct        create (no id) or replace
	DeleteConfiguration(StringValue) Empty
	ToggleConfiguration(Struct) Empty       {"id", "enabled"?}
	PublishConfiguration(Struct) Struct     {"id", "connector"?}
	StreamEvents(Empty) stream Struct

Domain errors map to NotFound, AlreadyExists, InvalidArgument or Internal.
With Options.ReadOnly set, calls that edit configurations are refused with
PermissionDenied.

The HTTP surface (fiber) serves /health, /ready, /live, /metrics and
/v1/status.
*/
package api
