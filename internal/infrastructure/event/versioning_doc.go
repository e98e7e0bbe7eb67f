package event

/*
Event Versioning Strategy
=========================

Outbox rows and snapshots outlive deployments: point-in-time replay folds
events that may have been written months earlier, under an older payload
schema. The versioning system keeps those rows readable:

1. Old payloads can still be deserialized and processed
2. Payloads are upgraded to the latest schema version on read
3. The upgrade is transparent to handlers and to the replay fold

Key Components
--------------

1. BaseDomainEvent.Version
   - Every event carries a schema version (defaults to 1)
   - Payloads without a schema_version field are treated as version 1

2. EventUpgrader Interface
   - Transforms a payload from one version to the next
   - Must be sequential (v1->v2, v2->v3, ...)

3. VersionRegistry
   - Manages registered event types and their upgrader chains

4. VersionedSerializer
   - Drop-in replacement for EventSerializer
   - Upgrades payloads during deserialization

Usage
-----

Registering current (version 1) events:

	serializer := NewVersionedSerializer(logger)
	RegisterAllEvents(serializer)

Evolving a schema, e.g. adding a warehouse field to
"product-stock.status-changed":

	v1ToV2 := NewBaseEventUpgrader(1, 2, func(data map[string]any) (map[string]any, error) {
	    data["warehouseId"] = ""
	    return data, nil
	})

	err := serializer.RegisterVersioned(
	    stock.EventTypeStockStatusChanged,
	    2,
	    map[int]shared.DomainEvent{
	        1: &stock.StockStatusChangedEvent{},
	        2: &stock.StockStatusChangedEventV2{},
	    },
	    v1ToV2,
	)

Guidelines
----------

Safe changes (no upgrader needed): adding optional fields with defaults,
adding new event types.

Breaking changes (upgrader required): renaming fields, changing field types,
removing fields, adding required fields.

Upgraders must be deterministic: replay purity demands that the same stored
payload always folds to the same projection. Never change an event type
string; the type routes both bus dispatch and replay, so a renamed type is a
new event type.
*/
