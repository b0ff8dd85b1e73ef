package telemetry

import "go.opentelemetry.io/otel/attribute"

// Span attribute keys shared by the map session instrumentation.
const (
	AttrSessionID = attribute.Key("session.id")
	AttrCommand   = attribute.Key("map.command")
	AttrTarget    = attribute.Key("map.target")
)
