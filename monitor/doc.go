// Package monitor runs the background security pipeline: it queues events from
// the request path onto the event streams, aggregates them into windowed
// metrics, raises alerts on threshold breaches, prunes old events and keeps a
// daily metrics rollup for the dashboard trend.
package monitor
