// Package broker fans observer events out to subscribed hooks, one topic per
// chat room. The Local broker delivers in-process over buffered channels and
// evicts subscribers that stop draining; the NATS broker carries the same
// events across processes using their JSON wire form.
package broker
