// Package pubsub distributes run events to subscribers. The local
// broker fans out in process over buffered channels and drops
// subscribers that cannot keep up; the NATS broker publishes the same
// events to a subject per run so other processes can follow along.
package pubsub
