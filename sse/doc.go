// Package sse streams Server-Sent Events to HTTP clients.
//
// A Hub tracks connected clients by id and fans published events out to
// every client whose id matches a glob pattern:
//
//	hub.Publish("job:"+jobID+":*", sse.Event{Type: "progress", Data: b})
//
// ServeSSE runs one client connection until the request ends, the hub
// stops, or a Final event has been written.
package sse
