// Package examplemodules provides ready-made Module constructors over
// the third-party clients the teacher's own runners wrap: an HTTP
// request module (resty.dev/v3), a socket.io round-trip module
// (zishang520's client stack), a websocket stream module (gorilla/websocket,
// driven through Module.Idle), and a msgpack report sink
// (vmihailenco/msgpack/v5). Each constructor returns a *module.Module
// ready to drop into a group.Member, following the teacher's own
// Input-struct-plus-handler-function shape (modules/http_client,
// modules/socketio) without the registry plumbing those relied on.
package examplemodules
