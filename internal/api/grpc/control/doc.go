// Package control implements the local gRPC control API of the controller.
//
// The service is described by hand with protobuf well-known types: Execute
// takes the command text as a StringValue and GetStatus takes Empty, both
// answer with a Struct. The caller identity travels in the x-actor metadata
// header.
package control
