// Package state persists the device settings and activity flags across restarts.
//
// The FileRepository stores a protobuf Struct encoded with protojson, using
// the same field names as the status message.
package state
