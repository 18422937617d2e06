// Package command exposes go-command compatible handlers for the write side
// of profile sync: profile and avatar saves, manual sync and repair, location
// sharing and administrative deletes. Commands are wired by the service layer
// and can be invoked by any transport.
package command
