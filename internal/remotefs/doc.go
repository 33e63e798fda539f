// Package remotefs abstracts the secure remote-file protocol behind a small
// capability interface so the transfer engine stays protocol-agnostic.
//
// The production implementation speaks SFTP over SSH password auth; tests
// substitute an in-memory tree.
package remotefs
