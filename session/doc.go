// Package session implements the analyst chat: a transcript that a streamed reply is
// aggregated into, fragment by fragment.
//
// What happens when a message is sent while a reply is still streaming is an explicit
// BusyPolicy. Fragments of a superseded reply are dropped; they never reach the new turn.
package session
