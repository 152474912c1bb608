// Package cli is the interactive chat client.
//
// An App keeps one connection to the chat server and any number of direct
// private channels to other clients. Three activities run side by side:
//
//   - the server receiver prints server output, follows login prompts and
//     dials peers when the server brokers a private channel;
//   - the input sender reads user lines and handles the local commands
//     (logout, private, stopprivate); everything else goes to the server;
//   - the peer listener accepts private channels from other clients and
//     starts a receiver per peer.
//
// A private channel is a pair of connections: the one this client dialed
// (used for sending) and the one the peer dialed (used for receiving).
// Both are dropped together when either side says goodbye.
package cli
