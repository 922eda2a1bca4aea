// Package channel carries events, messages and tokens between the host and
// code running in the embedded runtime.
//
// A Handler owns up to three bounded queues:
//
//	Tokens    host -> embedded   SendTokens / ReceiveTokens
//	Inbound   host -> embedded   SendToEmbedded / ReceiveInEmbedded
//	Outbound  embedded -> host   SendInHost / ReceiveInHost
//
// An EventHandler is the fourth, fire-and-forget path from embedded code to
// the host. Without a sender queue it logs events through zap.
//
// Every operation is a non-blocking poll or enqueue. Receivers distinguish
// an empty queue from a closed one:
//
//	msg, status := h.ReceiveInHost()
//	switch status {
//	case channel.Received:
//	    handle(msg)
//	case channel.Empty:
//	    // try later
//	case channel.Disconnected:
//	    return
//	}
//
// Sends never panic. A full queue, a closed handler or a throttled sender
// returns a channel error. None of these operations touch the dispatcher,
// so embedded code may call them while a call is in progress.
//
// Event and message types are closed, case-sensitive vocabularies. Unknown
// strings fail conversion instead of mapping to a default.
package channel
