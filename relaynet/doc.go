// Package relaynet defines the contracts between the gateway and the message
// format and PKI of the relay network.
//
// The gateway never inspects the plaintext of the messages it relays. It only
// needs the identity, addressing and validity information exposed by the types
// in this package, and a handful of opaque operations (parse, verify, unwrap,
// seal) that are supplied by the program that embeds the gateway.
package relaynet
