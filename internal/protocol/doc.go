// Package protocol implements the canvas session protocol.
//
// Every connection starts out Unknown and is greeted with {"msg":"?"}. It
// answers with {"msg":"?","?":"painter"} (optionally with "name" and "url")
// or {"msg":"?","?":"canvas"} and gets {"msg":"size","w":40,"h":40} back.
//
// Painters are polled with {"msg":"p"} and answer with exactly one tile of
// raw RGBA bytes. Anyone may send {"msg":"p"} to receive the composite as a
// binary frame: a big-endian uint16 side length followed by the pixels.
//
// Anything else is a violation. Violations are answered with
// {"msg":"error","error":...,"naughty":n} until the client reaches
// NaughtyLimit, after which it is disconnected. A painter the canvas has no
// room for is disconnected straight away.
package protocol
