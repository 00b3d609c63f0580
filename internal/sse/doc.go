// Package sse decodes the assistant's streaming response body into Frames.
//
// # Wire Format
//
// The body is line oriented. Each event is a line
//
//	data: {"type":"content","content":"Hel"}
//
// and the stream ends with
//
//	data: [DONE]
//
// Lines without the "data: " prefix (blank separators, comments, event:
// lines) are ignored. Payloads are JSON objects discriminated by "type":
//
//   - content: requires a non-empty "content" string
//   - error: optional "error" reason, defaults to "unknown error"
//   - complete: normal completion
//   - start: informational
//
// Unknown types are dropped. Payloads that are not JSON objects are recorded
// as warnings (ErrDecodeWarning) and skipped.
//
// # Usage
//
//	dec := sse.NewDecoder(resp.Body, logger)
//	for {
//		frame, err := dec.Next()
//		if err == io.EOF {
//			break
//		}
//		...
//	}
//
// The decoder stops reading after a complete or error frame, so a caller
// that stops early only needs to close the body.
package sse
