// Package assembler owns the assistant's provisional turn while its response
// streams in.
//
// A session calls Begin once the stream opens, AppendFragment for every
// content frame, and exactly one of Commit, CommitAsError or Abandon when it
// ends. Each conversation has at most one provisional turn at a time; a
// second Begin fails with ErrInvalidState until the first is released.
package assembler
