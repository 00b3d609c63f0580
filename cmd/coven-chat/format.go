// ABOUTME: Terminal formatting helpers for conversation lists
// ABOUTME: Prints recency groups with stable indexes and resolves index or ID arguments

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/2389/coven-chat/internal/store"
)

var timeNow = time.Now

// flatten orders the groups the way printGroups numbers them.
func flatten(groups store.Groups) []store.Conversation {
	out := make([]store.Conversation, 0, len(groups.Today)+len(groups.Yesterday)+len(groups.Older))
	out = append(out, groups.Today...)
	out = append(out, groups.Yesterday...)
	return append(out, groups.Older...)
}

// printGroups writes the conversation list, numbering entries from 1.
func printGroups(w io.Writer, groups store.Groups, currentID string) {
	sections := []struct {
		name  string
		convs []store.Conversation
	}{
		{"Today", groups.Today},
		{"Yesterday", groups.Yesterday},
		{"Older", groups.Older},
	}

	n := 0
	for _, sec := range sections {
		if len(sec.convs) == 0 {
			continue
		}
		fmt.Fprintln(w, color.New(color.Bold).Sprint(sec.name))
		for _, c := range sec.convs {
			n++
			marker := " "
			if c.ID == currentID {
				marker = color.GreenString("*")
			}
			fmt.Fprintf(w, "%s %2d. %s %s\n", marker, n, c.Title, color.HiBlackString("(%s, %d turns)", shortID(c.ID), len(c.Turns)))
			if c.Preview != "" {
				fmt.Fprintf(w, "       %s\n", color.HiBlackString(c.Preview))
			}
		}
	}
	if n == 0 {
		fmt.Fprintln(w, "No conversations")
	}
}

// resolveConversation maps a 1-based list index, a full ID or a unique ID
// prefix to a conversation ID. convs must be in printGroups order.
func resolveConversation(convs []store.Conversation, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", fmt.Errorf("conversation index or id required")
	}

	if idx, err := strconv.Atoi(arg); err == nil {
		if idx < 1 || idx > len(convs) {
			return "", fmt.Errorf("no conversation #%d (have %d)", idx, len(convs))
		}
		return convs[idx-1].ID, nil
	}

	var match string
	for _, c := range convs {
		if c.ID == arg {
			return c.ID, nil
		}
		if strings.HasPrefix(c.ID, arg) {
			if match != "" {
				return "", fmt.Errorf("id prefix %q is ambiguous", arg)
			}
			match = c.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no conversation matches %q", arg)
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
