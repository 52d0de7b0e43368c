package bot

import (
	"fmt"
	"strconv"
	"strings"

	"lead_bot/internal/model"
)

// SetupArgs holds the parsed arguments of /setup.
type SetupArgs struct {
	Window model.Window
	// ChannelID is where matches go; zero means the chat that ran /setup.
	ChannelID int64
	Phrases   []string
}

// ParseSetupArgs parses arguments for /setup.
// Format: <window> [-c chat_id] <phrase, phrase...>
func ParseSetupArgs(args string) (SetupArgs, error) {
	usage := fmt.Errorf("usage: /setup <hour|day|yesterday|week|month> [-c chat_id] <phrase, phrase...>")

	parts := strings.Fields(args)
	if len(parts) < 2 {
		return SetupArgs{}, usage
	}

	window, err := model.ParseWindow(parts[0])
	if err != nil {
		return SetupArgs{}, err
	}

	var channel int64
	rest := parts[1:]
	if rest[0] == "-c" {
		if len(rest) < 2 {
			return SetupArgs{}, usage
		}
		channel, err = strconv.ParseInt(rest[1], 10, 64)
		if err != nil {
			return SetupArgs{}, fmt.Errorf("invalid chat ID %q", rest[1])
		}
		rest = rest[2:]
	}

	phrases := SplitPhrases(strings.Join(rest, " "))
	if len(phrases) == 0 {
		return SetupArgs{}, fmt.Errorf("at least one phrase is required")
	}
	return SetupArgs{Window: window, ChannelID: channel, Phrases: phrases}, nil
}

// SplitPhrases splits a comma-separated list, dropping blanks.
func SplitPhrases(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// UpdateStatusArgs holds the parsed arguments of /updatestatus.
type UpdateStatusArgs struct {
	Row    int
	Status model.LeadStatus
	Notes  string
}

// ParseUpdateStatusArgs parses arguments for /updatestatus.
// Format: <row> <status> [notes...]. Status may contain spaces ("Not Interested").
func ParseUpdateStatusArgs(args string) (UpdateStatusArgs, error) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		return UpdateStatusArgs{}, fmt.Errorf("usage: /updatestatus <row> <status> [notes]")
	}

	row, err := strconv.Atoi(parts[0])
	if err != nil || row < 2 {
		return UpdateStatusArgs{}, fmt.Errorf("row must be a number of 2 or more (row 1 is the header)")
	}

	rest := parts[1:]
	for _, st := range model.LeadStatuses {
		words := strings.Fields(string(st))
		if len(rest) < len(words) {
			continue
		}
		if !strings.EqualFold(strings.Join(rest[:len(words)], " "), string(st)) {
			continue
		}
		return UpdateStatusArgs{
			Row:    row,
			Status: st,
			Notes:  strings.Join(rest[len(words):], " "),
		}, nil
	}
	return UpdateStatusArgs{}, fmt.Errorf("invalid status %q, use one of: %s", rest[0], statusList())
}

// ParseIDArg extracts a numeric ID from a command argument string.
func ParseIDArg(args string) (int64, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, fmt.Errorf("ID is required")
	}
	id, err := strconv.ParseInt(strings.Fields(s)[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ID %q", s)
	}
	return id, nil
}

func statusList() string {
	names := make([]string, len(model.LeadStatuses))
	for i, st := range model.LeadStatuses {
		names[i] = string(st)
	}
	return strings.Join(names, ", ")
}
