package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type commandKind int

const (
	cmdNew commandKind = iota
	cmdSave
	cmdMemory
	cmdEdit
	cmdDelete
	cmdChats
	cmdLoad
	cmdQuit
	cmdHelp
)

type command struct {
	kind  commandKind
	index int // 1-based, for edit, delete and load
	text  string
}

const helpText = "/new  /save  /memory  /edit <n> <text>  /delete <n>  /chats  /load <n>  /quit"

var errNotCommand = errors.New("not a command")

// parseCommand reads a slash command typed into the input line.
func parseCommand(input string) (command, error) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return command{}, errNotCommand
	}

	name, rest, _ := strings.Cut(input[1:], " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "new":
		return command{kind: cmdNew}, nil
	case "save":
		return command{kind: cmdSave}, nil
	case "memory":
		return command{kind: cmdMemory}, nil
	case "chats":
		return command{kind: cmdChats}, nil
	case "quit", "exit":
		return command{kind: cmdQuit}, nil
	case "help":
		return command{kind: cmdHelp}, nil
	case "delete":
		n, err := parseIndex(rest)
		if err != nil {
			return command{}, fmt.Errorf("usage: /delete <n>")
		}
		return command{kind: cmdDelete, index: n}, nil
	case "load":
		n, err := parseIndex(rest)
		if err != nil {
			return command{}, fmt.Errorf("usage: /load <n>")
		}
		return command{kind: cmdLoad, index: n}, nil
	case "edit":
		num, text, _ := strings.Cut(rest, " ")
		n, err := parseIndex(num)
		text = strings.TrimSpace(text)
		if err != nil || text == "" {
			return command{}, fmt.Errorf("usage: /edit <n> <text>")
		}
		return command{kind: cmdEdit, index: n, text: text}, nil
	default:
		return command{}, fmt.Errorf("unknown command /%s; try %s", name, helpText)
	}
}

func parseIndex(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid index %q", raw)
	}
	return n, nil
}
