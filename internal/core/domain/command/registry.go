package command

import (
	"errors"
	"fixfur/internal/core/port"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
)

var ErrCommandNotFound = errors.New("command not found")

type Registry struct {
	commands map[string]port.Command
}

func (r *Registry) Register(handler port.Command) {
	if r.commands == nil {
		r.commands = make(map[string]port.Command)
	}

	log.Info().Str("handler", handler.GetCommand()).Msg("adding command handler to registry")
	r.commands[handler.GetCommand()] = handler
}

func (r *Registry) Get(command string) (port.Command, error) {
	log.Debug().Str("command", command).Msg("fetching command handler from registry")

	if r.commands == nil {
		return nil, errors.New("can't fetch command, registry not initialized")
	}

	handler, ok := r.commands[command]
	if !ok {
		return nil, ErrCommandNotFound
	}

	return handler, nil
}

// ListCommands returns the registered command identifiers in lexical order.
func (r *Registry) ListCommands() []string {
	keys := make([]string, 0, len(r.commands))
	for k := range r.commands {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	return keys
}

// ParseCommand returns the lowercased command of a message, without any @botname suffix.
func ParseCommand(args string) string {
	command := strings.Split(strings.TrimSpace(args), " ")
	name, _, _ := strings.Cut(command[0], "@")
	return strings.ToLower(name)
}
