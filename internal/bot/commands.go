package bot

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/guardbot/guardbot/internal/db"
)

type commandSource interface {
	ListCommands(ctx context.Context) ([]db.CustomCommand, error)
}

// CommandSet is the snapshot of operator-defined canned replies, keyed by
// trigger without the leading slash. Reload swaps the whole table at once.
type CommandSet struct {
	mu        sync.RWMutex
	responses map[string]string
}

func NewCommandSet() *CommandSet {
	return &CommandSet{responses: make(map[string]string)}
}

func (c *CommandSet) Replace(commands []db.CustomCommand) {
	next := make(map[string]string, len(commands))
	for _, cmd := range commands {
		trigger := strings.ToLower(strings.TrimSpace(cmd.Trigger))
		if trigger == "" {
			continue
		}
		next[trigger] = cmd.Response
	}
	c.mu.Lock()
	c.responses = next
	c.mu.Unlock()
}

func (c *CommandSet) Reload(ctx context.Context, source commandSource) error {
	commands, err := source.ListCommands(ctx)
	if err != nil {
		return err
	}
	c.Replace(commands)
	return nil
}

func (c *CommandSet) Lookup(trigger string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	response, ok := c.responses[strings.ToLower(trigger)]
	return response, ok
}

func (c *CommandSet) Triggers() []string {
	c.mu.RLock()
	triggers := make([]string, 0, len(c.responses))
	for trigger := range c.responses {
		triggers = append(triggers, trigger)
	}
	c.mu.RUnlock()
	sort.Strings(triggers)
	return triggers
}

func (c *CommandSet) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.responses)
}
