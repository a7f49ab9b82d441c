package coordinator

import (
	"context"
	"fmt"
	"strings"

	"github.com/optionflow/coretrader/internal/registry"
)

// Kind is the closed set of operator commands the CLI surface accepts
// (spec §6 "CLI surface").
type Kind string

// The supported command kinds, one per CLI surface entry besides /help
// and /quit (handled by the caller owning stdin). /reload takes an
// optional instance-name argument.
const (
	KindStatus     Kind = "status"
	KindPause      Kind = "pause"
	KindResume     Kind = "resume"
	KindStrategies Kind = "strategies"
	KindReload     Kind = "reload"
	KindEnable     Kind = "enable"
	KindDisable    Kind = "disable"
	KindDiscover   Kind = "discover"
	KindPnL        Kind = "pnl"
	KindBudgets    Kind = "budgets"
	KindMetrics    Kind = "metrics"
	KindTrades     Kind = "trades"
	KindExport     Kind = "export"
)

// Command is one operator request submitted on Coordinator.Commands().
// Reply is optional: a nil channel means fire-and-forget.
type Command struct {
	Kind  Kind
	Args  []string
	Reply chan<- string
}

func (c *Coordinator) reply(cmd Command, msg string) {
	if cmd.Reply == nil {
		return
	}
	select {
	case cmd.Reply <- msg:
	default:
	}
}

// drainCommands processes every command queued since the last tick
// without blocking the scan loop on an empty queue (spec §4.7 "a
// separate concurrent command channel... without blocking the scan").
func (c *Coordinator) drainCommands(ctx context.Context) {
	for {
		select {
		case cmd := <-c.commands:
			c.handleCommand(ctx, cmd)
		default:
			return
		}
	}
}

func (c *Coordinator) handleCommand(ctx context.Context, cmd Command) {
	switch cmd.Kind {
	case KindStatus:
		c.logStatus()
		c.reply(cmd, fmt.Sprintf("open=%d pending=%d regime=%s scan=%d",
			len(c.eng.Positions()), len(c.eng.Pending()), c.regime.Current(), c.scanCount))

	case KindPause:
		c.paused = true
		c.log.Info("coordinator: paused, new entries suspended")
		c.reply(cmd, "paused")

	case KindResume:
		c.paused = false
		c.log.Info("coordinator: resumed")
		c.reply(cmd, "resumed")

	case KindStrategies:
		var lines []string
		for _, s := range c.reg.Status() {
			lines = append(lines, fmt.Sprintf("%s (%s) enabled=%v", s.Name, s.Type, s.Enabled))
		}
		c.reply(cmd, strings.Join(lines, "\n"))

	case KindEnable:
		if len(cmd.Args) != 1 {
			c.reply(cmd, "usage: /enable <name>")
			return
		}
		if err := c.reg.Enable(cmd.Args[0]); err != nil {
			c.reply(cmd, err.Error())
			return
		}
		c.reply(cmd, "enabled "+cmd.Args[0])

	case KindDisable:
		if len(cmd.Args) != 1 {
			c.reply(cmd, "usage: /disable <name>")
			return
		}
		if err := c.reg.Disable(cmd.Args[0]); err != nil {
			c.reply(cmd, err.Error())
			return
		}
		c.reply(cmd, "disabled "+cmd.Args[0])

	case KindReload:
		if c.disc == nil {
			c.reply(cmd, "reload unavailable: no discoverer configured")
			return
		}
		instances, err := c.disc.Discover()
		if err != nil {
			c.reply(cmd, "reload failed: "+err.Error())
			return
		}
		if len(cmd.Args) == 1 {
			name := cmd.Args[0]
			instCfg, ok := instances[name]
			if !ok {
				c.reply(cmd, fmt.Sprintf("reload failed: instance %q not found in config", name))
				return
			}
			if err := c.reg.Reload(name, instCfg); err != nil {
				c.reply(cmd, "reload failed: "+err.Error())
				return
			}
			c.reply(cmd, "reloaded "+name)
			return
		}
		n := c.reloadAll(instances)
		c.reply(cmd, fmt.Sprintf("reloaded %d instances", n))

	case KindDiscover:
		n := c.discover()
		c.reply(cmd, fmt.Sprintf("discovered %d new instance(s)", n))

	case KindPnL, KindBudgets, KindMetrics, KindTrades, KindExport:
		// Reporting commands read the Trade Store directly (spec §6
		// "Reports") rather than through the Coordinator/Engine, since
		// they have no bearing on scan-loop state; the CLI layer wires
		// them straight to the store.
		c.reply(cmd, "not handled by the coordinator; see the store-backed report commands")

	default:
		c.reply(cmd, fmt.Sprintf("unknown command %q", cmd.Kind))
	}
}

// reloadAll re-loads every discovered instance, preserving each one's
// current enabled flag via Registry.Reload.
func (c *Coordinator) reloadAll(instances map[string]registry.InstanceConfig) int {
	n := 0
	for name, instCfg := range instances {
		if err := c.reg.Reload(name, instCfg); err != nil {
			c.log.WithField("instance", name).WithError(err).Warn("coordinator: reload failed")
			continue
		}
		n++
	}
	return n
}

// discover probes for strategy instances present in config but not yet
// loaded into the registry, and loads them disabled by default so an
// operator must explicitly /enable a newly discovered instance.
func (c *Coordinator) discover() int {
	if c.disc == nil {
		return 0
	}
	instances, err := c.disc.Discover()
	if err != nil {
		c.log.WithError(err).Warn("coordinator: discover failed")
		return 0
	}
	n := 0
	for name, instCfg := range instances {
		if _, ok := c.reg.InstanceConfig(name); ok {
			continue
		}
		instCfg.Enabled = false
		if err := c.reg.Load(name, instCfg); err != nil {
			c.log.WithField("instance", name).WithError(err).Warn("coordinator: failed to load newly discovered instance")
			continue
		}
		c.log.WithField("instance", name).Info("coordinator: discovered new strategy instance (disabled by default)")
		n++
	}
	return n
}
