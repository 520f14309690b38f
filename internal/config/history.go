package config

import (
	"time"

	"rdcp/internal/global"
	"rdcp/internal/logctx"
)

// One remembered connection, most recent first in the stored lists
type HistoryEntry struct {
	Host string
	Port int
	Time time.Time
}

// Returns the connection history, most recent first. Entries whose
// stored fields do not line up are skipped.
func (cfg *Config) History() (entries []HistoryEntry) {
	hosts := cfg.viper.GetStringSlice(KeyHistoryHosts)
	ports := cfg.viper.GetIntSlice(KeyHistoryPorts)
	times := cfg.viper.GetStringSlice(KeyHistoryTimes)

	for i, host := range hosts {
		if i >= len(ports) {
			break
		}

		entry := HistoryEntry{Host: host, Port: ports[i]}
		if i < len(times) {
			stamp, parseErr := time.Parse(time.RFC3339, times[i])
			if parseErr == nil {
				entry.Time = stamp
			}
		}
		entries = append(entries, entry)
	}
	return
}

// Moves the endpoint to the front of the history, deduplicating any
// earlier entry for the same host and port, and trims to the cap
func (cfg *Config) RecordConnection(host string, port int, when time.Time) {
	previous := cfg.History()

	entries := make([]HistoryEntry, 0, len(previous)+1)
	entries = append(entries, HistoryEntry{Host: host, Port: port, Time: when})
	for _, entry := range previous {
		if entry.Host == host && entry.Port == port {
			continue
		}
		entries = append(entries, entry)
	}
	if len(entries) > global.HistoryMaxEntries {
		entries = entries[:global.HistoryMaxEntries]
	}

	hosts := make([]string, len(entries))
	ports := make([]int, len(entries))
	times := make([]string, len(entries))
	for i, entry := range entries {
		hosts[i] = entry.Host
		ports[i] = entry.Port
		times[i] = entry.Time.UTC().Format(time.RFC3339)
	}

	cfg.viper.Set(KeyHistoryHosts, hosts)
	cfg.viper.Set(KeyHistoryPorts, ports)
	cfg.viper.Set(KeyHistoryTimes, times)

	err := cfg.Save()
	if err != nil {
		logctx.LogEvent(cfg.ctx, global.VerbosityStandard, global.WarnLog, "history not persisted: %v", err)
	}
}
