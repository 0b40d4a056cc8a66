package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"hookd/internal/protocol"
	"hookd/internal/watch"
)

// handleStartMonitoring registers paths with the watch manager. A
// nonexistent path is a per-path error: when other paths register the
// call still succeeds and reports the failures; when nothing could be
// registered the whole command fails and no watcher is left running.
func (d *Daemon) handleStartMonitoring(cmd *protocol.Command) (any, error) {
	if len(cmd.Payload) == 0 {
		return nil, errors.New("Missing 'paths' in payload for start_fs_monitoring")
	}
	var p protocol.StartMonitoringPayload
	if err := json.Unmarshal(cmd.Payload, &p); err != nil {
		return nil, fmt.Errorf("invalid payload for %s: %v", cmd.Command, err)
	}
	if len(p.Paths) == 0 {
		return nil, errors.New("Missing 'paths' in payload for start_fs_monitoring")
	}

	added, pathErrs, err := d.watchMgr.Start(p.Paths, p.Recursive, p.Alias)
	if err != nil {
		return nil, err
	}

	if len(added) == 0 && !d.watchMgr.Watching() {
		return nil, errors.New(joinPathErrors(pathErrs))
	}

	result := map[string]any{
		"watching": d.watchMgr.Paths(),
		"added":    added,
	}
	if len(pathErrs) > 0 {
		result["errors"] = pathErrs
	}
	return result, nil
}

// handleStopMonitoring stops the watcher entirely. Naming a subset of
// paths does not narrow the stop; the documented policy is that any stop
// request clears all registrations.
func (d *Daemon) handleStopMonitoring(cmd *protocol.Command) (any, error) {
	var p protocol.StopMonitoringPayload
	if len(cmd.Payload) > 0 {
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid payload for %s: %v", cmd.Command, err)
		}
	}

	stopped, err := d.watchMgr.StopAll()
	if err != nil {
		if errors.Is(err, watch.ErrNotWatching) {
			return nil, errors.New("file system monitoring is not active")
		}
		return nil, err
	}
	return map[string]any{
		"message":       "File system monitoring stopped.",
		"stopped_paths": stopped,
	}, nil
}

func joinPathErrors(pathErrs map[string]string) string {
	if len(pathErrs) == 0 {
		return "no paths could be monitored"
	}
	keys := make([]string, 0, len(pathErrs))
	for k := range pathErrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, pathErrs[k])
	}
	return strings.Join(msgs, "; ")
}
