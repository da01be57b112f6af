package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// applyKDL overlays a .linkwatcher.kdl document on cfg.
//
//	monitored_extensions ".md" ".txt"
//	ignored_directories ".git" "node_modules"
//	max_file_size_mb 10
//	custom_parsers {
//	    ".mdx" "markdown"
//	}
func applyKDL(cfg *Config, content string) error {
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project_root":
			if s, ok := firstStringArg(n); ok {
				cfg.ProjectRoot = s
			}
		case "monitored_extensions":
			cfg.MonitoredExtensions = collectStringArgs(n)
		case "ignored_directories":
			cfg.IgnoredDirectories = collectStringArgs(n)
		case "exclude_patterns":
			cfg.ExcludePatterns = collectStringArgs(n)
		case "create_backups":
			assignBool(n, &cfg.CreateBackups)
		case "backup_tag":
			if s, ok := firstStringArg(n); ok {
				cfg.BackupTag = s
			}
		case "dry_run_mode":
			assignBool(n, &cfg.DryRunMode)
		case "atomic_updates":
			assignBool(n, &cfg.AtomicUpdates)
		case "fsync_writes":
			assignBool(n, &cfg.FsyncWrites)
		case "max_file_size_mb":
			assignInt(n, &cfg.MaxFileSizeMB)
		case "initial_scan_enabled":
			assignBool(n, &cfg.InitialScanEnabled)
		case "scan_progress_interval":
			assignInt(n, &cfg.ScanProgressInterval)
		case "scan_workers":
			assignInt(n, &cfg.ScanWorkers)
		case "log_level":
			if s, ok := firstStringArg(n); ok {
				cfg.LogLevel = s
			}
		case "move_detect_timeout_ms":
			assignInt(n, &cfg.MoveDetectTimeoutMs)
		case "dir_move_timeout_ms":
			assignInt(n, &cfg.DirMoveTimeoutMs)
		case "write_debounce_ms":
			assignInt(n, &cfg.WriteDebounceMs)
		case "custom_parsers":
			parsers := make(map[string]string, len(n.Children))
			for _, cn := range n.Children {
				if id, ok := firstStringArg(cn); ok {
					parsers[nodeName(cn)] = id
				}
			}
			cfg.CustomParsers = parsers
		}
	}

	return nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func assignBool(n *document.Node, dst *bool) {
	if b, ok := firstBoolArg(n); ok {
		*dst = b
	}
}

func assignInt(n *document.Node, dst *int) {
	if v, ok := firstIntArg(n); ok {
		*dst = v
	}
}

// collectStringArgs accepts both the inline form (`key "a" "b"`) and the block
// form (`key { "a"; "b" }`) where each child node's name is the value.
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	if len(out) == 0 && len(n.Children) > 0 {
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}

// marshalKDL renders cfg in the flat layout applyKDL reads.
func marshalKDL(cfg *Config) []byte {
	var b strings.Builder
	str := func(key, v string) { fmt.Fprintf(&b, "%s %s\n", key, strconv.Quote(v)) }
	list := func(key string, vs []string) {
		b.WriteString(key)
		for _, v := range vs {
			b.WriteByte(' ')
			b.WriteString(strconv.Quote(v))
		}
		b.WriteByte('\n')
	}
	val := func(key string, v any) { fmt.Fprintf(&b, "%s %v\n", key, v) }

	str("project_root", cfg.ProjectRoot)
	list("monitored_extensions", cfg.MonitoredExtensions)
	list("ignored_directories", cfg.IgnoredDirectories)
	list("exclude_patterns", cfg.ExcludePatterns)
	val("create_backups", cfg.CreateBackups)
	str("backup_tag", cfg.BackupTag)
	val("dry_run_mode", cfg.DryRunMode)
	val("atomic_updates", cfg.AtomicUpdates)
	val("fsync_writes", cfg.FsyncWrites)
	val("max_file_size_mb", cfg.MaxFileSizeMB)
	val("initial_scan_enabled", cfg.InitialScanEnabled)
	val("scan_progress_interval", cfg.ScanProgressInterval)
	val("scan_workers", cfg.ScanWorkers)
	str("log_level", cfg.LogLevel)
	val("move_detect_timeout_ms", cfg.MoveDetectTimeoutMs)
	val("dir_move_timeout_ms", cfg.DirMoveTimeoutMs)
	val("write_debounce_ms", cfg.WriteDebounceMs)

	if len(cfg.CustomParsers) > 0 {
		exts := make([]string, 0, len(cfg.CustomParsers))
		for ext := range cfg.CustomParsers {
			exts = append(exts, ext)
		}
		sort.Strings(exts)
		b.WriteString("custom_parsers {\n")
		for _, ext := range exts {
			fmt.Fprintf(&b, "    %s %s\n", strconv.Quote(ext), strconv.Quote(cfg.CustomParsers[ext]))
		}
		b.WriteString("}\n")
	}
	return []byte(b.String())
}
