package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	toolmcp "github.com/andrewrchen05/bounding-box-agent/kernel/tool/mcptoolset"
)

// mcpConfigFile mirrors the on-disk MCP server registry. The mcpServers map
// keeps the key layout other agent CLIs share, so one file serves them all.
type mcpConfigFile struct {
	CacheTTLSeconds int                        `json:"cache_ttl_seconds,omitempty"`
	MCPServers      map[string]mcpServerRecord `json:"mcpServers"`
}

type mcpServerRecord struct {
	Prefix       string            `json:"prefix,omitempty"`
	Transport    string            `json:"transport,omitempty"`
	Command      string            `json:"command,omitempty"`
	Args         []string          `json:"args,omitempty"`
	Env          map[string]string `json:"env,omitempty"`
	WorkDir      string            `json:"workdir,omitempty"`
	URL          string            `json:"url,omitempty"`
	IncludeTools []string          `json:"include_tools,omitempty"`
	CallTimeout  int               `json:"call_timeout_seconds,omitempty"`
}

const defaultMCPConfigLocation = "~/.agents/mcp_servers.json"

// loadMCPToolManager builds the MCP tool manager from the config file at
// path, or the shared default location when path is empty. A missing file or
// an empty server map means MCP is simply not in use: both return (nil, nil).
func loadMCPToolManager(path string) (*toolmcp.Manager, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultMCPConfigLocation
	}
	resolved, err := resolveUserPath(path)
	if err != nil {
		return nil, fmt.Errorf("mcp config: resolve path %q: %w", path, err)
	}
	raw, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("mcp config: read %q: %w", resolved, err)
	}
	var cfgFile mcpConfigFile
	if err := json.Unmarshal(raw, &cfgFile); err != nil {
		return nil, fmt.Errorf("mcp config: parse %q: %w", resolved, err)
	}
	if len(cfgFile.MCPServers) == 0 {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(raw, &probe); err == nil {
			if _, ok := probe["servers"]; ok {
				return nil, fmt.Errorf("mcp config: parse %q: legacy \"servers\" format is not supported, use \"mcpServers\"", resolved)
			}
		}
		return nil, nil
	}

	names := make([]string, 0, len(cfgFile.MCPServers))
	for name := range cfgFile.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)

	cfg := toolmcp.Config{
		Servers: make([]toolmcp.ServerConfig, 0, len(names)),
	}
	if cfgFile.CacheTTLSeconds > 0 {
		cfg.CacheTTL = time.Duration(cfgFile.CacheTTLSeconds) * time.Second
	}
	for _, name := range names {
		server, err := serverConfigFromRecord(name, cfgFile.MCPServers[name])
		if err != nil {
			return nil, err
		}
		cfg.Servers = append(cfg.Servers, server)
	}
	return toolmcp.NewManager(cfg)
}

// serverConfigFromRecord converts one mcpServers entry. Transport is
// inferred when omitted: a command means stdio, a bare url means streamable.
func serverConfigFromRecord(name string, record mcpServerRecord) (toolmcp.ServerConfig, error) {
	transport := strings.TrimSpace(strings.ToLower(record.Transport))
	if transport == "" {
		switch {
		case strings.TrimSpace(record.Command) != "":
			transport = string(toolmcp.TransportStdio)
		case strings.TrimSpace(record.URL) != "":
			transport = string(toolmcp.TransportStreamable)
		}
	}
	server := toolmcp.ServerConfig{
		Name:         strings.TrimSpace(name),
		Prefix:       strings.TrimSpace(record.Prefix),
		Transport:    toolmcp.TransportType(transport),
		Command:      strings.TrimSpace(record.Command),
		Args:         append([]string(nil), record.Args...),
		Env:          copyStringMap(record.Env),
		WorkDir:      strings.TrimSpace(record.WorkDir),
		URL:          strings.TrimSpace(record.URL),
		IncludeTools: append([]string(nil), record.IncludeTools...),
	}
	if server.Name == "" {
		return toolmcp.ServerConfig{}, fmt.Errorf("mcp config: mcpServers has empty key name")
	}
	if server.WorkDir != "" {
		workDir, err := resolveUserPath(server.WorkDir)
		if err != nil {
			return toolmcp.ServerConfig{}, fmt.Errorf("mcp config: resolve workdir for mcpServers.%s: %w", server.Name, err)
		}
		server.WorkDir = workDir
	}
	if record.CallTimeout > 0 {
		server.CallTimeout = time.Duration(record.CallTimeout) * time.Second
	}
	return server, nil
}

func defaultMCPConfigPath() string {
	return defaultMCPConfigLocation
}

func copyStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[key] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
