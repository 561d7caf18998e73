package chunker

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JSONToChunks converts structured JSON into natural-language chunks the
// embedding model can retrieve on. Device inventories, MITRE techniques
// and dataflow definitions get dedicated renderings; anything else falls
// back to the plain-text splitter over the raw JSON.
func JSONToChunks(raw []byte, filename string, opts Options) []string {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return TextToChunks(string(raw), filename, opts)
	}

	switch v := decoded.(type) {
	case []any:
		var chunks []string
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			chunks = append(chunks, objectToChunks(obj, filename, opts)...)
		}
		if len(chunks) == 0 {
			return TextToChunks(string(raw), filename, opts)
		}
		return chunks
	case map[string]any:
		return objectToChunks(v, filename, opts)
	default:
		return TextToChunks(string(raw), filename, opts)
	}
}

func objectToChunks(obj map[string]any, filename string, opts Options) []string {
	switch {
	case str(obj, "mitre_id") != "":
		return []string{MitreToChunk(obj, filename)}
	case has(obj, "phases"):
		return DataflowToChunks(obj, filename)
	case str(obj, "id") != "" && str(obj, "name") != "":
		return DeviceToChunks(obj, filename)
	default:
		raw, _ := json.Marshal(obj)
		return TextToChunks(string(raw), filename, opts)
	}
}

// DeviceToChunks renders a device inventory record as several focused
// chunks: an IP lookup chunk (bilingual, so both "IP X belongs to Y" and
// its Vietnamese phrasing are retrievable), zone, OS, per-interface,
// services and vulnerabilities. Every chunk names the device and its ID.
func DeviceToChunks(obj map[string]any, filename string) []string {
	name := str(obj, "name")
	id := str(obj, "id")
	label := fmt.Sprintf("%s (ID: %s)", name, id)

	var chunks []string
	add := func(body string) {
		chunks = append(chunks, fmt.Sprintf("Source: %s\n%s", filename, body))
	}

	// IP -> device lookup chunk, answers "which device owns IP X".
	ips := deviceIPs(obj)
	if len(ips) > 0 {
		var lines []string
		lines = append(lines, fmt.Sprintf("Device IP lookup for %s:", label))
		for _, ip := range ips {
			lines = append(lines, fmt.Sprintf("IP %s belongs to %s.", ip, label))
			lines = append(lines, fmt.Sprintf("IP %s thuộc về thiết bị %s.", ip, label))
		}
		add(strings.Join(lines, "\n"))
	}

	if zone := str(obj, "zone"); zone != "" {
		add(fmt.Sprintf("Device %s is located in zone %s.\nThiết bị %s nằm trong vùng mạng %s.", label, zone, label, zone))
	}

	if osInfo := osLine(obj); osInfo != "" {
		add(fmt.Sprintf("Device %s runs %s.", label, osInfo))
	}

	for _, iface := range list(obj, "interfaces") {
		var parts []string
		parts = append(parts, fmt.Sprintf("Network interface %s of device %s:", str(iface, "name"), label))
		if ip := str(iface, "ip"); ip != "" {
			parts = append(parts, fmt.Sprintf("- IP address: %s", ip))
		}
		if mac := str(iface, "mac"); mac != "" {
			parts = append(parts, fmt.Sprintf("- MAC address: %s", mac))
		}
		if vlan := str(iface, "vlan"); vlan != "" {
			parts = append(parts, fmt.Sprintf("- VLAN: %s", vlan))
		}
		add(strings.Join(parts, "\n"))
	}

	if services := list(obj, "services"); len(services) > 0 {
		var parts []string
		parts = append(parts, fmt.Sprintf("Services running on device %s:", label))
		for _, svc := range services {
			line := fmt.Sprintf("- %s", str(svc, "name"))
			if port := str(svc, "port"); port != "" {
				line += fmt.Sprintf(" on port %s", port)
			}
			if proto := str(svc, "protocol"); proto != "" {
				line += fmt.Sprintf(" (%s)", proto)
			}
			parts = append(parts, line)
		}
		add(strings.Join(parts, "\n"))
	}

	if vulns := list(obj, "vulnerabilities"); len(vulns) > 0 {
		var parts []string
		parts = append(parts, fmt.Sprintf("Known vulnerabilities on device %s:", label))
		for _, v := range vulns {
			line := fmt.Sprintf("- %s", str(v, "cve"))
			if sev := str(v, "severity"); sev != "" {
				line += fmt.Sprintf(" [%s]", sev)
			}
			if desc := str(v, "description"); desc != "" {
				line += ": " + desc
			}
			parts = append(parts, line)
		}
		add(strings.Join(parts, "\n"))
	}

	return chunks
}

// MitreToChunk renders a MITRE ATT&CK technique as one chunk, ID first so
// queries for the bare technique code rank it highly.
func MitreToChunk(obj map[string]any, filename string) string {
	id := str(obj, "mitre_id")
	name := str(obj, "name")

	var parts []string
	parts = append(parts, fmt.Sprintf("MITRE ATT&CK Technique %s: %s", id, name))
	if tactics := strList(obj, "tactics"); len(tactics) > 0 {
		parts = append(parts, fmt.Sprintf("Tactics: %s", strings.Join(tactics, ", ")))
	}
	if platforms := strList(obj, "platforms"); len(platforms) > 0 {
		parts = append(parts, fmt.Sprintf("Platforms: %s", strings.Join(platforms, ", ")))
	}
	if desc := str(obj, "description"); desc != "" {
		parts = append(parts, fmt.Sprintf("Description: %s", desc))
	}
	if sources := strList(obj, "data_sources"); len(sources) > 0 {
		parts = append(parts, fmt.Sprintf("Data sources: %s", strings.Join(sources, ", ")))
	}
	parts = append(parts, fmt.Sprintf("Search keywords: %s, %s, MITRE %s", id, name, id))

	return fmt.Sprintf("Source: %s\n%s", filename, strings.Join(parts, "\n"))
}

// DataflowToChunks renders a dataflow definition: a phases-summary chunk
// (answers "how many phases"), one chunk per phase, a components summary
// and a routing-pipelines chunk.
func DataflowToChunks(obj map[string]any, filename string) []string {
	name := str(obj, "name")
	if name == "" {
		name = strings.TrimSuffix(filename, ".json")
	}
	phases := list(obj, "phases")

	var chunks []string
	add := func(body string) {
		chunks = append(chunks, fmt.Sprintf("Source: %s\n%s", filename, body))
	}

	// Summary chunk.
	var names []string
	for _, p := range phases {
		names = append(names, str(p, "name"))
	}
	add(fmt.Sprintf("Dataflow %s has %d phases: %s.", name, len(phases), strings.Join(names, ", ")))

	// Per-phase chunks.
	for i, p := range phases {
		var parts []string
		parts = append(parts, fmt.Sprintf("Dataflow %s, phase %d: %s", name, i+1, str(p, "name")))
		if desc := str(p, "description"); desc != "" {
			parts = append(parts, desc)
		}
		if comps := strList(p, "components"); len(comps) > 0 {
			parts = append(parts, fmt.Sprintf("Components involved: %s", strings.Join(comps, ", ")))
		}
		add(strings.Join(parts, "\n"))
	}

	// Components summary chunk.
	seen := make(map[string]bool)
	var components []string
	for _, p := range phases {
		for _, c := range strList(p, "components") {
			if !seen[c] {
				seen[c] = true
				components = append(components, c)
			}
		}
	}
	for _, c := range strList(obj, "components") {
		if !seen[c] {
			seen[c] = true
			components = append(components, c)
		}
	}
	if len(components) > 0 {
		add(fmt.Sprintf("Dataflow %s uses the following components: %s.", name, strings.Join(components, ", ")))
	}

	// Routing pipelines chunk.
	if pipelines := list(obj, "pipelines"); len(pipelines) > 0 {
		var parts []string
		parts = append(parts, fmt.Sprintf("Routing pipelines of dataflow %s:", name))
		for _, pl := range pipelines {
			line := fmt.Sprintf("- %s", str(pl, "name"))
			if from, to := str(pl, "from"), str(pl, "to"); from != "" && to != "" {
				line += fmt.Sprintf(": routes from %s to %s", from, to)
			}
			parts = append(parts, line)
		}
		add(strings.Join(parts, "\n"))
	}

	return chunks
}

// deviceIPs collects every IP found on the device record, both a top-level
// "ip" field and interface addresses.
func deviceIPs(obj map[string]any) []string {
	var ips []string
	seen := make(map[string]bool)
	addIP := func(ip string) {
		if ip != "" && !seen[ip] {
			seen[ip] = true
			ips = append(ips, ip)
		}
	}
	addIP(str(obj, "ip"))
	for _, iface := range list(obj, "interfaces") {
		addIP(str(iface, "ip"))
	}
	return ips
}

func osLine(obj map[string]any) string {
	switch v := obj["os"].(type) {
	case string:
		return v
	case map[string]any:
		name := str(v, "name")
		if version := str(v, "version"); version != "" {
			return name + " " + version
		}
		return name
	default:
		return ""
	}
}

func has(obj map[string]any, key string) bool {
	_, ok := obj[key]
	return ok
}

func str(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return ""
	}
}

func list(obj map[string]any, key string) []map[string]any {
	raw, ok := obj[key].([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func strList(obj map[string]any, key string) []string {
	raw, ok := obj[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
