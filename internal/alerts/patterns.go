package alerts

import "strings"

// Attack patterns in detection priority order: the first taxonomy entry
// whose keywords match wins, so more specific attack stages are checked
// before generic traffic categories.
const (
	PatternReconnaissance    = "reconnaissance"
	PatternBruteForce        = "brute_force"
	PatternLateralMovement   = "lateral_movement"
	PatternExfiltration      = "exfiltration"
	PatternNetworkAttack     = "network_attack"
	PatternMalware           = "malware"
	PatternWebAttack         = "web_attack"
	PatternBlockedTraffic    = "blocked_traffic"
	PatternSuspiciousTraffic = "suspicious_traffic"
	PatternConnection        = "connection"
	PatternUnknown           = "unknown"
)

type patternRule struct {
	name     string
	keywords []string
}

var patternRules = []patternRule{
	{PatternReconnaissance, []string{"port scan", "scanning", "nmap", "probe", "reconnaissance", "enumerat"}},
	{PatternBruteForce, []string{"brute force", "brute-force", "failed login", "authentication failure", "invalid password", "login attempt"}},
	{PatternLateralMovement, []string{"lateral movement", "psexec", "pass the hash", "wmi exec", "remote execution", "smb session"}},
	{PatternExfiltration, []string{"exfiltration", "data transfer out", "dns tunnel", "large upload", "outbound transfer"}},
	{PatternNetworkAttack, []string{"ddos", "dos attack", "syn flood", "flood", "amplification"}},
	{PatternMalware, []string{"malware", "trojan", "ransomware", "virus", "backdoor", "botnet", "c2 callback"}},
	{PatternWebAttack, []string{"sql injection", "sqli", "xss", "cross-site", "directory traversal", "web attack", "command injection"}},
	{PatternBlockedTraffic, []string{"blocked", "denied", "deny", "dropped", "reject"}},
	{PatternSuspiciousTraffic, []string{"suspicious", "anomaly", "anomalous", "unusual traffic"}},
	{PatternConnection, []string{"connection", "session established", "connect"}},
}

// escalationPatterns are attack-chain stages; seeing several of them in
// one window indicates an attack in progress rather than noise.
var escalationPatterns = map[string]bool{
	PatternReconnaissance:  true,
	PatternBruteForce:      true,
	PatternLateralMovement: true,
	PatternExfiltration:    true,
}

// patternDescriptions label patterns in the deterministic summary.
var patternDescriptions = map[string]string{
	PatternReconnaissance:    "Reconnaissance / scanning activity",
	PatternBruteForce:        "Brute-force authentication attempts",
	PatternLateralMovement:   "Lateral movement between hosts",
	PatternExfiltration:      "Possible data exfiltration",
	PatternNetworkAttack:     "Network-level attack traffic",
	PatternMalware:           "Malware-related activity",
	PatternWebAttack:         "Web application attack",
	PatternBlockedTraffic:    "Traffic blocked by policy",
	PatternSuspiciousTraffic: "Suspicious traffic",
	PatternConnection:        "Connection events",
	PatternUnknown:           "Unclassified activity",
}

// DetectPattern classifies a raw log line against the taxonomy.
func DetectPattern(mlInput string) string {
	text := strings.ToLower(mlInput)
	for _, rule := range patternRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.name
			}
		}
	}
	return PatternUnknown
}
