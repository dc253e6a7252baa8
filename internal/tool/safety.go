package tool

import (
	"regexp"
	"strings"
)

// RiskLevel grades a shell command before dispatch.
type RiskLevel int

const (
	RiskSafe RiskLevel = iota
	RiskWarning
	RiskBlocked
)

// RiskVerdict is the outcome of analyzing one command.
type RiskVerdict struct {
	Level       RiskLevel
	Reason      string
	Alternative string
}

type riskPattern struct {
	regex       *regexp.Regexp
	level       RiskLevel
	reason      string
	alternative string
}

// Guard screens shell commands steps ask the bash tool to run. Blocked
// commands fail their step without executing; warnings execute but are
// surfaced in the step result.
type Guard struct {
	patterns []riskPattern
}

func NewGuard() *Guard {
	return &Guard{patterns: guardPatterns()}
}

func guardPatterns() []riskPattern {
	return []riskPattern{
		{
			regex:       regexp.MustCompile(`rm\s+(-[rf]+\s+)*(/|/\*|\.\.|~)(\s|$)`),
			level:       RiskBlocked,
			reason:      "destructive filesystem operation on a critical path",
			alternative: "name the exact directory: rm -rf ./specific-directory",
		},
		{
			regex:       regexp.MustCompile(`mkfs\s`),
			level:       RiskBlocked,
			reason:      "filesystem formatting is blocked",
			alternative: "format operations need a human at the keyboard",
		},
		{
			regex:       regexp.MustCompile(`dd\s+.*of=/dev/`),
			level:       RiskBlocked,
			reason:      "direct device write is blocked",
			alternative: "device operations need a human at the keyboard",
		},
		{
			regex:       regexp.MustCompile(`git\s+push\s+.*--force(\s|$)`),
			level:       RiskBlocked,
			reason:      "force push destroys remote history",
			alternative: "use git push --force-with-lease",
		},
		{
			regex:       regexp.MustCompile(`rm\s+-rf\s+\.git(\s|$)`),
			level:       RiskBlocked,
			reason:      "deleting .git destroys repository history",
			alternative: "if intentional, do it manually",
		},
		{
			regex:       regexp.MustCompile(`(?i)DROP\s+DATABASE`),
			level:       RiskBlocked,
			reason:      "DROP DATABASE is blocked",
			alternative: "use database admin tooling with backups",
		},
		{
			regex:       regexp.MustCompile(`git\s+add\s+.*\.env`),
			level:       RiskBlocked,
			reason:      ".env files contain secrets",
			alternative: "add .env to .gitignore",
		},
		{
			regex:       regexp.MustCompile(`git\s+add\s+.*(id_rsa|id_ed25519|\.pem|\.key)`),
			level:       RiskBlocked,
			reason:      "private keys must never be committed",
			alternative: "add the key to .gitignore, use secrets management",
		},
		{
			regex:       regexp.MustCompile(`docker\s+run\s+.*-v\s+/:/`),
			level:       RiskBlocked,
			reason:      "mounting the root filesystem is blocked",
			alternative: "mount a specific directory instead",
		},
		{
			regex:       regexp.MustCompile(`git\s+reset\s+--hard\s+HEAD~`),
			level:       RiskWarning,
			reason:      "hard reset discards uncommitted changes",
			alternative: "git stash first, or git reset --soft",
		},
		{
			regex:       regexp.MustCompile(`(?i)DELETE\s+FROM\s+\w+\s*(;|$)`),
			level:       RiskWarning,
			reason:      "DELETE without WHERE affects every row",
			alternative: "add a WHERE clause",
		},
		{
			regex:       regexp.MustCompile(`(?i)TRUNCATE\s+TABLE`),
			level:       RiskWarning,
			reason:      "TRUNCATE removes all rows",
			alternative: "take a backup first",
		},
		{
			regex:       regexp.MustCompile(`docker\s+run\s+.*--privileged`),
			level:       RiskWarning,
			reason:      "privileged containers can escape isolation",
			alternative: "grant specific capabilities with --cap-add",
		},
		{
			regex:       regexp.MustCompile(`curl\s+.*\|\s*(bash|sh)`),
			level:       RiskWarning,
			reason:      "piping curl to a shell runs unreviewed code",
			alternative: "download, inspect, then run",
		},
	}
}

// Analyze checks a command against the guard patterns. First match
// wins; an unmatched command is safe.
func (g *Guard) Analyze(command string) RiskVerdict {
	cmd := strings.TrimSpace(command)
	for _, p := range g.patterns {
		if p.regex.MatchString(cmd) {
			return RiskVerdict{Level: p.level, Reason: p.reason, Alternative: p.alternative}
		}
	}
	return RiskVerdict{Level: RiskSafe}
}

// Allows reports whether the command may execute.
func (g *Guard) Allows(command string) bool {
	return g.Analyze(command).Level != RiskBlocked
}

// DefaultGuard screens every bash tool dispatch.
var DefaultGuard = NewGuard()
