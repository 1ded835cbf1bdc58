package supervisor

import "strings"

// CredentialVars are removed from the agent's environment. They hold the
// keys memex uses for compression and must not leak into the wrapped agent.
var CredentialVars = []string{
	"MEMEX_API_KEY",
	"ANTHROPIC_API_KEY",
	"OPENAI_API_KEY",
}

// SanitizeEnv returns env without any CredentialVars entries.
func SanitizeEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		name, _, _ := strings.Cut(kv, "=")
		if isCredential(name) {
			continue
		}
		out = append(out, kv)
	}
	return out
}

// unsetScript prefixes a shell command line so credentials stay unset even
// after a login profile exports them again.
func unsetScript(path string, args []string) string {
	var b strings.Builder
	b.WriteString("unset ")
	b.WriteString(strings.Join(CredentialVars, " "))
	b.WriteString("; exec ")
	b.WriteString(shellQuote(path))
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(shellQuote(a))
	}
	return b.String()
}

func isCredential(name string) bool {
	for _, c := range CredentialVars {
		if name == c {
			return true
		}
	}
	return false
}
