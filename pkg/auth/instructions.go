package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowTokenGuide writes instructions for obtaining each secret
func ShowTokenGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "API CREDENTIALS")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "1. Source API bearer token ("+SecretTwitterBearer+")")
	fmt.Fprintln(w, "   - Open https://developer.x.com/en/portal/dashboard")
	fmt.Fprintln(w, "   - Select your project and app, then Keys and tokens")
	fmt.Fprintln(w, "   - Generate a Bearer Token and copy it")
	fmt.Fprintln(w, "   The free tier allows 100 timeline requests per month. Set quota.monthly_ceiling")
	fmt.Fprintln(w, "   a few requests below your plan's limit.")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "2. Classification key ("+SecretAnthropicKey+" or "+SecretClassifierToken+")")
	fmt.Fprintln(w, "   - For classifier.provider=anthropic, create a key at https://console.anthropic.com")
	fmt.Fprintln(w, "   - For classifier.provider=http, use the token your endpoint expects")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Store a secret with:")
	fmt.Fprintln(w, "   prompthunter auth set "+SecretTwitterBearer)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Or export one of:")
	for _, name := range KnownSecrets {
		fmt.Fprintf(w, "   %-24s %s\n", name, strings.Join(EnvVarsFor(name), ", "))
	}
	fmt.Fprintln(w, rule)
}
