package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCredentialsGuide explains how to provide chat service credentials
func ShowCredentialsGuide(w io.Writer, envFile string) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "CHAT SERVICE CREDENTIALS")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Definitions are generated through a hosted chat service that needs a")
	fmt.Fprintln(w, "logged-in account. Provide the account in one of these ways:")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  1. Create %s with:\n", envFile)
	fmt.Fprintln(w, "       EMAIL=you@example.com")
	fmt.Fprintln(w, "       PASSWORD=your-password")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  2. Run 'fortidsminder auth login' to store the account in the")
	fmt.Fprintln(w, "     system keychain or the encrypted credentials file.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  3. Export EMAIL and PASSWORD in the environment.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Session cookies are cached per account in the cookie directory, so")
	fmt.Fprintln(w, "later runs reuse the session without logging in again.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
