package categorizer

import "strings"

// MaxPayeeLength bounds memorized payee keys, counted in characters.
const MaxPayeeLength = 255

var payeeStripper = strings.NewReplacer(
	"<", "", ">", "", `"`, "", "'", "", "/", "", `\`, "",
)

// SanitizePayee strips characters that are unsafe in stored keys, trims
// surrounding whitespace, then truncates to MaxPayeeLength characters. The
// truncated value is not trimmed again. Case is kept.
func SanitizePayee(payee string) string {
	s := strings.TrimSpace(payeeStripper.Replace(payee))
	if r := []rune(s); len(r) > MaxPayeeLength {
		s = string(r[:MaxPayeeLength])
	}
	return s
}
