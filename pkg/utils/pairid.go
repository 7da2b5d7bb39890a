package utils

// PairSeparator joins the two sorted identifiers of a pair id.
const PairSeparator = "_"

// PairID returns the canonical id for an unordered pair of identities.
// Friendships, chats and pending-request locks all key on it.
func PairID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + PairSeparator + b
}
