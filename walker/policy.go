package walker

// SelectOption returns the option index the walker clicks for a question
// with n options: the third option when there are at least three, otherwise
// the first. It returns -1 when n is 0.
//
// The choice is a fixed placeholder and makes no attempt to answer correctly.
func SelectOption(n int) int {
	switch {
	case n <= 0:
		return -1
	case n >= 3:
		return 2
	default:
		return 0
	}
}
