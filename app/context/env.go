package context

// Environment abstracts the process environment, so commands can read and
// write variables without touching the os package directly.
type Environment interface {
	// Get returns the value of the variable, or "" if it's unset.
	Get(key string) string
	// Set assigns a value to the variable.
	Set(key, value string) error
}
