package common

// Credentials carries the authentication material used when directory
// scripts are executed on a remote host over SSH.
type Credentials struct {
	User          string
	Password      string
	KeyPassphrase string
}
