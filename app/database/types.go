package database

type SeenItem struct {
	GUID       string
	Title      string
	HashString string // empty when submission failed before the daemon assigned a hash
}
