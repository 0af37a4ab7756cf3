// Package githubrepos enumerates repositories owned by a GitHub account.
//
// It wraps the go-github client, walks the paginated repository listing until
// an empty page is returned, and keeps only repositories whose name carries the
// requested prefix.
package githubrepos
