// Package main provides the lazcrawl CLI.
//
// lazcrawl crawls Lazada product pages, either from an explicit URL list or
// by discovering products on category listings, and writes one JSON batch
// file per run.
//
// Usage:
//
//	lazcrawl [urls|categories|category] [flags]
//	lazcrawl version
package main

func main() {
	Execute()
}
