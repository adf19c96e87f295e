// Package itch implements the provider adapter for itch.io. The site sits
// behind a bot challenge, so requests carry operator-captured headers from a
// file; when those are missing or rejected the adapter surfaces a
// needs-manual-input error that the operator resolves out-of-band before
// retrying. Cartridge files on itch are fetched per-page by hand, so
// snapshot records carry metadata only, no download source.
package itch
