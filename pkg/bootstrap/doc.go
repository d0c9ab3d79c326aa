// Package bootstrap prepares a fresh deployment: it loads or generates the
// RS256 signing key and provisions the seed client and the first local account.
// Every step is idempotent so it can run on each start.
package bootstrap
