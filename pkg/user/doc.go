// Package user is the local user directory.
//
// A User has one immutable Subject. Local accounts carry a password hash;
// federation-only accounts carry a FederatedID of the form "<provider>:<remote id>"
// and no hash. Repositories exist for memory, PostgreSQL (pgx) and SQLite
// (modernc.org/sqlite); all of them enforce unique email, phone and federated id.
package user
