// Package oauth2client is the registry of relying parties.
//
// A RegisteredClient has an id, optional secret and a list of redirect URIs
// matched exactly. ClientService.Resolve is a pure lookup; unknown ids map to
// invalid_client. SQL repositories keep secrets AES-GCM encrypted at rest.
package oauth2client
